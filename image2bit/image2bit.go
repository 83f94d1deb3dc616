package image2bit

import (
	"image"
	"image/color"
)

// Gray2 represents a 2-bit grayscale color (0-3 intensity levels).
// Only the lower 2 bits of Y are used.
type Gray2 struct {
	Y uint8
}

// The four levels, darkest first.
var (
	Black    = Gray2{Y: 0}
	DarkGray = Gray2{Y: 1}
	Gray     = Gray2{Y: 2}
	White    = Gray2{Y: 3}
)

// RGBA converts the Gray2 color to standard RGBA.
// The 2-bit gray value (0-3) is scaled to 16-bit (0-65535).
func (c Gray2) RGBA() (r, g, b, a uint32) {
	// 0x3 * 0x5555 = 0xFFFF, 0x1 * 0x5555 = 0x5555
	y := uint32(c.Y&0x03) * 0x5555
	return y, y, y, 0xFFFF
}

func toGray2(c color.Color) color.Color {
	if g, ok := c.(Gray2); ok {
		return g
	}
	r, g, b, _ := c.RGBA()
	// 0.299R + 0.587G + 0.114B on 16-bit channels
	y := (299*r + 587*g + 114*b + 500) / 1000
	return Gray2{Y: uint8(y >> 14)}
}

// Gray2Model converts colors to Gray2.
var Gray2Model = color.ModelFunc(toGray2)

// Image is a 4-level grayscale image holding one gray code per byte.
type Image struct {
	Pix    []byte          // Gray codes, row major
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewImage creates a new white Image with the specified bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = White.Y
	}
	return &Image{
		Pix:    pix,
		Stride: w,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Gray2Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Image) At(x, y int) color.Color {
	return p.Gray2At(x, y)
}

// Gray2At returns the Gray2 color of the pixel at (x, y).
func (p *Image) Gray2At(x, y int) Gray2 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Gray2{}
	}
	return Gray2{Y: p.Pix[p.pixOffset(x, y)] & 0x03}
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.pixOffset(x, y)] = Gray2Model.Convert(c).(Gray2).Y & 0x03
}

// SetGray2 sets the Gray2 color of the pixel at (x, y) without conversion.
func (p *Image) SetGray2(x, y int, c Gray2) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.pixOffset(x, y)] = c.Y & 0x03
}

// Invert swaps every level for its opposite (black <-> white, dark gray <-> gray).
func (p *Image) Invert() {
	for i, v := range p.Pix {
		p.Pix[i] = 0x03 - v&0x03
	}
}

func (p *Image) pixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x - p.Rect.Min.X)
}
