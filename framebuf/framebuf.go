// Package framebuf packs images into the 1 bit per pixel frame buffers that
// e-paper controllers take for each color plane.
//
// A frame buffer is row major, 8 pixels per byte with the leftmost pixel in
// the most significant bit. A set bit is white and a cleared bit is black.
// Buffers are always sized for the panel, never for the source image.
package framebuf

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Threshold is the 8-bit luminance below which a pixel is black.
const Threshold = 0x80

// ErrDimensionMismatch is returned when an image fits the panel neither in
// landscape nor in portrait orientation.
var ErrDimensionMismatch = errors.New("framebuf: image size does not match panel")

// Size returns the number of bytes of a w×h frame buffer.
func Size(w, h int) int {
	return (w*h + 7) / 8
}

// Blank returns an all-white w×h frame buffer.
func Blank(w, h int) []byte {
	buf := make([]byte, Size(w, h))
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}

// Encode packs img into a frame buffer for a w×h panel.
//
// An image of exactly w×h pixels is packed as is. An image of h×w pixels is
// treated as portrait and rotated onto the panel: source pixel (x, y) lands
// on panel pixel (y, h-x-1).
func Encode(img image.Image, w, h int) ([]byte, error) {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()

	portrait, ok := Orientation(iw, ih, w, h)
	if !ok {
		return nil, fmt.Errorf("%w: image is %dx%d, panel is %dx%d", ErrDimensionMismatch, iw, ih, w, h)
	}

	buf := Blank(w, h)
	gray, _ := img.(*image.Gray)

	for y := 0; y < ih; y++ {
		for x := 0; x < iw; x++ {
			var lum uint8
			if gray != nil {
				lum = gray.Pix[gray.PixOffset(b.Min.X+x, b.Min.Y+y)]
			} else {
				lum = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
			if lum >= Threshold {
				continue
			}
			nx, ny := x, y
			if portrait {
				nx, ny = y, h-x-1
			}
			clearBit(buf, nx+ny*w)
		}
	}
	return buf, nil
}

// Orientation reports how an iw×ih image maps onto a w×h panel.
func Orientation(iw, ih, w, h int) (portrait bool, ok bool) {
	switch {
	case iw == w && ih == h:
		return false, true
	case iw == h && ih == w:
		return true, true
	}
	return false, false
}

func clearBit(buf []byte, z int) {
	buf[z/8] &^= 0x80 >> (z % 8)
}

// BitAt reports whether pixel z of buf is white.
func BitAt(buf []byte, z int) bool {
	return buf[z/8]&(0x80>>(z%8)) != 0
}

func toBit(c color.Color) color.Color {
	if color.GrayModel.Convert(c).(color.Gray).Y < Threshold {
		return color.Gray{Y: 0x00}
	}
	return color.Gray{Y: 0xFF}
}

// BitModel maps colors to pure black or white using Threshold.
var BitModel = color.ModelFunc(toBit)
