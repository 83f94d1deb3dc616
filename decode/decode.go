// Package decode loads raster images from disk and reduces them to the gray
// codes the bitmap and frame buffer encoders take.
package decode

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/amancevice/epaper/framebuf"
	"github.com/amancevice/epaper/image2bit"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Default bounds images are shrunk to fit.
const (
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 600
)

// ErrUnsupportedLevels is returned for a gray level count other than 2 or 4.
var ErrUnsupportedLevels = errors.New("decode: unsupported number of gray levels")

// Result is a decoded image as one gray code per pixel, row major.
type Result struct {
	Width  int
	Height int
	Levels int
	Pix    []byte // codes 0..Levels-1, 0 is black
}

// Codes returns the pixels as codes of a bpp-bit bitmap palette: 0 black and
// 1 white at 1 bit, 0 black to 3 white at 2 and 4 bits.
func (r *Result) Codes(bpp int) []byte {
	out := make([]byte, len(r.Pix))
	for i, c := range r.Pix {
		switch {
		case bpp == 1 && r.Levels == 4:
			out[i] = c >> 1
		case bpp != 1 && r.Levels == 2:
			out[i] = c * 3
		default:
			out[i] = c
		}
	}
	return out
}

// Decoder reads images from Fs.
type Decoder struct {
	Fs   afero.Fs
	MaxW int // Images wider than this are shrunk (default: 800)
	MaxH int // Images taller than this are shrunk (default: 600)
}

// New returns a Decoder over fs with the default bounds.
func New(fs afero.Fs) *Decoder {
	return &Decoder{Fs: fs, MaxW: DefaultMaxWidth, MaxH: DefaultMaxHeight}
}

// Load decodes the image at path, honouring EXIF orientation.
func (d *Decoder) Load(path string) (image.Image, error) {
	f, err := d.Fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("path", path).Msg("failed to close image")
		}
	}()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Decode loads the image at path, shrinks it to fit the decoder bounds
// keeping its aspect ratio, converts it to gray and quantizes it to levels.
// Smaller images are never enlarged.
func (d *Decoder) Decode(path string, levels int, invert bool) (*Result, error) {
	if levels != 2 && levels != 4 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedLevels, levels)
	}
	img, err := d.Load(path)
	if err != nil {
		return nil, err
	}

	maxW, maxH := d.MaxW, d.MaxH
	if maxW <= 0 {
		maxW = DefaultMaxWidth
	}
	if maxH <= 0 {
		maxH = DefaultMaxHeight
	}
	src := img.Bounds()
	gray := imaging.Grayscale(imaging.Fit(img, maxW, maxH, imaging.Lanczos))
	if invert {
		gray = imaging.Invert(gray)
	}

	res, err := Quantize(gray, levels)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("path", path).
		Int("src_width", src.Dx()).
		Int("src_height", src.Dy()).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("levels", levels).
		Bool("invert", invert).
		Msg("decoded image")
	return res, nil
}

// Quantize reduces img to levels gray codes. Two levels split at
// framebuf.Threshold; four levels use image2bit.Gray2Model.
func Quantize(img image.Image, levels int) (*Result, error) {
	var quant func(color.Color) byte
	switch levels {
	case 2:
		quant = func(c color.Color) byte {
			if color.GrayModel.Convert(c).(color.Gray).Y < framebuf.Threshold {
				return 0
			}
			return 1
		}
	case 4:
		quant = func(c color.Color) byte {
			return image2bit.Gray2Model.Convert(c).(image2bit.Gray2).Y
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedLevels, levels)
	}

	b := img.Bounds()
	res := &Result{
		Width:  b.Dx(),
		Height: b.Dy(),
		Levels: levels,
		Pix:    make([]byte, 0, b.Dx()*b.Dy()),
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			res.Pix = append(res.Pix, quant(img.At(x, y)))
		}
	}
	return res, nil
}

// FitPanel scales img to fit a w×h panel and centers it on a white canvas of
// exactly that size.
func FitPanel(img image.Image, w, h int) image.Image {
	fit := imaging.Fit(img, w, h, imaging.Lanczos)
	return imaging.PasteCenter(imaging.New(w, h, color.White), fit)
}
