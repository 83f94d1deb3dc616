package bitmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Header layout sizes in bytes.
const (
	FileHeaderSize = 14
	InfoHeaderSize = 40
	PaletteSize    = 16
	HeaderSize     = FileHeaderSize + InfoHeaderSize + PaletteSize

	alignment = 4 // row alignment in bytes
)

var (
	// ErrInconsistentPixelCount is returned when the number of pixels does
	// not equal width*height.
	ErrInconsistentPixelCount = errors.New("bitmap: inconsistent pixel count")
	// ErrUnsupportedDepth is returned for a bit depth other than 1, 2 or 4.
	ErrUnsupportedDepth = errors.New("bitmap: unsupported bit depth")
	// ErrCodeOutOfRange is returned when a pixel code does not fit the bit depth.
	ErrCodeOutOfRange = errors.New("bitmap: pixel code out of range")
	// ErrInvalidHeader is returned when parsing bytes that are not a container.
	ErrInvalidHeader = errors.New("bitmap: invalid header")
)

var signature = [2]byte{'B', 'M'}

// FileHeader is the 14 byte bitmap file header.
type FileHeader struct {
	Signature [2]byte
	Size      uint32
	Reserved1 uint16
	Reserved2 uint16
	Offset    uint32
}

// InfoHeader is the 40 byte bitmap information header.
type InfoHeader struct {
	Size            uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitCount        uint16
	Compression     uint32
	SizeImage       uint32
	XPelsPerMeter   int32
	YPelsPerMeter   int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

// Palette holds 4 BGR0 entries.
type Palette [4][4]byte

// Header is the complete 70 byte container header.
type Header struct {
	File    FileHeader
	Info    InfoHeader
	Palette Palette
}

var (
	grayPalette = Palette{
		{0x00, 0x00, 0x00, 0x00},
		{0x55, 0x55, 0x55, 0x00},
		{0xAA, 0xAA, 0xAA, 0x00},
		{0xFF, 0xFF, 0xFF, 0x00},
	}
	monoPalette = Palette{
		{0x00, 0x00, 0x00, 0x00},
		{0xFF, 0xFF, 0xFF, 0x00},
	}
)

// NewHeader returns the header of a container holding dataLen bytes of pixel
// rows for a width×height image at bpp bits per pixel.
func NewHeader(dataLen, width, height, bpp int) Header {
	h := Header{
		File: FileHeader{
			Signature: signature,
			Size:      uint32(dataLen + HeaderSize),
			Offset:    HeaderSize,
		},
		Info: InfoHeader{
			Size:       InfoHeaderSize,
			Width:      int32(width),
			Height:     int32(height),
			Planes:     1,
			BitCount:   uint16(bpp),
			ColorsUsed: 4,
		},
		Palette: grayPalette,
	}
	if bpp == 1 {
		h.Info.ColorsUsed = 2
		h.Palette = monoPalette
	}
	return h
}

// MarshalBinary encodes h in its little-endian wire form.
func (h Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(b))
	}
	if err := binary.Read(bytes.NewReader(b[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if h.File.Signature != signature {
		return h, fmt.Errorf("%w: bad signature %q", ErrInvalidHeader, h.File.Signature[:])
	}
	return h, nil
}

// Container is an assembled bitmap: header followed by pixel rows.
type Container []byte

// Header decodes the container header.
func (c Container) Header() (Header, error) {
	return ParseHeader(c)
}

// PixelData returns the pixel rows that follow the header.
func (c Container) PixelData() []byte {
	if len(c) < HeaderSize {
		return nil
	}
	return c[HeaderSize:]
}

// RowSize returns the padded byte length of one row.
func RowSize(width, bpp int) int {
	ppb := 8 / bpp
	return (width + padPixels(width, bpp)) / ppb
}

// padPixels is the number of filler pixels that bring a row of width pixels
// to the next alignment boundary.
func padPixels(width, bpp int) int {
	group := (8 / bpp) * alignment
	return (group - width%group) % group
}

func validDepth(bpp int) bool {
	return bpp == 1 || bpp == 2 || bpp == 4
}

// Assemble builds a container from width*height gray codes given in row
// major order, top row first.
func Assemble(pixels []byte, width, height, bpp int) (Container, error) {
	if !validDepth(bpp) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, bpp)
	}
	if width <= 0 || height <= 0 || width*height != len(pixels) {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrInconsistentPixelCount, len(pixels), width, height)
	}

	maxCode := byte(1<<bpp - 1)
	if bpp == 4 {
		// Only 4 palette entries exist.
		maxCode = 3
	}
	for i, v := range pixels {
		if v > maxCode {
			return nil, fmt.Errorf("%w: pixel %d is %d, max %d", ErrCodeOutOfRange, i, v, maxCode)
		}
	}

	rowSize := RowSize(width, bpp)
	data := make([]byte, rowSize*height)
	for y := 0; y < height; y++ {
		// Bottom-up: image row y goes to stored row height-1-y.
		packRow(data[(height-1-y)*rowSize:(height-y)*rowSize], pixels[y*width:(y+1)*width], bpp)
	}

	hdr, err := NewHeader(len(data), width, height, bpp).MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make(Container, 0, len(hdr)+len(data))
	out = append(out, hdr...)
	out = append(out, data...)
	return out, nil
}

// packRow packs codes into dst most significant bits first. dst starts out
// all 1 bits so the filler pixels are already in place.
func packRow(dst, codes []byte, bpp int) {
	for i := range dst {
		dst[i] = 0xFF
	}
	ppb := 8 / bpp
	mask := byte(1<<bpp - 1)
	for x, v := range codes {
		shift := uint(8 - bpp*(x%ppb+1))
		dst[x/ppb] = dst[x/ppb]&^(mask<<shift) | v<<shift
	}
}

// Encode assembles the container and writes it to w.
func Encode(w io.Writer, pixels []byte, width, height, bpp int) error {
	c, err := Assemble(pixels, width, height, bpp)
	if err != nil {
		return err
	}
	_, err = w.Write(c)
	return err
}

// WriteFile assembles the container and stores it at path on fs.
func WriteFile(fs afero.Fs, path string, pixels []byte, width, height, bpp int) error {
	c, err := Assemble(pixels, width, height, bpp)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, c, 0o644); err != nil {
		return fmt.Errorf("bitmap: failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a container from fs and checks its header.
func ReadFile(fs afero.Fs, path string) (Container, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("bitmap: failed to read %s: %w", path, err)
	}
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if int(h.File.Size) != len(b) {
		return nil, fmt.Errorf("%w: size field %d, file is %d bytes", ErrInvalidHeader, h.File.Size, len(b))
	}
	return Container(b), nil
}
