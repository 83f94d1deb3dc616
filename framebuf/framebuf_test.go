package framebuf

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func grayImage(w, h int, pix []byte) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	return img
}

func TestSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 15000, Size(400, 300))
	assert.Equal(t, 1, Size(8, 1))
	assert.Equal(t, 2, Size(3, 3))
	assert.Equal(t, 0, Size(0, 10))
}

func TestBlank(t *testing.T) {
	t.Parallel()

	buf := Blank(16, 2)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
}

func TestEncodeAllBlack(t *testing.T) {
	t.Parallel()

	img := grayImage(8, 1, make([]byte, 8))
	buf, err := Encode(img, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, buf)
}

func TestEncodeBitOrder(t *testing.T) {
	t.Parallel()

	// Only pixel (1, 0) and (0, 1) are black on an 8x2 panel.
	pix := make([]byte, 16)
	for i := range pix {
		pix[i] = 0xFF
	}
	pix[1] = 0x00
	pix[8] = 0x7F

	buf, err := Encode(grayImage(8, 2, pix), 8, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xBF, 0x7F}, buf)
}

func TestEncodeThreshold(t *testing.T) {
	t.Parallel()

	pix := []byte{Threshold - 1, Threshold, 0x00, 0xFF, 0x10, 0xF0, 0x7F, 0x80}
	buf, err := Encode(grayImage(8, 1, pix), 8, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b01010101}, buf)
}

func TestEncodePortrait(t *testing.T) {
	t.Parallel()

	// 8 wide, 2 high panel; portrait source is 2 wide, 8 high.
	// Source (0, 0) maps to panel (0, 1).
	src := image.NewGray(image.Rect(0, 0, 2, 8))
	for i := range src.Pix {
		src.Pix[i] = 0xFF
	}
	src.SetGray(0, 0, color.Gray{Y: 0})

	buf, err := Encode(src, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x7F}, buf)
}

func TestEncodeDimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := Encode(image.NewGray(image.Rect(0, 0, 10, 10)), 400, 300)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "10x10")
}

func TestEncodeGenericImage(t *testing.T) {
	t.Parallel()

	rgba := image.NewRGBA(image.Rect(5, 5, 13, 6))
	for x := 5; x < 13; x++ {
		rgba.Set(x, 5, color.White)
	}
	rgba.Set(5, 5, color.Black)
	rgba.Set(12, 5, color.RGBA{0x10, 0x10, 0x10, 0xFF})

	buf, err := Encode(rgba, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7E}, buf)
}

func TestOrientation(t *testing.T) {
	t.Parallel()

	portrait, ok := Orientation(400, 300, 400, 300)
	assert.True(t, ok)
	assert.False(t, portrait)

	portrait, ok = Orientation(300, 400, 400, 300)
	assert.True(t, ok)
	assert.True(t, portrait)

	_, ok = Orientation(300, 300, 400, 300)
	assert.False(t, ok)
}

func TestBitModel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, color.Gray{Y: 0}, BitModel.Convert(color.Gray{Y: 0x7F}))
	assert.Equal(t, color.Gray{Y: 0xFF}, BitModel.Convert(color.Gray{Y: 0x80}))
	assert.Equal(t, color.Gray{Y: 0}, BitModel.Convert(color.Black))
}

func TestPropertyEncodeMatchesClassification(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 24).Draw(t, "w")
		h := rapid.IntRange(1, 24).Draw(t, "h")
		pix := rapid.SliceOfN(rapid.Byte(), w*h, w*h).Draw(t, "pix")

		buf, err := Encode(grayImage(w, h, pix), w, h)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if len(buf) != Size(w, h) {
			t.Fatalf("len = %d, want %d", len(buf), Size(w, h))
		}
		for z, v := range pix {
			if BitAt(buf, z) != (v >= Threshold) {
				t.Fatalf("pixel %d (value %#x) has bit %v", z, v, BitAt(buf, z))
			}
		}
		// Bits past the last pixel stay white.
		for z := w * h; z < len(buf)*8; z++ {
			if !BitAt(buf, z) {
				t.Fatalf("trailing bit %d cleared", z)
			}
		}
	})
}

func TestPropertyPortraitMatchesLandscape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 20).Draw(t, "w")
		h := rapid.IntRange(1, 20).Draw(t, "h")
		if h == w {
			// a square image is always packed as landscape
			h++
		}
		pix := rapid.SliceOfN(rapid.Byte(), w*h, w*h).Draw(t, "pix")

		// portrait is h wide and w high
		portrait := grayImage(h, w, pix)
		landscape := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				landscape.SetGray(y, h-x-1, portrait.GrayAt(x, y))
			}
		}

		a, err := Encode(portrait, w, h)
		if err != nil {
			t.Fatalf("Encode portrait: %v", err)
		}
		b, err := Encode(landscape, w, h)
		if err != nil {
			t.Fatalf("Encode landscape: %v", err)
		}
		if string(a) != string(b) {
			t.Fatalf("portrait %x != landscape %x", a, b)
		}
	})
}

func TestPropertyEncodeDeterministic(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 16).Draw(t, "w")
		h := rapid.IntRange(1, 16).Draw(t, "h")
		pix := rapid.SliceOfN(rapid.Byte(), w*h, w*h).Draw(t, "pix")

		a, _ := Encode(grayImage(w, h, pix), w, h)
		b, _ := Encode(grayImage(w, h, pix), w, h)
		if string(a) != string(b) {
			t.Fatalf("non-deterministic output")
		}
	})
}
