package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/amancevice/epaper/bitmap"
	"github.com/amancevice/epaper/decode"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const stdio = "-"

// runBitmap converts INFILE to a panel bitmap. Either file may be "-" for
// stdin or stdout.
func runBitmap(_ context.Context, e *env, fset *flag.FlagSet, args []string) error {
	levels := fset.Int("c", e.cfg.Bitmap.Levels, "Number of gray levels: 2 or 4")
	invert := fset.Bool("i", false, "Invert colors")
	bpp := fset.Int("bpp", e.cfg.Bitmap.BitsPerPixel, "Bits per pixel of the output: 1, 2 or 4")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 2 {
		fset.Usage()
		return errors.New("bitmap needs INFILE and OUTFILE")
	}
	in, out := fset.Arg(0), fset.Arg(1)

	srcFs := e.fs
	if in == stdio {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		srcFs = afero.NewMemMapFs()
		in = "/stdin"
		if err := afero.WriteFile(srcFs, in, data, 0o600); err != nil {
			return err
		}
	}

	dec := &decode.Decoder{Fs: srcFs, MaxW: e.cfg.Bitmap.MaxWidth, MaxH: e.cfg.Bitmap.MaxHeight}
	res, err := dec.Decode(in, *levels, *invert)
	if err != nil {
		return err
	}
	codes := res.Codes(*bpp)

	if out == stdio {
		return bitmap.Encode(os.Stdout, codes, res.Width, res.Height, *bpp)
	}
	if err := bitmap.WriteFile(e.fs, out, codes, res.Width, res.Height, *bpp); err != nil {
		return err
	}
	log.Info().
		Str("file", out).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("bpp", *bpp).
		Msg("wrote bitmap")
	return nil
}

// runInfo prints the header of a panel bitmap.
func runInfo(_ context.Context, e *env, fset *flag.FlagSet, args []string) error {
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return errors.New("info needs FILE")
	}

	c, err := bitmap.ReadFile(e.fs, fset.Arg(0))
	if err != nil {
		return err
	}
	h, err := c.Header()
	if err != nil {
		return err
	}
	fmt.Printf("Size:      %d bytes\n", h.File.Size)
	fmt.Printf("Offset:    %d\n", h.File.Offset)
	fmt.Printf("Dimension: %dx%d\n", h.Info.Width, h.Info.Height)
	fmt.Printf("Depth:     %d bpp, %d colors\n", h.Info.BitCount, h.Info.ColorsUsed)
	fmt.Printf("Row size:  %d bytes\n", bitmap.RowSize(int(h.Info.Width), int(h.Info.BitCount)))
	return nil
}
