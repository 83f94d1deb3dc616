package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/draw"

	"github.com/amancevice/epaper"
	"github.com/amancevice/epaper/decode"
	"github.com/amancevice/epaper/framebuf"
	"github.com/amancevice/epaper/image2bit"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// openPanel opens and initializes the SPI panel described by the config.
func openPanel(ctx context.Context, e *env) (*epaper.Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	pin := func(name string) (gpio.PinIO, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("GPIO pin %s not found", name)
		}
		return p, nil
	}
	var pins epaper.Pins
	var err error
	if pins.RST, err = pin(e.cfg.Pins.Reset); err != nil {
		return nil, err
	}
	if pins.DC, err = pin(e.cfg.Pins.DC); err != nil {
		return nil, err
	}
	if pins.Busy, err = pin(e.cfg.Pins.Busy); err != nil {
		return nil, err
	}
	if e.cfg.Pins.CS != "" {
		if pins.CS, err = pin(e.cfg.Pins.CS); err != nil {
			return nil, err
		}
	}

	port, err := spireg.Open(e.cfg.SPI.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}
	if err := port.LimitSpeed(physic.Frequency(e.cfg.SPI.SpeedHz) * physic.Hertz); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to limit SPI speed: %w", err)
	}

	opts := &epaper.Opts{
		W:            e.cfg.Panel.Width,
		H:            e.cfg.Panel.Height,
		BusyLevel:    gpio.Low,
		PerByte:      !e.cfg.SPI.BatchWrites,
		PollInterval: e.cfg.Busy.PollInterval(),
		BusyTimeout:  e.cfg.Busy.Timeout(),
	}
	if e.cfg.Panel.BusyHigh() {
		opts.BusyLevel = gpio.High
	}

	dev, err := epaper.NewSPI(port, pins, opts)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	if err := dev.Init(ctx); err != nil {
		_ = dev.Close()
		return nil, err
	}
	fmt.Printf("Display initialized: %v\n", dev)
	return dev, nil
}

// finish puts the panel to sleep and closes it. The sleep error, if any, is
// returned.
func finish(ctx context.Context, dev *epaper.Dev) error {
	var err error
	if dev.State() == epaper.Initialized {
		err = dev.Sleep(ctx)
	}
	_ = dev.Close()
	return err
}

// runShow displays image files on the black and red planes.
func runShow(ctx context.Context, e *env, fset *flag.FlagSet, args []string) error {
	blackFile := fset.String("black", "", "Image for the black plane")
	redFile := fset.String("red", "", "Image for the red plane")
	clearFirst := fset.Bool("clear", false, "Clear the panel before drawing")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *blackFile == "" && *redFile == "" && !*clearFirst {
		fset.Usage()
		return errors.New("nothing to show")
	}

	w, h := e.cfg.Panel.Width, e.cfg.Panel.Height
	dec := decode.New(e.fs)
	load := func(path string) (image.Image, error) {
		if path == "" {
			return nil, nil
		}
		img, err := dec.Load(path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if _, ok := framebuf.Orientation(b.Dx(), b.Dy(), w, h); ok {
			return img, nil
		}
		return decode.FitPanel(img, w, h), nil
	}
	black, err := load(*blackFile)
	if err != nil {
		return err
	}
	red, err := load(*redFile)
	if err != nil {
		return err
	}

	dev, err := openPanel(ctx, e)
	if err != nil {
		return err
	}
	if *clearFirst {
		if err := dev.Clear(ctx); err != nil {
			_ = dev.Close()
			return err
		}
	}
	if black != nil || red != nil {
		if black == nil {
			black = whiteImage(dev.Bounds())
		}
		if err := dev.DisplayImage(ctx, black, red); err != nil {
			_ = dev.Close()
			return err
		}
		fmt.Println("Image displayed")
	}
	return finish(ctx, dev)
}

// runDemo draws test patterns, like a panel bring-up check.
func runDemo(ctx context.Context, e *env, fset *flag.FlagSet, args []string) error {
	pattern := fset.String("pattern", "all", "Pattern to draw: all, checker, bars, frame, red")
	if err := fset.Parse(args); err != nil {
		return err
	}

	demos := map[string]func(*epaper.Dev) (black, red image.Image){
		"checker": checkerDemo,
		"bars":    barsDemo,
		"frame":   frameDemo,
		"red":     redDemo,
	}
	order := []string{"checker", "bars", "frame", "red"}
	if *pattern != "all" {
		if _, ok := demos[*pattern]; !ok {
			return fmt.Errorf("unknown pattern: %s", *pattern)
		}
		order = []string{*pattern}
	}

	dev, err := openPanel(ctx, e)
	if err != nil {
		return err
	}
	if err := dev.Clear(ctx); err != nil {
		_ = dev.Close()
		return err
	}
	for i, name := range order {
		fmt.Printf("%d. %s\n", i+1, name)
		black, red := demos[name](dev)
		if err := dev.DisplayImage(ctx, black, red); err != nil {
			_ = dev.Close()
			return err
		}
		log.Info().Str("pattern", name).Msg("pattern displayed")
	}
	fmt.Println("Demo complete")
	return finish(ctx, dev)
}

func whiteImage(r image.Rectangle) *image.Gray {
	img := image.NewGray(r)
	draw.Draw(img, r, image.White, image.Point{}, draw.Src)
	return img
}

// checkerDemo draws 16 pixel squares.
func checkerDemo(dev *epaper.Dev) (image.Image, image.Image) {
	const size = 16
	img := whiteImage(dev.Bounds())
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if (x/size+y/size)%2 == 1 {
				img.Pix[img.PixOffset(x, y)] = 0
			}
		}
	}
	return img, nil
}

// barsDemo draws the four gray levels as vertical bars; the darker two come
// out black.
func barsDemo(dev *epaper.Dev) (image.Image, image.Image) {
	img := image2bit.NewImage(dev.Bounds())
	b := img.Bounds()
	levels := []image2bit.Gray2{image2bit.Black, image2bit.DarkGray, image2bit.Gray, image2bit.White}
	barWidth := b.Dx() / len(levels)
	for i, c := range levels {
		bar := image.Rect(b.Min.X+i*barWidth, b.Min.Y, b.Min.X+(i+1)*barWidth, b.Max.Y)
		draw.Draw(img, bar, image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img, nil
}

// frameDemo draws a 4 pixel border and the diagonals.
func frameDemo(dev *epaper.Dev) (image.Image, image.Image) {
	const border = 4
	img := whiteImage(dev.Bounds())
	b := img.Bounds()
	inner := b.Inset(border)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !image.Pt(x, y).In(inner) {
				img.Pix[img.PixOffset(x, y)] = 0
			}
		}
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		y := b.Min.Y + (x-b.Min.X)*b.Dy()/b.Dx()
		img.Pix[img.PixOffset(x, y)] = 0
		img.Pix[img.PixOffset(x, b.Max.Y-1-(y-b.Min.Y))] = 0
	}
	return img, nil
}

// redDemo fills the top half red and the bottom half black.
func redDemo(dev *epaper.Dev) (image.Image, image.Image) {
	b := dev.Bounds()
	mid := b.Min.Y + b.Dy()/2
	black := whiteImage(b)
	draw.Draw(black, image.Rect(b.Min.X, mid, b.Max.X, b.Max.Y), image.Black, image.Point{}, draw.Src)
	red := whiteImage(b)
	draw.Draw(red, image.Rect(b.Min.X, b.Min.Y, b.Max.X, mid), image.Black, image.Point{}, draw.Src)
	return black, red
}
