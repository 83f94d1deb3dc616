package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/amancevice/epaper/uart"
	"github.com/rs/zerolog/log"
)

func openSerial(ctx context.Context, e *env) (*uart.Dev, error) {
	dev, err := uart.Open(e.cfg.UART.Path, &uart.Opts{BaudRate: e.cfg.UART.Baud})
	if err != nil {
		return nil, err
	}
	if err := dev.Wake(ctx); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return dev, nil
}

// runClock draws the current time from the bitmaps stored on the panel.
func runClock(ctx context.Context, e *env, fset *flag.FlagSet, args []string) error {
	hourly := fset.Bool("hourly", false, "Draw the single hourly bitmap (T0100.BMP to T1200.BMP)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	now := time.Now()
	dev, err := openSerial(ctx, e)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close serial panel")
		}
	}()

	if *hourly {
		name := uart.HourlyImage(now)
		err := dev.Send(
			uart.SetRotation(uart.RotationFlip),
			uart.FillRectangle(0, 0, 800, 600),
			uart.DisplayImage(0, 0, name),
			uart.Refresh(),
		)
		if err != nil {
			return err
		}
		fmt.Printf("Displayed %s\n", name)
		_, err = dev.ReadResponses(ctx, 10*time.Second)
		return err
	}

	face := uart.ClockImages(now)
	frames := face.Frames()
	// The hour is drawn and acknowledged before the minute.
	if err := dev.Send(frames[:3]...); err != nil {
		return err
	}
	if _, err := dev.ReadResponses(ctx, time.Second); err != nil {
		return err
	}
	if err := dev.Send(frames[3:]...); err != nil {
		return err
	}
	fmt.Printf("Displayed %s %s\n", face.Hour, face.Minute)
	_, err = dev.ReadResponses(ctx, time.Second)
	return err
}

// runLoad copies the bitmaps on the panel's TF card into its own storage.
func runLoad(ctx context.Context, e *env, fset *flag.FlagSet, args []string) error {
	wait := fset.Duration("wait", 10*time.Second, "How long to let the import run")
	if err := fset.Parse(args); err != nil {
		return err
	}

	dev, err := openSerial(ctx, e)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close serial panel")
		}
	}()

	if err := dev.Send(uart.SetStorageMode(uart.StorageTF), uart.ImportImage()); err != nil {
		return err
	}
	fmt.Println("Importing images...")
	resps, err := dev.ReadResponses(ctx, *wait)
	if err != nil {
		return err
	}
	fmt.Printf("Import finished (%d responses)\n", len(resps))
	return nil
}
