// Command epaper converts images for e-paper panels and drives them over SPI
// or a serial line.
//
// Usage:
//
//	epaper [-config FILE] [-debug] COMMAND [ARGS]
//
// Commands:
//
//	bitmap   convert an image to a panel bitmap file
//	info     print the header of a panel bitmap file
//	show     display images on an SPI panel
//	demo     draw test patterns on an SPI panel
//	clock    show the time on a serial panel
//	load     import bitmaps from the TF card of a serial panel
//
// Hardware Setup:
//
// Connect an SPI panel HAT to a Raspberry Pi:
//
//	Panel    Raspberry Pi
//	VCC      3.3V
//	GND      GND
//	DIN      GPIO10 (SPI0 MOSI)
//	CLK      GPIO11 (SPI0 SCLK)
//	CS       GPIO8 (SPI0 CE0)
//	DC       GPIO25
//	RST      GPIO17
//	BUSY     GPIO24
//
// Pins, sizes and timeouts are set in epaper.toml.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amancevice/epaper/internal/config"
	"github.com/amancevice/epaper/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	cfgPath = flag.String("config", "", "Config file (default $EPAPER_CONFIG or epaper.toml)")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env, fset *flag.FlagSet, args []string) error
}

// env is what every command gets besides its arguments.
type env struct {
	cfg config.Values
	fs  afero.Fs
}

var commands = []command{
	{"bitmap", "[-c 2|4] [-i] [-bpp 1|2|4] INFILE OUTFILE", runBitmap},
	{"info", "FILE", runInfo},
	{"show", "[-black FILE] [-red FILE] [-clear]", runShow},
	{"demo", "[-pattern all|checker|bars|frame|red]", runDemo},
	{"clock", "[-hourly]", runClock},
	{"load", "[-wait DURATION]", runLoad},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] COMMAND [ARGS]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(out, "  %s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, config.Path(*cfgPath), config.BaseDefaults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := logging.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, &env{cfg: cfg, fs: fs}, newFlagSet(c.name, c.usage), args); err != nil {
			stop()
			log.Fatal().Err(err).Str("command", name).Msg("command failed")
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	usage()
	os.Exit(2)
}

func newFlagSet(name, usage string) *flag.FlagSet {
	fset := flag.NewFlagSet(name, flag.ExitOnError)
	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), "Usage: %s %s %s\n", os.Args[0], name, usage)
		fset.PrintDefaults()
	}
	return fset
}
