// Package epaper controls a tri-color e-paper panel via SPI.
//
// The panel is a bistable display: an image stays on the glass with the power
// off, and a full refresh takes several seconds during which the controller
// holds its busy line. This driver implements the display.Drawer interface
// from periph.io.
//
// # Display Characteristics
//
// - Two 1-bit planes: black (primary) and red (secondary)
// - A set bit is white, a cleared bit is colored
// - 400×300 pixels by default, any size configurable
// - Full refresh only
//
// # Hardware Connection
//
// Connect the panel to your system via SPI and three GPIO lines:
//
//	Panel Pin → System Pin
//	GND       → GND
//	VCC       → 3.3V
//	CLK       → SPI Clock (SCLK)
//	DIN       → SPI Data (MOSI)
//	CS        → SPI Chip Select, or a GPIO
//	DC        → GPIO (any available pin)
//	RST       → GPIO (any available pin)
//	BUSY      → GPIO (any available pin)
//
// # Basic Usage
//
//	package main
//
//	import (
//		"context"
//		"image"
//
//		"github.com/amancevice/epaper"
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		port, _ := spireg.Open("")
//
//		dev, _ := epaper.NewSPI(port, epaper.Pins{
//			RST:  gpioreg.ByName("GPIO17"),
//			DC:   gpioreg.ByName("GPIO25"),
//			Busy: gpioreg.ByName("GPIO24"),
//		}, &epaper.Opts{W: 400, H: 300})
//		defer dev.Close()
//
//		ctx := context.Background()
//		dev.Init(ctx)
//		dev.Clear(ctx)
//
//		black := image.NewGray(dev.Bounds())
//		// ... draw ...
//		dev.DisplayImage(ctx, black, nil)
//		dev.Sleep(ctx)
//	}
//
// Images may be given in landscape (W×H) or portrait (H×W) orientation;
// portrait images are rotated onto the panel.
//
// # Session Lifecycle
//
// A Dev owns its bus from New until Close, and a second session on the same
// bus fails with ErrBusBusy. Init must succeed before Clear, Display or
// Sleep. A transport error or busy timeout leaves the session Faulted, after
// which only Close is accepted. Close is always safe to call.
//
// # Busy Line
//
// The busy level defaults to low. Waits poll every 100ms and give up after
// 30s with ErrBusyTimeout; Opts.BusyTimeout set to NoTimeout waits forever.
//
// # Write Profiles
//
// Payloads are written in a single chip-select frame by default, split into
// chunks the bus driver accepts. Some controllers want every byte framed on
// its own; set Opts.PerByte for those.
package epaper
