// Package epaper drives a bistable e-paper panel over SPI.
//
// The controller takes an opcode with the DC line low followed by its
// payload with the DC line high. Common panels are 400x300.
//
// See cmd/epaper for how to use this package.
package epaper

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"time"

	"github.com/amancevice/epaper/framebuf"
	"github.com/amancevice/epaper/internal/buslock"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Defaults.
const (
	DefaultWidth        = 400
	DefaultHeight       = 300
	DefaultPollInterval = 100 * time.Millisecond
	DefaultBusyTimeout  = 30 * time.Second
	DefaultSPISpeed     = 4 * physic.MegaHertz
)

// Opts is the configuration for the panel.
type Opts struct {
	// Panel dimensions in pixels
	W int // Width (default: 400)
	H int // Height (default: 300)

	// BusyLevel is the level of the busy line while the panel is busy.
	// Default gpio.Low.
	BusyLevel gpio.Level

	// PerByte frames every data byte in its own chip-select cycle instead
	// of writing the payload in one transfer.
	PerByte bool

	PollInterval time.Duration // Busy line poll interval (default: 100ms)
	BusyTimeout  time.Duration // Busy wait bound (default: 30s, NoTimeout to wait forever)

	Clock clockwork.Clock // Time source (default: real clock)
}

func (o *Opts) withDefaults() Opts {
	var v Opts
	if o != nil {
		v = *o
	}
	if v.W == 0 {
		v.W = DefaultWidth
	}
	if v.H == 0 {
		v.H = DefaultHeight
	}
	if v.PollInterval <= 0 {
		v.PollInterval = DefaultPollInterval
	}
	if v.BusyTimeout == 0 {
		v.BusyTimeout = DefaultBusyTimeout
	}
	if v.Clock == nil {
		v.Clock = clockwork.NewRealClock()
	}
	return v
}

func planeSize(w, h int) int {
	return framebuf.Size(w, h)
}

// State is the lifecycle state of a Dev.
type State int

// Session states.
const (
	Unopened State = iota
	Resetting
	Initialized
	Clearing
	Displaying
	Sleeping
	Faulted
	Closed
)

var stateNames = [...]string{
	Unopened:    "unopened",
	Resetting:   "reset",
	Initialized: "initialized",
	Clearing:    "clearing",
	Displaying:  "displaying",
	Sleeping:    "sleeping",
	Faulted:     "faulted",
	Closed:      "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Dev is an open session with the panel. It owns its bus exclusively from
// New until Close.
type Dev struct {
	t      *Transport
	opts   Opts
	name   string
	rect   image.Rectangle
	closer io.Closer // Port opened on the caller's behalf, if any

	release func()
	state   State
}

// New opens a session over an already connected bus. It fails with
// ErrBusBusy when another session holds the same bus.
func New(c conn.Conn, pins Pins, opts *Opts) (*Dev, error) {
	if err := pins.validate(); err != nil {
		return nil, err
	}
	o := opts.withDefaults()
	if o.W <= 0 || o.H <= 0 {
		return nil, fmt.Errorf("%w: panel must be at least 1x1, got %dx%d", ErrDimensionMismatch, o.W, o.H)
	}

	name := c.String()
	release, err := buslock.Default.Acquire("spi:" + name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusBusy, err)
	}

	return &Dev{
		t:       NewTransport(c, pins, &o),
		opts:    o,
		name:    name,
		rect:    image.Rect(0, 0, o.W, o.H),
		release: release,
		state:   Unopened,
	}, nil
}

// NewSPI connects to p in mode 0 at 4MHz and opens a session on it.
//
// The busy pin is configured as an input. If p is a spi.PortCloser the
// returned Dev closes it on Close.
func NewSPI(p spi.Port, pins Pins, opts *Opts) (*Dev, error) {
	if pins.Busy != nil {
		if err := pins.Busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("%w: busy pin: %w", ErrInitFailure, err)
		}
	}
	c, err := p.Connect(DefaultSPISpeed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportIO, err)
	}
	d, err := New(c, pins, opts)
	if err != nil {
		return nil, err
	}
	if pc, ok := p.(spi.PortCloser); ok {
		d.closer = pc
	}
	return d, nil
}

// State returns the session state.
func (d *Dev) State() State {
	return d.state
}

// Transport exposes the command layer for callers that need to issue raw
// commands. It must not be used after Close.
func (d *Dev) Transport() *Transport {
	return d.t
}

// Init resets the panel and runs the power-up sequence.
func (d *Dev) Init(ctx context.Context) error {
	if d.state != Unopened {
		return fmt.Errorf("%w: init from %s", ErrInvalidState, d.state)
	}

	d.state = Resetting
	log.Debug().Str("bus", d.name).Msg("e-paper reset")
	if err := d.t.Reset(); err != nil {
		return d.fail(fmt.Errorf("%w: %w", ErrInitFailure, err))
	}

	if err := d.t.Exec(boosterSoftStart()); err != nil {
		return d.fail(fmt.Errorf("%w: %w", ErrInitFailure, err))
	}
	if err := d.t.Exec(Command{Op: PowerOn}); err != nil {
		return d.fail(fmt.Errorf("%w: %w", ErrInitFailure, err))
	}
	if err := d.wait(ctx); err != nil {
		return d.fail(fmt.Errorf("%w: %w", ErrInitFailure, err))
	}
	if err := d.t.Exec(panelSetting()); err != nil {
		return d.fail(fmt.Errorf("%w: %w", ErrInitFailure, err))
	}

	d.state = Initialized
	log.Info().Str("bus", d.name).Stringer("size", d.rect.Max).Msg("e-paper initialized")
	return nil
}

// Clear fills both planes with white and refreshes.
func (d *Dev) Clear(ctx context.Context) error {
	if err := d.require(Initialized, "clear"); err != nil {
		return err
	}
	blank := framebuf.Blank(d.opts.W, d.opts.H)
	d.state = Clearing
	return d.refresh(ctx, blank, blank)
}

// Display writes the primary and secondary planes and refreshes. Both planes
// must be exactly one frame buffer long; nothing is written otherwise.
func (d *Dev) Display(ctx context.Context, primary, secondary []byte) error {
	if err := d.require(Initialized, "display"); err != nil {
		return err
	}
	size := planeSize(d.opts.W, d.opts.H)
	if len(primary) != size {
		return fmt.Errorf("%w: primary plane is %d bytes, want %d", ErrDimensionMismatch, len(primary), size)
	}
	if len(secondary) != size {
		return fmt.Errorf("%w: secondary plane is %d bytes, want %d", ErrDimensionMismatch, len(secondary), size)
	}
	d.state = Displaying
	return d.refresh(ctx, primary, secondary)
}

// DisplayImage encodes black and red into planes and displays them. A nil
// red image leaves the secondary plane white. Images may be landscape or
// portrait.
func (d *Dev) DisplayImage(ctx context.Context, black, red image.Image) error {
	primary, err := framebuf.Encode(black, d.opts.W, d.opts.H)
	if err != nil {
		return err
	}
	secondary := framebuf.Blank(d.opts.W, d.opts.H)
	if red != nil {
		if secondary, err = framebuf.Encode(red, d.opts.W, d.opts.H); err != nil {
			return err
		}
	}
	return d.Display(ctx, primary, secondary)
}

// Sleep powers the panel off and puts it into deep sleep. The session is
// closed afterwards; Close still has to be called to release the bus.
func (d *Dev) Sleep(ctx context.Context) error {
	if err := d.require(Initialized, "sleep"); err != nil {
		return err
	}
	d.state = Sleeping
	if err := d.t.Exec(Command{Op: PowerOff}); err != nil {
		return d.fail(err)
	}
	if err := d.wait(ctx); err != nil {
		return d.fail(err)
	}
	if err := d.t.Exec(deepSleep()); err != nil {
		return d.fail(err)
	}
	d.state = Closed
	log.Debug().Str("bus", d.name).Msg("e-paper deep sleep")
	return nil
}

// Close drives the control lines low, closes the port if this session opened
// it and releases the bus. It can be called in any state, more than once,
// and always returns nil; cleanup failures are logged.
func (d *Dev) Close() error {
	if d.release == nil {
		return nil
	}
	if err := d.t.release(); err != nil {
		log.Warn().Err(err).Str("bus", d.name).Msg("failed to release e-paper control lines")
	}
	if d.closer != nil {
		if err := d.closer.Close(); err != nil {
			log.Warn().Err(err).Str("bus", d.name).Msg("failed to close e-paper bus")
		}
		d.closer = nil
	}
	d.release()
	d.release = nil
	d.state = Closed
	log.Debug().Str("bus", d.name).Msg("e-paper session closed")
	return nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("epaper.Dev{%s, %dx%d}", d.name, d.rect.Dx(), d.rect.Dy())
}

// Halt implements conn.Resource. It puts an initialized panel to sleep.
func (d *Dev) Halt() error {
	if d.state != Initialized {
		return nil
	}
	return d.Sleep(context.Background())
}

// ColorModel implements display.Drawer. Pixels are either black or white.
func (d *Dev) ColorModel() color.Model {
	return framebuf.BitModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw implements display.Drawer. The whole panel is refreshed; areas
// outside dst are white.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	next := image.NewGray(d.rect)
	draw.Draw(next, next.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(next, dst.Intersect(d.rect), src, sp, draw.Src)
	return d.DisplayImage(context.Background(), next, nil)
}

func (d *Dev) refresh(ctx context.Context, primary, secondary []byte) error {
	cmds := []Command{
		{Op: DataStartTransmission1, Data: primary},
		{Op: DataStartTransmission2, Data: secondary},
		{Op: DisplayRefresh},
	}
	for _, c := range cmds {
		if err := d.t.Exec(c); err != nil {
			return d.fail(err)
		}
	}
	if err := d.wait(ctx); err != nil {
		return d.fail(err)
	}
	d.state = Initialized
	return nil
}

func (d *Dev) wait(ctx context.Context) error {
	return d.t.WaitReady(ctx, d.opts.PollInterval, d.opts.BusyTimeout)
}

func (d *Dev) require(s State, op string) error {
	if d.state != s {
		return fmt.Errorf("%w: %s from %s", ErrInvalidState, op, d.state)
	}
	return nil
}

// fail marks the session as faulted; the panel state is unknown until the
// session is closed and a new one initialized.
func (d *Dev) fail(err error) error {
	d.state = Faulted
	log.Error().Err(err).Str("bus", d.name).Msg("e-paper operation failed")
	return err
}

var _ display.Drawer = &Dev{}
var _ conn.Resource = &Dev{}
