package epaper

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// Reset pulse timing.
const (
	resetSettle = 200 * time.Millisecond
	resetPulse  = 10 * time.Millisecond
)

// NoTimeout makes WaitReady wait for as long as the panel stays busy.
const NoTimeout time.Duration = -1

// Pins are the GPIO lines wired to the panel controller.
type Pins struct {
	RST  gpio.PinOut // Reset, active low
	DC   gpio.PinOut // Data (high) / command (low) select
	CS   gpio.PinOut // Chip select, active low. Nil when the SPI port drives it.
	Busy gpio.PinIn  // Busy signal from the panel
}

func (p Pins) validate() error {
	if p.RST == nil || p.DC == nil || p.Busy == nil {
		return fmt.Errorf("%w: RST, DC and Busy pins are required", ErrInitFailure)
	}
	return nil
}

// Transport frames opcodes and payload bytes onto the bus and synchronizes
// with the panel's busy line. It keeps no state between calls besides its
// configuration.
type Transport struct {
	c         conn.Conn
	pins      Pins
	clock     clockwork.Clock
	busyLevel gpio.Level
	perByte   bool
	planeSize int
}

// NewTransport returns a Transport over c and pins. opts supplies the busy
// polarity, the write profile and the clock.
func NewTransport(c conn.Conn, pins Pins, opts *Opts) *Transport {
	o := opts.withDefaults()
	return &Transport{
		c:         c,
		pins:      pins,
		clock:     o.Clock,
		busyLevel: o.BusyLevel,
		perByte:   o.PerByte,
		planeSize: planeSize(o.W, o.H),
	}
}

// Reset pulses the reset line: high 200ms, low 10ms, high 200ms.
func (t *Transport) Reset() error {
	steps := []struct {
		level gpio.Level
		wait  time.Duration
	}{
		{gpio.High, resetSettle},
		{gpio.Low, resetPulse},
		{gpio.High, resetSettle},
	}
	for _, s := range steps {
		if err := t.pins.RST.Out(s.level); err != nil {
			return t.ioErr("reset", err)
		}
		t.clock.Sleep(s.wait)
	}
	return nil
}

// SendCommand writes a single opcode with the DC line low.
func (t *Transport) SendCommand(op Opcode) error {
	if err := t.frame(gpio.Low, []byte{byte(op)}); err != nil {
		return t.ioErr("send command "+op.String(), err)
	}
	return nil
}

// SendData writes payload bytes with the DC line high. Batched transports
// write the whole payload in one chip-select frame, per-byte transports
// frame each byte on its own.
func (t *Transport) SendData(data ...byte) error {
	if len(data) == 0 {
		return nil
	}
	if !t.perByte {
		if err := t.frame(gpio.High, data); err != nil {
			return t.ioErr("send data", err)
		}
		return nil
	}
	for i := range data {
		if err := t.frame(gpio.High, data[i:i+1]); err != nil {
			return t.ioErr(fmt.Sprintf("send data byte %d", i), err)
		}
	}
	return nil
}

// Exec validates cmd and writes its opcode followed by its payload. Nothing
// is written when validation fails.
func (t *Transport) Exec(cmd Command) error {
	if err := cmd.Validate(t.planeSize); err != nil {
		return err
	}
	if err := t.SendCommand(cmd.Op); err != nil {
		return err
	}
	return t.SendData(cmd.Data...)
}

// Busy reports whether the panel is currently signalling busy.
func (t *Transport) Busy() bool {
	return t.pins.Busy.Read() == t.busyLevel
}

// WaitReady polls the busy line every poll interval until the panel is idle.
//
// A negative timeout (NoTimeout) waits indefinitely. A zero timeout checks
// the line once. Expiry or cancellation of ctx returns ErrBusyTimeout.
func (t *Transport) WaitReady(ctx context.Context, poll, timeout time.Duration) error {
	if !t.Busy() {
		return nil
	}

	start := t.clock.Now()
	log.Debug().Dur("timeout", timeout).Msg("e-paper busy")

	for {
		if timeout >= 0 && t.clock.Since(start) >= timeout {
			return fmt.Errorf("%w: still busy after %s", ErrBusyTimeout, timeout)
		}
		wait := poll
		if timeout >= 0 {
			wait = min(wait, timeout-t.clock.Since(start))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBusyTimeout, ctx.Err())
		case <-t.clock.After(wait):
		}
		if !t.Busy() {
			break
		}
	}

	log.Debug().Dur("waited", t.clock.Since(start)).Msg("e-paper busy release")
	return nil
}

// release drives the control lines to their idle, low-power levels.
func (t *Transport) release() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(t.pins.RST.Out(gpio.Low))
	keep(t.pins.DC.Out(gpio.Low))
	if t.pins.CS != nil {
		keep(t.pins.CS.Out(gpio.High))
	}
	return firstErr
}

// frame writes w inside one chip-select assertion with DC at level.
func (t *Transport) frame(level gpio.Level, w []byte) error {
	if err := t.pins.DC.Out(level); err != nil {
		return err
	}
	if t.pins.CS != nil {
		if err := t.pins.CS.Out(gpio.Low); err != nil {
			return err
		}
	}
	err := t.tx(w)
	if t.pins.CS != nil {
		if csErr := t.pins.CS.Out(gpio.High); err == nil {
			err = csErr
		}
	}
	return err
}

// tx splits w into transfers the bus driver can take in one go.
func (t *Transport) tx(w []byte) error {
	limit := len(w)
	if l, ok := t.c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		limit = l.MaxTxSize()
	}
	for len(w) > 0 {
		n := min(len(w), limit)
		if err := t.c.Tx(w[:n], nil); err != nil {
			return err
		}
		w = w[n:]
	}
	return nil
}

func (t *Transport) ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransportIO, op, err)
}
