// Package uart drives the serial variant of the e-paper panel, which keeps
// bitmaps on its own storage and draws them by file name.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/amancevice/epaper/internal/buslock"
	"github.com/amancevice/epaper/internal/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Defaults.
const (
	DefaultBaudRate = 115200
	// WakeDelay is how long the panel needs after a handshake before it
	// accepts drawing commands.
	WakeDelay = 2 * time.Second

	readPoll = 100 * time.Millisecond
)

var (
	// ErrResponse is returned when the panel answers with an error code.
	ErrResponse = errors.New("uart: panel returned an error")
	// ErrBusy is returned by Open when the port already has a session.
	ErrBusy = errors.New("uart: port already has an open session")
	// ErrClosed is returned when using a closed Dev.
	ErrClosed = errors.New("uart: device closed")
)

// Port is the subset of serial.Port the driver uses.
type Port interface {
	io.ReadWriter
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a serial port.
type PortFactory func(path string, mode *serial.Mode) (Port, error)

// DefaultPortFactory opens a real serial port.
func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// Opts configures a serial panel connection.
type Opts struct {
	BaudRate int             // default: 115200
	Factory  PortFactory     // default: DefaultPortFactory
	Clock    clockwork.Clock // default: real clock
}

// Response is one status token read back from the panel.
type Response struct {
	Failed bool
	Code   int // Error code, when Failed
}

// OK reports whether the panel accepted the command.
func (r Response) OK() bool { return !r.Failed }

func (r Response) String() string {
	if r.OK() {
		return "OK"
	}
	return "Error:" + strconv.Itoa(r.Code)
}

// Dev is an open serial panel session.
type Dev struct {
	path    string
	port    Port
	clock   clockwork.Clock
	release func()
	mu      syncutil.Mutex
}

// Open opens the serial port at path at 8N1 and takes exclusive ownership
// of it.
func Open(path string, opts *Opts) (*Dev, error) {
	var o Opts
	if opts != nil {
		o = *opts
	}
	if o.BaudRate == 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.Factory == nil {
		o.Factory = DefaultPortFactory
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}

	release, err := buslock.Default.Acquire("uart:" + path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}

	port, err := o.Factory(path, &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readPoll); err != nil {
		release()
		if cerr := port.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("path", path).Msg("failed to close serial port")
		}
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}

	log.Debug().Str("path", path).Int("baud", o.BaudRate).Msg("opened serial panel")
	return &Dev{path: path, port: port, clock: o.Clock, release: release}, nil
}

// String returns the port path.
func (d *Dev) String() string {
	return "uart:" + d.path
}

// Send writes frames in order.
func (d *Dev) Send(frames ...Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return ErrClosed
	}

	for _, f := range frames {
		b, err := f.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := d.port.Write(b); err != nil {
			return fmt.Errorf("failed to write command 0x%02X: %w", byte(f.Cmd), err)
		}
		log.Debug().Hex("frame", b).Msg("sent serial panel command")
	}
	return nil
}

// Wake sends a handshake and waits WakeDelay for the panel to come up.
func (d *Dev) Wake(ctx context.Context) error {
	if err := d.Send(Handshake()); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(WakeDelay):
		return nil
	}
}

// ReadResponses collects the status tokens the panel sends within timeout.
// It returns every token read and ErrResponse if any of them is an error.
func (d *Dev) ReadResponses(ctx context.Context, timeout time.Duration) ([]Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil, ErrClosed
	}

	start := d.clock.Now()
	var got []byte
	buf := make([]byte, 256)
	for d.clock.Since(start) < timeout {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := d.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		got = append(got, buf[:n]...)
	}

	resps := parseResponses(got)
	var all, failed []string
	for _, r := range resps {
		all = append(all, r.String())
		if !r.OK() {
			failed = append(failed, r.String())
		}
	}
	log.Debug().Strs("responses", all).Msg("read serial panel responses")
	if len(failed) > 0 {
		return resps, fmt.Errorf("%w: %s", ErrResponse, strings.Join(failed, ", "))
	}
	return resps, nil
}

// Close closes the port and releases it. It is safe to call more than once.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.release()
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// parseResponses splits b into OK and Error:N tokens, skipping anything
// else.
func parseResponses(b []byte) []Response {
	var resps []Response
	s := string(b)
	for {
		ok := strings.Index(s, "OK")
		bad := strings.Index(s, "Error:")
		switch {
		case ok < 0 && bad < 0:
			return resps
		case bad < 0 || (ok >= 0 && ok < bad):
			resps = append(resps, Response{})
			s = s[ok+2:]
		default:
			s = s[bad+len("Error:"):]
			end := 0
			for end < len(s) && s[end] >= '0' && s[end] <= '9' {
				end++
			}
			if end == 0 {
				continue
			}
			code, _ := strconv.Atoi(s[:end])
			resps = append(resps, Response{Failed: true, Code: code})
			s = s[end:]
		}
	}
}
