package epaper

import (
	"errors"

	"github.com/amancevice/epaper/bitmap"
	"github.com/amancevice/epaper/framebuf"
)

var (
	// ErrDimensionMismatch indicates an image or plane that does not match
	// the panel size.
	ErrDimensionMismatch = framebuf.ErrDimensionMismatch
	// ErrInconsistentPixelCount indicates decoded pixels that do not add up
	// to width*height.
	ErrInconsistentPixelCount = bitmap.ErrInconsistentPixelCount
	// ErrBusyTimeout indicates the panel did not release its busy line in time.
	ErrBusyTimeout = errors.New("epaper: busy timeout")
	// ErrBusBusy indicates another session already owns the bus.
	ErrBusBusy = errors.New("epaper: bus already has an open session")
	// ErrInitFailure indicates the reset or power-up sequence failed.
	ErrInitFailure = errors.New("epaper: initialization failed")
	// ErrTransportIO indicates a failed write to, or read from, the bus.
	ErrTransportIO = errors.New("epaper: transport I/O error")
	// ErrInvalidState indicates an operation not allowed in the session's
	// current state.
	ErrInvalidState = errors.New("epaper: invalid session state")
	// ErrInvalidCommand indicates a command whose payload length does not
	// match its opcode.
	ErrInvalidCommand = errors.New("epaper: invalid command")
)
