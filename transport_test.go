package epaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// frame is one bus transfer together with the DC level it was sent with.
type frame struct {
	dc   gpio.Level
	data []byte
}

type pinEvent struct {
	pin   string
	level gpio.Level
	at    time.Time
}

// bench is a fake panel wiring: recording output pins, a scripted busy line
// and a bus that logs every transfer.
type bench struct {
	clock  *clockwork.FakeClock
	pinLog []pinEvent
	frames []frame
	dc     gpio.Level
	txErr  error
	maxTx  int

	busy *busyPin
	pins Pins
	conn *fakeConn
}

func newBench(t *testing.T) *bench {
	t.Helper()
	b := &bench{clock: clockwork.NewFakeClock()}
	b.busy = &busyPin{Pin: &gpiotest.Pin{N: "BUSY"}}
	b.pins = Pins{RST: b.outPin("RST"), DC: b.outPin("DC"), Busy: b.busy}
	b.conn = &fakeConn{b: b, name: t.Name()}
	return b
}

func (b *bench) outPin(name string) *recPin {
	return &recPin{Pin: &gpiotest.Pin{N: name}, b: b}
}

func (b *bench) withCS() {
	b.pins.CS = b.outPin("CS")
}

// opts returns options for a small 16x2 panel (4 byte planes) on the fake
// clock.
func (b *bench) opts() *Opts {
	return &Opts{W: 16, H: 2, Clock: b.clock}
}

// stream merges consecutive transfers sent at the same DC level.
func (b *bench) stream() []frame {
	var out []frame
	for _, f := range b.frames {
		if n := len(out); n > 0 && out[n-1].dc == f.dc {
			out[n-1].data = append(out[n-1].data, f.data...)
			continue
		}
		out = append(out, frame{dc: f.dc, data: append([]byte(nil), f.data...)})
	}
	return out
}

// data returns every byte sent with DC high.
func (b *bench) data() []byte {
	var out []byte
	for _, f := range b.frames {
		if f.dc == gpio.High {
			out = append(out, f.data...)
		}
	}
	return out
}

func (b *bench) pinEvents(name string) []pinEvent {
	var out []pinEvent
	for _, e := range b.pinLog {
		if e.pin == name {
			out = append(out, e)
		}
	}
	return out
}

// autoAdvance moves the fake clock forward whenever something waits on it.
func (b *bench) autoAdvance(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := b.clock.BlockUntilContext(ctx, 1); err != nil {
				return
			}
			b.clock.Advance(time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

type recPin struct {
	*gpiotest.Pin
	b *bench
}

func (p *recPin) Out(l gpio.Level) error {
	p.b.pinLog = append(p.b.pinLog, pinEvent{pin: p.Name(), level: l, at: p.b.clock.Now()})
	if p.Name() == "DC" {
		p.b.dc = l
	}
	return p.Pin.Out(l)
}

// busyPin reports busy for its first busyReads reads, forever when negative.
type busyPin struct {
	*gpiotest.Pin
	busyLevel gpio.Level
	busyReads int
	reads     int
}

func (p *busyPin) Read() gpio.Level {
	p.reads++
	if p.busyReads < 0 || p.reads <= p.busyReads {
		return p.busyLevel
	}
	return !p.busyLevel
}

type fakeConn struct {
	b    *bench
	name string
}

func (c *fakeConn) String() string      { return c.name }
func (c *fakeConn) Duplex() conn.Duplex { return conn.Half }
func (c *fakeConn) MaxTxSize() int      { return c.b.maxTx }

func (c *fakeConn) Tx(w, r []byte) error {
	if c.b.txErr != nil {
		return c.b.txErr
	}
	c.b.frames = append(c.b.frames, frame{dc: c.b.dc, data: append([]byte(nil), w...)})
	return nil
}

func TestTransportReset(t *testing.T) {
	b := newBench(t)
	b.autoAdvance(t)
	tr := NewTransport(b.conn, b.pins, b.opts())

	start := b.clock.Now()
	require.NoError(t, tr.Reset())

	events := b.pinEvents("RST")
	require.Len(t, events, 3)
	assert.Equal(t, gpio.High, events[0].level)
	assert.Equal(t, gpio.Low, events[1].level)
	assert.Equal(t, gpio.High, events[2].level)
	assert.Equal(t, time.Duration(0), events[0].at.Sub(start))
	assert.Equal(t, 200*time.Millisecond, events[1].at.Sub(start))
	assert.Equal(t, 210*time.Millisecond, events[2].at.Sub(start))
	assert.Equal(t, 410*time.Millisecond, b.clock.Since(start))
	assert.Empty(t, b.frames)
}

func TestTransportSendCommand(t *testing.T) {
	b := newBench(t)
	b.withCS()
	tr := NewTransport(b.conn, b.pins, b.opts())

	require.NoError(t, tr.SendCommand(PowerOn))

	assert.Equal(t, []frame{{dc: gpio.Low, data: []byte{0x04}}}, b.frames)
	var seq []string
	for _, e := range b.pinLog {
		seq = append(seq, e.pin+"="+e.level.String())
	}
	assert.Equal(t, []string{"DC=Low", "CS=Low", "CS=High"}, seq)
}

func TestTransportWriteProfiles(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	batched := newBench(t)
	tr := NewTransport(batched.conn, batched.pins, batched.opts())
	require.NoError(t, tr.Exec(Command{Op: DataStartTransmission1, Data: payload}))

	perByte := newBench(t)
	o := perByte.opts()
	o.PerByte = true
	tr = NewTransport(perByte.conn, perByte.pins, o)
	require.NoError(t, tr.Exec(Command{Op: DataStartTransmission1, Data: payload}))

	assert.Len(t, batched.frames, 2)
	assert.Len(t, perByte.frames, 5)
	assert.Equal(t, batched.stream(), perByte.stream())
	assert.Equal(t, payload, perByte.data())
}

func TestTransportPerByteFraming(t *testing.T) {
	b := newBench(t)
	b.withCS()
	o := b.opts()
	o.PerByte = true
	tr := NewTransport(b.conn, b.pins, o)

	require.NoError(t, tr.SendData(0xAA, 0xBB))

	var seq []string
	for _, e := range b.pinLog {
		seq = append(seq, e.pin+"="+e.level.String())
	}
	assert.Equal(t, []string{
		"DC=High", "CS=Low", "CS=High",
		"DC=High", "CS=Low", "CS=High",
	}, seq)
	assert.Equal(t, []frame{
		{dc: gpio.High, data: []byte{0xAA}},
		{dc: gpio.High, data: []byte{0xBB}},
	}, b.frames)
}

func TestTransportChunking(t *testing.T) {
	b := newBench(t)
	b.maxTx = 3
	tr := NewTransport(b.conn, b.pins, &Opts{W: 80, H: 1, Clock: b.clock})

	plane := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.NoError(t, tr.Exec(Command{Op: DataStartTransmission2, Data: plane}))

	var sizes []int
	for _, f := range b.frames {
		sizes = append(sizes, len(f.data))
	}
	assert.Equal(t, []int{1, 3, 3, 3, 1}, sizes)
	assert.Equal(t, plane, b.data())
}

func TestTransportExecValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"payload on power on", Command{Op: PowerOn, Data: []byte{0x01}}},
		{"short booster", Command{Op: BoosterSoftStart, Data: []byte{0x17}}},
		{"short plane", Command{Op: DataStartTransmission1, Data: []byte{0xFF}}},
		{"unknown opcode", Command{Op: Opcode(0x99)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBench(t)
			tr := NewTransport(b.conn, b.pins, b.opts())

			err := tr.Exec(tt.cmd)
			assert.ErrorIs(t, err, ErrInvalidCommand)
			assert.Empty(t, b.frames)
			assert.Empty(t, b.pinLog)
		})
	}
}

func TestTransportIOError(t *testing.T) {
	b := newBench(t)
	cause := errors.New("spi: transfer failed")
	b.txErr = cause
	tr := NewTransport(b.conn, b.pins, b.opts())

	err := tr.SendCommand(DisplayRefresh)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportIO)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DISPLAY_REFRESH")
}

func TestWaitReadyIdle(t *testing.T) {
	b := newBench(t)
	tr := NewTransport(b.conn, b.pins, b.opts())

	require.NoError(t, tr.WaitReady(context.Background(), 100*time.Millisecond, 0))
	assert.Equal(t, 1, b.busy.reads)
}

func TestWaitReadyPolls(t *testing.T) {
	b := newBench(t)
	b.autoAdvance(t)
	b.busy.busyReads = 3
	tr := NewTransport(b.conn, b.pins, b.opts())

	start := b.clock.Now()
	require.NoError(t, tr.WaitReady(context.Background(), 100*time.Millisecond, time.Second))
	assert.Equal(t, 300*time.Millisecond, b.clock.Since(start))
	assert.Equal(t, 4, b.busy.reads)
}

func TestWaitReadyTimeout(t *testing.T) {
	b := newBench(t)
	b.autoAdvance(t)
	b.busy.busyReads = -1
	tr := NewTransport(b.conn, b.pins, b.opts())

	start := b.clock.Now()
	err := tr.WaitReady(context.Background(), 100*time.Millisecond, 250*time.Millisecond)
	assert.ErrorIs(t, err, ErrBusyTimeout)
	assert.Equal(t, 250*time.Millisecond, b.clock.Since(start))
}

func TestWaitReadyZeroTimeout(t *testing.T) {
	b := newBench(t)
	b.autoAdvance(t)
	b.busy.busyReads = -1
	tr := NewTransport(b.conn, b.pins, b.opts())

	start := b.clock.Now()
	err := tr.WaitReady(context.Background(), 100*time.Millisecond, 0)
	assert.ErrorIs(t, err, ErrBusyTimeout)
	assert.Equal(t, time.Duration(0), b.clock.Since(start))
	assert.Equal(t, 1, b.busy.reads)
}

func TestWaitReadyNoTimeout(t *testing.T) {
	b := newBench(t)
	b.autoAdvance(t)
	b.busy.busyReads = 50
	tr := NewTransport(b.conn, b.pins, b.opts())

	start := b.clock.Now()
	require.NoError(t, tr.WaitReady(context.Background(), 100*time.Millisecond, NoTimeout))
	assert.Equal(t, 5*time.Second, b.clock.Since(start))
}

func TestWaitReadyCanceled(t *testing.T) {
	b := newBench(t)
	b.busy.busyReads = -1
	tr := NewTransport(b.conn, b.pins, b.opts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.WaitReady(ctx, 100*time.Millisecond, NoTimeout)
	assert.ErrorIs(t, err, ErrBusyTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBusyLevel(t *testing.T) {
	b := newBench(t)
	b.busy.busyLevel = gpio.High
	b.busy.busyReads = 1
	o := b.opts()
	o.BusyLevel = gpio.High
	tr := NewTransport(b.conn, b.pins, o)

	assert.True(t, tr.Busy())
	assert.False(t, tr.Busy())
}
