package uart

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Frame markers.
const (
	FrameHeader = 0xA5

	// frame overhead: header, length, command, tail, parity
	frameOverhead = 1 + 2 + 1 + 4 + 1
)

// FrameTail ends every frame before the parity byte.
var FrameTail = [4]byte{0xCC, 0x33, 0xC3, 0x3C}

// ErrInvalidFrame is returned when bytes do not decode to a well-formed frame.
var ErrInvalidFrame = errors.New("uart: invalid frame")

// Command is a serial panel command byte.
type Command byte

// Panel commands.
const (
	CmdHandshake      Command = 0x00
	CmdSetStorageMode Command = 0x07
	CmdSleep          Command = 0x08
	CmdRefresh        Command = 0x0A
	CmdSetRotation    Command = 0x0D
	CmdImportImage    Command = 0x0F
	CmdSetColor       Command = 0x10
	CmdFillRectangle  Command = 0x24
	CmdClear          Command = 0x2E
	CmdDisplayImage   Command = 0x70
)

// Storage modes.
const (
	StorageNAND byte = 0x00
	StorageTF   byte = 0x01
)

// Display rotations.
const (
	RotationNormal byte = 0x00
	RotationFlip   byte = 0x01
)

// Colors for SetColor.
const (
	ColorBlack    byte = 0x00
	ColorDarkGray byte = 0x01
	ColorGray     byte = 0x02
	ColorWhite    byte = 0x03
)

// Frame is one command and its parameters.
type Frame struct {
	Cmd  Command
	Data []byte
}

// MarshalBinary encodes f as header, big-endian total length, command,
// data, tail and the XOR parity of everything before it.
func (f Frame) MarshalBinary() ([]byte, error) {
	n := frameOverhead + len(f.Data)
	if n > 0xFFFF {
		return nil, fmt.Errorf("%w: %d data bytes", ErrInvalidFrame, len(f.Data))
	}
	buf := make([]byte, 0, n)
	buf = append(buf, FrameHeader)
	buf = binary.BigEndian.AppendUint16(buf, uint16(n))
	buf = append(buf, byte(f.Cmd))
	buf = append(buf, f.Data...)
	buf = append(buf, FrameTail[:]...)
	return append(buf, parity(buf)), nil
}

// ParseFrame decodes one complete frame.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < frameOverhead {
		return Frame{}, fmt.Errorf("%w: %d bytes is too short", ErrInvalidFrame, len(b))
	}
	if b[0] != FrameHeader {
		return Frame{}, fmt.Errorf("%w: header 0x%02X", ErrInvalidFrame, b[0])
	}
	if n := int(binary.BigEndian.Uint16(b[1:3])); n != len(b) {
		return Frame{}, fmt.Errorf("%w: length field %d, frame is %d bytes", ErrInvalidFrame, n, len(b))
	}
	last := len(b) - 1
	if p := parity(b[:last]); p != b[last] {
		return Frame{}, fmt.Errorf("%w: parity 0x%02X, want 0x%02X", ErrInvalidFrame, b[last], p)
	}
	if [4]byte(b[last-4:last]) != FrameTail {
		return Frame{}, fmt.Errorf("%w: bad tail", ErrInvalidFrame)
	}

	f := Frame{Cmd: Command(b[3])}
	if data := b[4 : last-4]; len(data) > 0 {
		f.Data = append([]byte(nil), data...)
	}
	return f, nil
}

func parity(b []byte) byte {
	var p byte
	for _, c := range b {
		p ^= c
	}
	return p
}

// Handshake checks that the panel is listening.
func Handshake() Frame { return Frame{Cmd: CmdHandshake} }

// SetStorageMode selects where images are read from.
func SetStorageMode(mode byte) Frame {
	return Frame{Cmd: CmdSetStorageMode, Data: []byte{mode}}
}

// Sleep puts the panel to sleep until its wake line is pulsed.
func Sleep() Frame { return Frame{Cmd: CmdSleep} }

// Refresh draws the panel's buffer onto the glass.
func Refresh() Frame { return Frame{Cmd: CmdRefresh} }

// SetRotation sets the display rotation.
func SetRotation(r byte) Frame {
	return Frame{Cmd: CmdSetRotation, Data: []byte{r}}
}

// ImportImage copies the bitmaps on the TF card into NAND storage.
func ImportImage() Frame { return Frame{Cmd: CmdImportImage} }

// SetColor sets the foreground and background drawing colors.
func SetColor(fg, bg byte) Frame {
	return Frame{Cmd: CmdSetColor, Data: []byte{fg, bg}}
}

// FillRectangle fills the rectangle from (x0, y0) to (x1, y1) with the
// foreground color.
func FillRectangle(x0, y0, x1, y1 uint16) Frame {
	data := binary.BigEndian.AppendUint16(nil, x0)
	data = binary.BigEndian.AppendUint16(data, y0)
	data = binary.BigEndian.AppendUint16(data, x1)
	data = binary.BigEndian.AppendUint16(data, y1)
	return Frame{Cmd: CmdFillRectangle, Data: data}
}

// Clear fills the panel buffer with the background color.
func Clear() Frame { return Frame{Cmd: CmdClear} }

// DisplayImage draws the stored bitmap name with its top left corner at
// (x, y). The panel only matches upper case names.
func DisplayImage(x, y uint16, name string) Frame {
	data := binary.BigEndian.AppendUint16(nil, x)
	data = binary.BigEndian.AppendUint16(data, y)
	data = append(data, strings.ToUpper(name)...)
	data = append(data, 0x00)
	return Frame{Cmd: CmdDisplayImage, Data: data}
}
