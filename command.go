package epaper

import "fmt"

// Opcode is a panel controller command byte.
type Opcode byte

// Controller opcodes.
const (
	PanelSetting           Opcode = 0x00
	PowerOff               Opcode = 0x02
	PowerOn                Opcode = 0x04
	BoosterSoftStart       Opcode = 0x06
	DeepSleep              Opcode = 0x07
	DataStartTransmission1 Opcode = 0x10 // primary (black) plane
	DisplayRefresh         Opcode = 0x12
	DataStartTransmission2 Opcode = 0x13 // secondary (red) plane
)

const (
	deepSleepCheckCode = 0xA5
	lutFromOTP         = 0x0F
	softStartPhase     = 0x17
)

// planePayload marks opcodes whose payload is one full frame buffer.
const planePayload = -1

var payloadLen = map[Opcode]int{
	PanelSetting:           1,
	PowerOff:               0,
	PowerOn:                0,
	BoosterSoftStart:       3,
	DeepSleep:              1,
	DataStartTransmission1: planePayload,
	DisplayRefresh:         0,
	DataStartTransmission2: planePayload,
}

var opcodeNames = map[Opcode]string{
	PanelSetting:           "PANEL_SETTING",
	PowerOff:               "POWER_OFF",
	PowerOn:                "POWER_ON",
	BoosterSoftStart:       "BOOSTER_SOFT_START",
	DeepSleep:              "DEEP_SLEEP",
	DataStartTransmission1: "DATA_START_TRANSMISSION_1",
	DisplayRefresh:         "DISPLAY_REFRESH",
	DataStartTransmission2: "DATA_START_TRANSMISSION_2",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Opcode(0x%02X)", byte(o))
}

// Command is one opcode and its data payload.
type Command struct {
	Op   Opcode
	Data []byte
}

// Validate checks that c carries the payload length its opcode requires.
// planeSize is the frame buffer size of the panel.
func (c Command) Validate(planeSize int) error {
	want, ok := payloadLen[c.Op]
	if !ok {
		return fmt.Errorf("%w: unknown opcode %s", ErrInvalidCommand, c.Op)
	}
	if want == planePayload {
		want = planeSize
	}
	if len(c.Data) != want {
		return fmt.Errorf("%w: %s takes %d data bytes, got %d", ErrInvalidCommand, c.Op, want, len(c.Data))
	}
	return nil
}

func boosterSoftStart() Command {
	return Command{Op: BoosterSoftStart, Data: []byte{softStartPhase, softStartPhase, softStartPhase}}
}

func panelSetting() Command {
	return Command{Op: PanelSetting, Data: []byte{lutFromOTP}}
}

func deepSleep() Command {
	return Command{Op: DeepSleep, Data: []byte{deepSleepCheckCode}}
}
