// Package config loads the epaper tool's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	CfgEnv  = "EPAPER_CONFIG"
	CfgFile = "epaper.toml"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid config")

type Values struct {
	Panel  Panel  `toml:"panel"`
	Pins   Pins   `toml:"pins"`
	SPI    SPI    `toml:"spi"`
	Busy   Busy   `toml:"busy"`
	UART   UART   `toml:"uart"`
	Bitmap Bitmap `toml:"bitmap"`
	Log    Log    `toml:"log"`
}

type Panel struct {
	Width     int    `toml:"width" validate:"gt=0"`
	Height    int    `toml:"height" validate:"gt=0"`
	BusyLevel string `toml:"busy_level" validate:"oneof=low high"`
}

// Pins are gpioreg names. CS is empty when the SPI port drives chip select.
type Pins struct {
	Reset string `toml:"reset" validate:"required"`
	DC    string `toml:"dc" validate:"required"`
	CS    string `toml:"cs,omitempty"`
	Busy  string `toml:"busy" validate:"required"`
}

type SPI struct {
	Port        string `toml:"port,omitempty"`
	SpeedHz     int64  `toml:"speed_hz" validate:"gt=0"`
	BatchWrites bool   `toml:"batch_writes"`
}

type Busy struct {
	PollIntervalMs int `toml:"poll_interval_ms" validate:"gt=0"`
	// TimeoutMs of -1 waits forever.
	TimeoutMs int `toml:"timeout_ms" validate:"gte=-1,ne=0"`
}

type UART struct {
	Path string `toml:"path" validate:"required"`
	Baud int    `toml:"baud" validate:"gt=0"`
}

type Bitmap struct {
	Levels       int `toml:"levels" validate:"oneof=2 4"`
	BitsPerPixel int `toml:"bits_per_pixel" validate:"oneof=1 2 4"`
	MaxWidth     int `toml:"max_width" validate:"gt=0"`
	MaxHeight    int `toml:"max_height" validate:"gt=0"`
}

type Log struct {
	Level   string `toml:"level" validate:"oneof=trace debug info warn error"`
	File    string `toml:"file,omitempty"`
	Console bool   `toml:"console"`
}

// BaseDefaults matches a 4.2" panel on a Raspberry Pi HAT.
var BaseDefaults = Values{
	Panel: Panel{
		Width:     400,
		Height:    300,
		BusyLevel: "low",
	},
	Pins: Pins{
		Reset: "GPIO17",
		DC:    "GPIO25",
		Busy:  "GPIO24",
	},
	SPI: SPI{
		SpeedHz:     4_000_000,
		BatchWrites: true,
	},
	Busy: Busy{
		PollIntervalMs: 100,
		TimeoutMs:      30_000,
	},
	UART: UART{
		Path: "/dev/ttyS0",
		Baud: 115200,
	},
	Bitmap: Bitmap{
		Levels:       4,
		BitsPerPixel: 4,
		MaxWidth:     800,
		MaxHeight:    600,
	},
	Log: Log{
		Level:   "info",
		Console: true,
	},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Path returns the config path: the explicit path if set, then $EPAPER_CONFIG,
// then epaper.toml in the working directory.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(CfgEnv); p != "" {
		return p
	}
	return CfgFile
}

// Load reads path from fs on top of defaults. A missing file yields the
// defaults.
//
//nolint:gocritic // config struct copied for immutability
func Load(fs afero.Fs, path string, defaults Values) (Values, error) {
	vals := defaults

	data, err := afero.ReadFile(fs, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("path", path).Msg("no config file, using defaults")
	case err != nil:
		return Values{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &vals); err != nil {
			return Values{}, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		log.Debug().Str("path", path).Msg("loaded config file")
	}

	if err := Validate(vals); err != nil {
		return Values{}, err
	}
	return vals, nil
}

// Validate checks every field constraint of v.
func Validate(v Values) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Save writes v as TOML to path.
func Save(fs afero.Fs, path string, v Values) error {
	data, err := toml.Marshal(&v)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// BusyHigh reports whether the panel drives its busy line high while busy.
func (p Panel) BusyHigh() bool {
	return p.BusyLevel == "high"
}

// PollInterval returns the busy poll interval.
func (b Busy) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMs) * time.Millisecond
}

// Timeout returns the busy wait bound, negative to wait forever.
func (b Busy) Timeout() time.Duration {
	if b.TimeoutMs < 0 {
		return -1
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
