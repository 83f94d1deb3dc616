package uart

import (
	"fmt"
	"time"
)

// Clock face layout on an 800x600 panel.
const (
	minuteY      = 315
	minuteYLower = 395 // H08 has a taller glyph
)

// ClockFace is the set of stored bitmaps that show a time of day.
type ClockFace struct {
	Hour    string // e.g. H03.BMP
	Minute  string // e.g. M25.BMP
	MinuteY uint16
}

// ClockImages returns the bitmaps for t on a 12-hour face with the minutes
// rounded down to five.
func ClockImages(t time.Time) ClockFace {
	f := ClockFace{
		Hour:    fmt.Sprintf("H%02d.BMP", t.Hour()%12),
		Minute:  fmt.Sprintf("M%02d.BMP", t.Minute()-t.Minute()%5),
		MinuteY: minuteY,
	}
	if f.Hour == "H08.BMP" {
		f.MinuteY = minuteYLower
	}
	return f
}

// Frames returns the commands that draw f on a flipped, blank panel and
// refresh it.
func (f ClockFace) Frames() []Frame {
	return []Frame{
		SetRotation(RotationFlip),
		FillRectangle(0, 0, 800, 600),
		DisplayImage(0, 0, f.Hour),
		DisplayImage(0, f.MinuteY, f.Minute),
		Refresh(),
	}
}

// HourlyImage returns the name of the bitmap drawn on the hour, T0100.BMP
// through T1200.BMP.
func HourlyImage(t time.Time) string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("T%02d00.BMP", h)
}
