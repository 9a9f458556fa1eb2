package danmaku

import (
	"errors"
	"math"
	"time"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultFontSize      = 25
	DefaultLineSpacing   = 1.2
	DefaultLineMargin    = 20
	DefaultSpeed         = 144 // pixels per second
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultTolerance     = 0.1 // seconds
	DefaultFixedDuration = 5   // seconds
)

var (
	// ErrNegativeMargin is returned by SetLineMargin for values below zero.
	ErrNegativeMargin = errors.New("line margin must not be negative")
	// ErrInvalidFontSize is returned by SetFontSize for values below one.
	ErrInvalidFontSize = errors.New("font size must be positive")
	// ErrInvalidSpeed is returned by SetSpeed for values that are not positive.
	ErrInvalidSpeed = errors.New("speed must be positive")
)

// Options are the engine tunables.
type Options struct {
	FontSize      int
	LineSpacing   float64
	LineMargin    float64
	Speed         float64
	TickInterval  time.Duration
	Tolerance     float64
	FixedDuration float64
}

// DefaultOptions returns Options populated with the package defaults.
func DefaultOptions() Options {
	return Options{
		FontSize:      DefaultFontSize,
		LineSpacing:   DefaultLineSpacing,
		LineMargin:    DefaultLineMargin,
		Speed:         DefaultSpeed,
		TickInterval:  DefaultTickInterval,
		Tolerance:     DefaultTolerance,
		FixedDuration: DefaultFixedDuration,
	}
}

// withDefaults fills zero and invalid fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FontSize <= 0 {
		o.FontSize = d.FontSize
	}
	if o.LineSpacing <= 0 {
		o.LineSpacing = d.LineSpacing
	}
	if o.LineMargin < 0 {
		o.LineMargin = d.LineMargin
	}
	if o.Speed <= 0 {
		o.Speed = d.Speed
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.FixedDuration <= 0 {
		o.FixedDuration = d.FixedDuration
	}
	return o
}

// LineHeight is the vertical size of one lane.
func (o Options) LineHeight() float64 {
	return math.Ceil(float64(o.FontSize) * o.LineSpacing)
}

// LaneCount is the number of lanes that fit in height.
func (o Options) LaneCount(height float64) int {
	lh := o.LineHeight()
	if lh <= 0 || height <= 0 {
		return 0
	}
	return int(math.Floor(height / lh))
}
