package danmaku

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Mode is the placement of an annotation on the overlay. Numeric modes on
// the wire use these values: 0 scroll, 1 bottom, 2 top.
type Mode int

const (
	ModeScroll Mode = iota
	ModeBottom
	ModeTop
)

// ErrInvalidMode is returned when an annotation is built with a mode that is
// not one of ModeScroll, ModeTop or ModeBottom.
var ErrInvalidMode = errors.New("invalid annotation mode")

// Valid reports whether m is one of the enumerated modes.
func (m Mode) Valid() bool {
	return m == ModeScroll || m == ModeTop || m == ModeBottom
}

// Fixed reports whether m holds the annotation static in a lane.
func (m Mode) Fixed() bool {
	return m == ModeTop || m == ModeBottom
}

func (m Mode) String() string {
	switch m {
	case ModeScroll:
		return "scroll"
	case ModeTop:
		return "top"
	case ModeBottom:
		return "bottom"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a mode name to a Mode. "right" is accepted as an alias for
// scroll.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scroll", "right":
		return ModeScroll, nil
	case "top":
		return ModeTop, nil
	case "bottom":
		return ModeBottom, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MarshalJSON encodes the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a numeric mode (0 scroll, 1 bottom, 2 top)
// or a mode name. Unknown numbers are kept as-is so that NewAnnotation can
// reject them.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*m = Mode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMode, string(b))
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Tuple is the wire shape of one record: [time, mode, color, userId, text].
type Tuple struct {
	Time   float64
	Mode   Mode
	Color  string
	UserID string
	Text   string
}

// UnmarshalJSON decodes a five element JSON array. Color and user id may be
// strings or numbers; numeric colors are converted to "#rrggbb".
func (t *Tuple) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 5 {
		return fmt.Errorf("tuple: want 5 fields, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &t.Time); err != nil {
		return fmt.Errorf("tuple time: %w", err)
	}
	if err := json.Unmarshal(raw[1], &t.Mode); err != nil {
		return err
	}
	color, err := scalarString(raw[2])
	if err != nil {
		return fmt.Errorf("tuple color: %w", err)
	}
	if n, ok := numeric(raw[2]); ok {
		color = HexColor(n)
	}
	t.Color = color
	if t.UserID, err = scalarString(raw[3]); err != nil {
		return fmt.Errorf("tuple user: %w", err)
	}
	if err := json.Unmarshal(raw[4], &t.Text); err != nil {
		return fmt.Errorf("tuple text: %w", err)
	}
	return nil
}

// MarshalJSON encodes the tuple back to its array form.
func (t Tuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Time, int(t.Mode), t.Color, t.UserID, t.Text})
}

// HexColor formats a packed 24-bit RGB value as "#rrggbb".
func HexColor(n int64) string {
	return fmt.Sprintf("#%06x", n&0xffffff)
}

func numeric(b json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return 0, false
	}
	return n, true
}

func scalarString(b json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// Annotation is one parsed danmaku record. Its identity is its address:
// two annotations with equal fields are still distinct entries.
type Annotation struct {
	time   float64
	mode   Mode
	color  string
	userID string
	text   string
}

// NewAnnotation builds an annotation from a tuple, failing with
// ErrInvalidMode when the tuple's mode is not recognized.
func NewAnnotation(t Tuple) (*Annotation, error) {
	if !t.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(t.Mode))
	}
	return &Annotation{
		time:   t.Time,
		mode:   t.Mode,
		color:  t.Color,
		userID: t.UserID,
		text:   t.Text,
	}, nil
}

func (a *Annotation) Time() float64  { return a.time }
func (a *Annotation) Mode() Mode     { return a.mode }
func (a *Annotation) Color() string  { return a.color }
func (a *Annotation) UserID() string { return a.userID }
func (a *Annotation) Text() string   { return a.text }

// VisibleItem pairs an active annotation with its rendering handle.
type VisibleItem struct {
	Annotation *Annotation
	Handle     Handle
	Lane       int
	Width      float64
	Duration   float64 // seconds
}

// ItemView is a read-only description of a visible item.
type ItemView struct {
	Lane   int     `json:"lane"`
	Mode   Mode    `json:"mode"`
	Time   float64 `json:"time"`
	Text   string  `json:"text"`
	Color  string  `json:"color"`
	UserID string  `json:"user_id"`
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
}

func (v *VisibleItem) view() ItemView {
	b := v.Handle.Bounds()
	return ItemView{
		Lane:   v.Lane,
		Mode:   v.Annotation.mode,
		Time:   v.Annotation.time,
		Text:   v.Annotation.text,
		Color:  v.Annotation.color,
		UserID: v.Annotation.userID,
		X:      b.X,
		Width:  b.W,
	}
}
