package format

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"danmaku-overlay/internal/danmaku"
)

// bilibili p attribute fields:
// time, mode, font size, color, unix timestamp, pool, user hash, row id.
const (
	bpTime = iota
	bpMode
	bpFontSize
	bpColor
	bpTimestamp
	bpPool
	bpUser
	bpRowID
	bpFields
)

type biliDocument struct {
	XMLName xml.Name      `xml:"i"`
	Records []biliComment `xml:"d"`
}

type biliComment struct {
	P    string `xml:"p,attr"`
	Text string `xml:",chardata"`
}

// BiliBiliDecoder reads the BiliBili XML comment format. Font size,
// timestamp, pool and row id are ignored.
type BiliBiliDecoder struct {
	Log *slog.Logger
}

// Decode implements danmaku.Decoder.
func (d BiliBiliDecoder) Decode(raw []byte) (danmaku.DecodeResult, error) {
	var doc biliDocument
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return danmaku.DecodeResult{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	out := make([]danmaku.Tuple, 0, len(doc.Records))
	for i, rec := range doc.Records {
		t, err := d.record(rec)
		if err != nil {
			return danmaku.DecodeResult{}, fmt.Errorf("%w: record %d: %w", ErrDecode, i, err)
		}
		out = append(out, t)
	}
	return danmaku.DecodeResult{Data: out}, nil
}

func (d BiliBiliDecoder) record(rec biliComment) (danmaku.Tuple, error) {
	p := strings.Split(rec.P, ",")
	if len(p) < bpFields {
		return danmaku.Tuple{}, fmt.Errorf("p attribute has %d fields, want %d", len(p), bpFields)
	}
	t, err := strconv.ParseFloat(p[bpTime], 64)
	if err != nil {
		return danmaku.Tuple{}, fmt.Errorf("time: %w", err)
	}
	mode, err := strconv.Atoi(p[bpMode])
	if err != nil {
		return danmaku.Tuple{}, fmt.Errorf("mode: %w", err)
	}
	color, err := strconv.ParseInt(p[bpColor], 10, 64)
	if err != nil {
		return danmaku.Tuple{}, fmt.Errorf("color: %w", err)
	}
	return danmaku.Tuple{
		Time:   t,
		Mode:   d.mode(mode, t),
		Color:  danmaku.HexColor(color),
		UserID: p[bpUser],
		Text:   rec.Text,
	}, nil
}

func (d BiliBiliDecoder) mode(n int, at float64) danmaku.Mode {
	switch n {
	case 1:
		return danmaku.ModeScroll
	case 4:
		return danmaku.ModeBottom
	case 5:
		return danmaku.ModeTop
	}
	if d.Log != nil {
		d.Log.Warn("unsupported bilibili mode, scrolling instead",
			slog.Int("mode", n),
			slog.Float64("time", at))
	}
	return danmaku.ModeScroll
}
