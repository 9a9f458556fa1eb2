// Package format decodes raw annotation sources into danmaku tuples.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"danmaku-overlay/internal/danmaku"
)

// Names of the built-in formats.
const (
	Native   = "native"
	BiliBili = "bilibili"
)

// ErrDecode is returned when a payload cannot be parsed.
var ErrDecode = errors.New("decode failed")

// Decoders returns every built-in decoder keyed by format name.
func Decoders(log *slog.Logger) map[string]danmaku.Decoder {
	if log == nil {
		log = slog.Default()
	}
	return map[string]danmaku.Decoder{
		Native:   NativeDecoder{},
		BiliBili: BiliBiliDecoder{Log: log},
	}
}

// envelope is the JSON body of a native source.
type envelope struct {
	Code int             `json:"code"`
	Data []danmaku.Tuple `json:"data"`
	Msg  string          `json:"msg,omitempty"`
}

// NativeDecoder reads {"code":0,"data":[[time,mode,color,user,text],...]}.
// A bare JSON array of tuples is accepted as well.
type NativeDecoder struct{}

// Decode implements danmaku.Decoder.
func (NativeDecoder) Decode(raw []byte) (danmaku.DecodeResult, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		var bare []danmaku.Tuple
		if errArr := json.Unmarshal(raw, &bare); errArr != nil {
			return danmaku.DecodeResult{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return danmaku.DecodeResult{Data: bare}, nil
	}
	return danmaku.DecodeResult{Code: env.Code, Data: env.Data}, nil
}
