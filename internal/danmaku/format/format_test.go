package format

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"danmaku-overlay/internal/danmaku"
)

const biliSample = `<?xml version="1.0" encoding="UTF-8"?>
<i>
	<chatserver>chat.bilibili.com</chatserver>
	<chatid>1</chatid>
	<d p="12.5,1,25,16777215,1600000000,0,abc123,1001">scrolling</d>
	<d p="3.0,5,25,16711680,1600000001,0,def456,1002">pinned top</d>
	<d p="7.25,4,25,255,1600000002,0,ghi789,1003">pinned bottom</d>
	<d p="8,7,25,65280,1600000003,0,jkl000,1004">special</d>
</i>`

func TestBiliBiliDecoder_Decode(t *testing.T) {
	var logs bytes.Buffer
	dec := BiliBiliDecoder{Log: slog.New(slog.NewTextHandler(&logs, nil))}

	res, err := dec.Decode([]byte(biliSample))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Code != 0 || len(res.Data) != 4 {
		t.Fatalf("result = %+v", res)
	}

	first := res.Data[0]
	if first.Time != 12.5 || first.Mode != danmaku.ModeScroll || first.Color != "#ffffff" || first.UserID != "abc123" || first.Text != "scrolling" {
		t.Errorf("record 0 = %+v", first)
	}
	if res.Data[1].Mode != danmaku.ModeTop || res.Data[1].Color != "#ff0000" {
		t.Errorf("record 1 = %+v", res.Data[1])
	}
	if res.Data[2].Mode != danmaku.ModeBottom || res.Data[2].Color != "#0000ff" {
		t.Errorf("record 2 = %+v", res.Data[2])
	}
	if res.Data[3].Mode != danmaku.ModeScroll {
		t.Errorf("unknown mode should fall back to scroll, got %v", res.Data[3].Mode)
	}
	if !strings.Contains(logs.String(), "unsupported bilibili mode") {
		t.Errorf("expected a warning for mode 7, logs: %s", logs.String())
	}
}

func TestBiliBiliDecoder_Decode_errors(t *testing.T) {
	dec := BiliBiliDecoder{}
	if _, err := dec.Decode([]byte("<i><d p=")); !errors.Is(err, ErrDecode) {
		t.Errorf("truncated xml: expected ErrDecode, got %v", err)
	}
	if _, err := dec.Decode([]byte(`<i><d p="1,1,25">x</d></i>`)); !errors.Is(err, ErrDecode) {
		t.Errorf("short p attribute: expected ErrDecode, got %v", err)
	}
	if _, err := dec.Decode([]byte(`<i><d p="x,1,25,0,0,0,u,1">x</d></i>`)); !errors.Is(err, ErrDecode) {
		t.Errorf("bad time: expected ErrDecode, got %v", err)
	}
}

func TestNativeDecoder_Decode(t *testing.T) {
	res, err := NativeDecoder{}.Decode([]byte(`{"code":0,"data":[[2.5,"bottom","#00ff00","u1","hello"],[1,0,16777215,"u2","first"]]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Code != 0 || len(res.Data) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Data[0].Mode != danmaku.ModeBottom || res.Data[1].Color != "#ffffff" {
		t.Errorf("data = %+v", res.Data)
	}

	res, err = NativeDecoder{}.Decode([]byte(`{"code":1,"msg":"not found"}`))
	if err != nil || res.Code != 1 {
		t.Errorf("non-zero code should be passed through, got %+v, %v", res, err)
	}

	res, err = NativeDecoder{}.Decode([]byte(`[[1,"top","#fff","u","bare"]]`))
	if err != nil || len(res.Data) != 1 || res.Data[0].Text != "bare" {
		t.Errorf("bare array: %+v, %v", res, err)
	}

	if _, err := (NativeDecoder{}).Decode([]byte("not json")); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDecoders(t *testing.T) {
	ds := Decoders(nil)
	for _, name := range []string{Native, BiliBili} {
		if _, ok := ds[name]; !ok {
			t.Errorf("missing decoder %q", name)
		}
	}
}
