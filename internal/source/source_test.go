package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"danmaku-overlay/internal/danmaku"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.xml":
			w.Write([]byte("<i></i>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())

	p, err := f.Fetch(context.Background(), srv.URL+"/ok.xml")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(p.Raw) != "<i></i>" || p.Tuples != nil {
		t.Errorf("payload = %+v", p)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrStatus) {
		t.Errorf("expected ErrStatus, got %v", err)
	}
}

func TestHTTPFetcher_Fetch_cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPFetcher(nil).Fetch(ctx, srv.URL); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestHTTPFetcher_Fetch_local_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.json")
	if err := os.WriteFile(path, []byte(`[[1,0,"#fff","u","x"]]`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewHTTPFetcher(nil)
	f.AllowLocal = true
	for _, url := range []string{path, "file://" + path} {
		p, err := f.Fetch(context.Background(), url)
		if err != nil || len(p.Raw) == 0 {
			t.Errorf("Fetch(%q) = %v, %v", url, p, err)
		}
	}
}

func TestHTTPFetcher_Fetch_rejects_local_by_default(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewHTTPFetcher(nil)
	for _, url := range []string{"/etc/passwd", "file:///etc/passwd", path, "ftp://host/x"} {
		p, err := f.Fetch(context.Background(), url)
		if !errors.Is(err, ErrUnsupportedURL) || p.Raw != nil {
			t.Errorf("Fetch(%q) = %d bytes, %v; want ErrUnsupportedURL", url, len(p.Raw), err)
		}
	}
}

func TestStatic_Fetch(t *testing.T) {
	s := Static{"mem://a": {{Time: 1, Mode: danmaku.ModeTop, Text: "x"}}}
	p, err := s.Fetch(context.Background(), "mem://a")
	if err != nil || len(p.Tuples) != 1 {
		t.Errorf("Fetch = %+v, %v", p, err)
	}
	if _, err := s.Fetch(context.Background(), "mem://b"); !errors.Is(err, ErrStatus) {
		t.Errorf("expected ErrStatus, got %v", err)
	}
}
