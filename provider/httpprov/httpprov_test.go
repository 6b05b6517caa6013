package httpprov

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// rangeServer serves content with full HEAD and Range support.
func rangeServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "data.bin", time.Unix(0, 0), strings.NewReader(content))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAndSizeViaHead(t *testing.T) {
	srv := rangeServer(t, "0123456789")
	p := New(srv.Client())

	res, size, err := p.OpenAndSize(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(res)

	if size != 10 {
		t.Errorf("expected size 10, got %d", size)
	}
}

func TestOpenAndSizeHeadRefused(t *testing.T) {
	content := "0123456789"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		http.ServeContent(w, r, "data.bin", time.Unix(0, 0), strings.NewReader(content))
	}))
	defer srv.Close()

	p := New(srv.Client())
	res, size, err := p.OpenAndSize(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(res)

	if size != 10 {
		t.Errorf("expected size 10 from range probe, got %d", size)
	}
}

func TestOpenAndSizeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := New(srv.Client())
	if _, _, err := p.OpenAndSize(srv.URL + "/absent"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestContentEncodingUnknownSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Length", "42")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.Client())
	res, size, err := p.OpenAndSize(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close(res)

	if size != 0 {
		t.Errorf("encoded content must report unknown size, got %d", size)
	}
}

func TestReadRange(t *testing.T) {
	srv := rangeServer(t, "0123456789")
	p := New(srv.Client())

	res, _, err := p.OpenAndSize(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(res)

	dst := make([]byte, 4)
	n, err := p.ReadRange(res, 4, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 || string(dst) != "4567" {
		t.Errorf("expected 4567, got %q (n=%d)", dst[:n], n)
	}
}

func TestReadRangeTail(t *testing.T) {
	srv := rangeServer(t, "0123456789")
	p := New(srv.Client())

	res, _, err := p.OpenAndSize(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(res)

	// The engine clamps the window to the known remainder; mimic that.
	dst := make([]byte, 2)
	n, err := p.ReadRange(res, 8, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || string(dst[:n]) != "89" {
		t.Errorf("expected 89, got %q (n=%d)", dst[:n], n)
	}
}

func TestReadRangeServerIgnoresRanges(t *testing.T) {
	content := "0123456789"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Plain 200 with the whole body, no range handling.
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	p := New(srv.Client())
	res := &resource{url: srv.URL}

	// Prefix window still works.
	dst := make([]byte, 4)
	n, err := p.ReadRange(res, 0, dst)
	if err != nil || n != 4 || string(dst) != "0123" {
		t.Errorf("expected prefix read to succeed, got %q (n=%d, err=%v)", dst[:n], n, err)
	}

	// A mid-stream window cannot be served by a 200 response.
	if _, err := p.ReadRange(res, 4, dst); err == nil {
		t.Error("expected error when the server ignores ranges mid-stream")
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"bytes 0-0/10", 10, false},
		{"bytes 0-0/*", 0, false},
		{"bytes 0-0", 0, true},
		{"bytes 0-0/x", 0, true},
	}
	for _, tc := range cases {
		got, err := parseContentRangeTotal(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%q: expected %d, got %d (%v)", tc.in, tc.want, got, err)
		}
	}
}
