package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestLogEndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	orig := zlog
	defer SetLogger(orig)
	SetLogger(zerolog.New(&buf))

	r := httptest.NewRequest("GET", "/infer", nil)
	logEnd(r, LevelError, 200, time.Now(), nil)
	if buf.Len() != 0 {
		t.Fatalf("success logged at error level: %q", buf.String())
	}
	logEnd(r, LevelError, 503, time.Now(), errors.New("no runtime"))
	if !strings.Contains(buf.String(), `"status":503`) || !strings.Contains(buf.String(), "no runtime") {
		t.Fatalf("error not logged: %q", buf.String())
	}
	buf.Reset()
	logEnd(r, LevelOff, 503, time.Now(), errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("logged with level off: %q", buf.String())
	}
	logEnd(r, LevelInfo, 200, time.Now(), nil)
	if !strings.Contains(buf.String(), "request end") {
		t.Fatalf("info not logged: %q", buf.String())
	}
}

func TestJoinContexts(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	b, cancelB := context.WithCancel(context.Background())
	ctx, cancel := joinContexts(a, b)
	defer cancel()
	cancelB()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not canceled by b")
	}

	ctx2, cancel2 := joinContexts(context.Background(), context.Background())
	cancel2()
	if ctx2.Err() == nil {
		t.Fatalf("cancel func did not cancel")
	}
}

func TestConfigSetters(t *testing.T) {
	SetMaxBodyBytes(10)
	if maxBodyBytes != 10 {
		t.Fatalf("max body: %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("max body reset: %d", maxBodyBytes)
	}
	SetInferTimeout(-time.Second)
	if inferTimeout != 0 {
		t.Fatalf("negative timeout kept")
	}
	SetEncodeQuality(500)
	if encodeQuality != 90 {
		t.Fatalf("quality: %d", encodeQuality)
	}
	SetBaseContext(nil)
	if serverBaseCtx != context.Background() {
		t.Fatalf("base context not reset")
	}
}

func TestItoa(t *testing.T) {
	for n, want := range map[int]string{0: "0", 7: "7", 200: "200", 503: "503"} {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d)=%q", n, got)
		}
	}
}
