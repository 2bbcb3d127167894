package browser

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/ssrdiff/capture/exchange"
)

func TestBlockedTypes(t *testing.T) {
	got := blockedTypes([]string{"Images", "fonts", "images", "scripts"})
	want := []proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeFont}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if blockedTypes(nil) != nil {
		t.Error("nothing configured must block nothing")
	}
}

func TestXvfbSocket(t *testing.T) {
	cases := map[string]string{
		":99":  "/tmp/.X11-unix/X99",
		":1.0": "/tmp/.X11-unix/X1",
		"100":  "/tmp/.X11-unix/X100",
	}
	for display, want := range cases {
		if got := xvfbSocket(display); got != want {
			t.Errorf("xvfbSocket(%q) = %q, want %q", display, got, want)
		}
	}
}

func TestWaitSocket(t *testing.T) {
	dir := t.TempDir()
	if err := waitSocket(dir, time.Second); err != nil {
		t.Fatalf("existing path: %v", err)
	}
	if err := waitSocket(filepath.Join(dir, "X42"), 100*time.Millisecond); err == nil {
		t.Fatal("expected timeout for missing socket")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.Mode != ModeHeadless {
		t.Errorf("mode: got %q", c.Mode)
	}
	if c.Timeout != 30*time.Second {
		t.Errorf("timeout: got %v", c.Timeout)
	}
	if c.XvfbDisplay != ":99" || c.Logger == nil {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestExtract_NoTarget(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	resp := m.Extract(context.Background(), exchange.NewRequest("", ""))
	if resp.Error != exchange.ErrNoTarget {
		t.Fatalf("error: got %q, want %q", resp.Error, exchange.ErrNoTarget)
	}
	if m.Browser() != nil {
		t.Fatal("browser launched for an invalid request")
	}
}

func TestClosedManager(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a closed manager")
	}
	resp := m.Extract(context.Background(), exchange.NewRequest("", "http://example.invalid/"))
	if resp.OK() || resp.Error == "" {
		t.Fatalf("expected failure, got %+v", resp)
	}
}
