package screenshot

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type fakeEngine struct {
	mu       sync.Mutex
	urls     []string
	fail     map[string]bool
	hang     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeEngine) Capture(ctx context.Context, url, dest string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.hang[url] {
		os.WriteFile(dest, []byte("partial"), 0644)
		<-ctx.Done()
		return ctx.Err()
	}
	time.Sleep(5 * time.Millisecond)
	if f.fail[url] {
		return errors.New("navigation failed")
	}
	return os.WriteFile(dest, pngMagic, 0644)
}

func newLayout(t *testing.T) storage.RunLayout {
	t.Helper()
	layout, err := storage.CreateRunDir(t.TempDir(), "example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return layout
}

func alive(hosts ...string) []models.LivenessResult {
	var out []models.LivenessResult
	for _, h := range hosts {
		out = append(out, models.LivenessResult{Host: h, Alive: true, Scheme: models.SchemeHTTPS, URL: "https://" + h})
	}
	return out
}

func TestCaptureEmptyIsNoop(t *testing.T) {
	engine := &fakeEngine{}
	results, err := Capture(context.Background(), newLayout(t), nil, engine, Options{Logger: logging.Discard()})
	if err != nil || len(results) != 0 {
		t.Errorf("Capture(nil) = %v, %v", results, err)
	}
	if len(engine.urls) != 0 {
		t.Error("engine invoked for an empty host list")
	}
}

func TestCaptureIsolatesFailures(t *testing.T) {
	layout := newLayout(t)
	engine := &fakeEngine{fail: map[string]bool{"https://b.example.com": true}}

	var reported atomic.Int32
	results, err := Capture(context.Background(), layout, alive("a.example.com", "b.example.com", "c.example.com"), engine, Options{
		Concurrency: 2,
		Timeout:     time.Second,
		Logger:      logging.Discard(),
		OnResult:    func(Result) { reported.Add(1) },
	})

	var cf *reconerr.CaptureFailure
	if !errors.As(err, &cf) || cf.Host != "b.example.com" {
		t.Fatalf("error = %v, want CaptureFailure for b.example.com", err)
	}
	if reconerr.IsFatal(err) {
		t.Error("capture failures must not be fatal")
	}
	if len(results) != 3 || reported.Load() != 3 {
		t.Errorf("results = %d, reported = %d", len(results), reported.Load())
	}

	for host, want := range map[string]bool{"a.example.com": true, "b.example.com": false, "c.example.com": true} {
		_, statErr := os.Stat(layout.ScreenshotPath(host, "png"))
		if got := statErr == nil; got != want {
			t.Errorf("%s screenshot present = %v, want %v", host, got, want)
		}
	}
}

func TestCaptureTimeoutRemovesPartialFile(t *testing.T) {
	layout := newLayout(t)
	engine := &fakeEngine{hang: map[string]bool{"https://slow.example.com": true}}

	_, err := Capture(context.Background(), layout, alive("slow.example.com"), engine, Options{
		Timeout: 50 * time.Millisecond,
		Logger:  logging.Discard(),
	})
	if !errors.Is(err, reconerr.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if _, statErr := os.Stat(layout.ScreenshotPath("slow.example.com", "png")); !os.IsNotExist(statErr) {
		t.Error("partial screenshot left behind")
	}
}

func TestCaptureRespectsConcurrency(t *testing.T) {
	engine := &fakeEngine{}
	hosts := alive("a.example.com", "b.example.com", "c.example.com", "d.example.com", "e.example.com", "f.example.com")

	if _, err := Capture(context.Background(), newLayout(t), hosts, engine, Options{Concurrency: 2, Logger: logging.Discard()}); err != nil {
		t.Fatal(err)
	}
	if engine.maxSeen.Load() > 2 {
		t.Errorf("observed %d concurrent captures, limit is 2", engine.maxSeen.Load())
	}
}

func TestCaptureBuildsURLFromScheme(t *testing.T) {
	engine := &fakeEngine{}
	hosts := []models.LivenessResult{{Host: "a.example.com", Alive: true, Scheme: models.SchemeHTTP}}

	if _, err := Capture(context.Background(), newLayout(t), hosts, engine, Options{Logger: logging.Discard()}); err != nil {
		t.Fatal(err)
	}
	if len(engine.urls) != 1 || engine.urls[0] != "http://a.example.com" {
		t.Errorf("urls = %v", engine.urls)
	}
}

func TestCaptureCancelledStartsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{}
	_, err := Capture(ctx, newLayout(t), alive("a.example.com"), engine, Options{Logger: logging.Discard()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(engine.urls) != 0 {
		t.Error("capture started after cancellation")
	}
}

func TestGowitnessEngine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	bin := filepath.Join(t.TempDir(), "gowitness")
	script := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -s) dir="$2"; shift ;;
  esac
  shift
done
printf 'PNGDATA' > "$dir/https-a.example.com.png"
`
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	layout := newLayout(t)
	engine := &GowitnessEngine{Binary: bin, Timeout: 5 * time.Second}
	results, err := Capture(context.Background(), layout, alive("a.example.com"), engine, Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	want := layout.ScreenshotPath("a.example.com", "png")
	if results[0].Path != want {
		t.Errorf("Path = %q, want %q", results[0].Path, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "PNGDATA" {
		t.Errorf("screenshot = %q, %v", data, err)
	}
}

func TestNewEngine(t *testing.T) {
	cfg := config.DefaultConfig()

	e, closeFn, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	if _, ok := e.(*GowitnessEngine); !ok {
		t.Errorf("default engine = %T", e)
	}

	cfg.Screenshot.Engine = "chromedp"
	e, closeFn, err = NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	if _, ok := e.(*ChromeEngine); !ok {
		t.Errorf("chromedp engine = %T", e)
	}

	cfg.Screenshot.Engine = "eyewitness"
	if _, _, err := NewEngine(cfg); err == nil || !strings.Contains(err.Error(), "eyewitness") {
		t.Errorf("error = %v", err)
	}
}
