// Package screenshot captures a rendered image of every live host.
package screenshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/tools"
)

// Engine renders url and writes a PNG to dest
type Engine interface {
	Capture(ctx context.Context, url, dest string) error
}

// NewEngine builds the engine selected by screenshot.engine. The returned
// func releases engine resources and is always non-nil.
func NewEngine(cfg *config.Config) (Engine, func(), error) {
	timeout := config.Duration(cfg.Screenshot.Timeout, 20*time.Second)

	switch cfg.Screenshot.Engine {
	case "gowitness":
		return &GowitnessEngine{
			Binary:  cfg.Tools.Gowitness.Binary("gowitness"),
			Args:    cfg.Tools.Gowitness.Args,
			Timeout: timeout,
		}, func() {}, nil
	case "chromedp":
		e := NewChromeEngine(ChromeOptions{
			ExecPath: cfg.Screenshot.ChromePath,
			Insecure: cfg.Probe.Insecure,
		})
		return e, e.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown screenshot engine %q", cfg.Screenshot.Engine)
	}
}

// GowitnessEngine shells out to gowitness once per URL
type GowitnessEngine struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

func (e *GowitnessEngine) Capture(ctx context.Context, url, dest string) error {
	workDir, err := os.MkdirTemp("", "reconsweep-gowitness-*")
	if err != nil {
		return fmt.Errorf("creating gowitness work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	img, err := tools.RunGowitness(ctx, url, workDir, e.Timeout, e.Binary, e.Args)
	if err != nil {
		return err
	}
	return moveFile(img, dest)
}

// ChromeOptions configures the headless browser
type ChromeOptions struct {
	ExecPath string // empty lets chromedp find Chrome
	Insecure bool
	Width    int
	Height   int
}

// ChromeEngine drives one headless Chrome process; each capture opens a tab
type ChromeEngine struct {
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	startOnce sync.Once
	startErr  error
}

// NewChromeEngine prepares the allocator. Chrome itself starts with the
// first capture.
func NewChromeEngine(opts ChromeOptions) *ChromeEngine {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 800
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("ignore-certificate-errors", opts.Insecure),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return &ChromeEngine{cancelAlloc: cancelAlloc, browserCtx: browserCtx, cancelBrowser: cancelBrowser}
}

// start launches the browser once; tabs opened before it is up would each
// spawn their own process.
func (e *ChromeEngine) start() error {
	e.startOnce.Do(func() {
		if err := chromedp.Run(e.browserCtx); err != nil {
			e.startErr = fmt.Errorf("starting chrome: %w", err)
		}
	})
	return e.startErr
}

func (e *ChromeEngine) Capture(ctx context.Context, url, dest string) error {
	if err := e.start(); err != nil {
		return err
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.CaptureScreenshot(&buf),
	); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("chrome capture of %s: %w", url, ctx.Err())
		}
		return fmt.Errorf("chrome capture of %s: %w", url, err)
	}
	if len(buf) == 0 {
		return fmt.Errorf("chrome returned an empty screenshot for %s", url)
	}
	return os.WriteFile(dest, buf, 0644)
}

// Close shuts the browser down
func (e *ChromeEngine) Close() {
	e.cancelBrowser()
	e.cancelAlloc()
}

// moveFile renames src to dst, copying when they sit on different filesystems
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
