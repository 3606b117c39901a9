package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RunGowitness captures a single URL with gowitness and returns the path of
// the image it produced inside workDir. gowitness names files after the URL,
// so the caller moves the result to its own key.
func RunGowitness(ctx context.Context, url string, workDir string, timeout time.Duration, binaryPath string, extraArgs []string) (string, error) {
	binary := "gowitness"
	if binaryPath != "" {
		binary = binaryPath
	}

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory %q: %w", workDir, err)
	}

	args := []string{
		"scan", "single",
		"--url", url,
		"-s", workDir,
		"-T", strconv.Itoa(max(1, int(timeout.Seconds()))),
		"--screenshot-format", "png",
	}
	args = append(args, extraArgs...)

	if _, err := RunTool(ctx, binary, args...); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("gowitness cancelled: %w", err)
		}
		return "", fmt.Errorf("gowitness execution failed: %w", err)
	}

	return findImage(workDir)
}

// findImage returns the first image file in dir
func findImage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("gowitness produced no screenshot in %s", dir)
}
