package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// HttpxResult represents the probed HTTP endpoint data returned by httpx
type HttpxResult struct {
	URL        string `json:"url"`
	Input      string `json:"input"`
	Scheme     string `json:"scheme"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title"`
	WebServer  string `json:"webserver"`
	Failed     bool   `json:"failed"`
}

// RunHttpx executes httpx for the given targets and returns parsed results.
// It pipes targets to stdin line by line and parses JSONL output.
func RunHttpx(ctx context.Context, targets []string, threads int, timeout time.Duration, binaryPath string, extraArgs []string) ([]HttpxResult, error) {
	if len(targets) == 0 {
		return []HttpxResult{}, nil
	}

	binary := "httpx"
	if binaryPath != "" {
		binary = binaryPath
	}

	if threads <= 0 {
		threads = 50
	}

	args := []string{
		"-json",
		"-silent",
		"-sc",
		"-title",
		"-server",
		"-t", strconv.Itoa(threads),
		"-timeout", strconv.Itoa(max(1, int(timeout.Seconds()))),
	}
	args = append(args, extraArgs...)

	result, err := RunToolWithInput(ctx, binary, targets, args...)
	if err != nil {
		return nil, fmt.Errorf("httpx execution failed: %w", err)
	}

	return ParseHttpxOutput(result.Stdout), nil
}

// ParseHttpxOutput decodes httpx JSONL, dropping undecodable and failed lines
func ParseHttpxOutput(stdout []byte) []HttpxResult {
	var results []HttpxResult
	for _, line := range scanLines(stdout) {
		var r HttpxResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		if r.Failed || r.URL == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}
