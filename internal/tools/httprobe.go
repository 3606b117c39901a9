package tools

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RunHttprobe pipes hosts to httprobe and returns the URLs it reports as
// responding. -prefer-https makes httprobe skip plain HTTP when HTTPS answers.
func RunHttprobe(ctx context.Context, hosts []string, concurrency int, timeout time.Duration, binaryPath string, extraArgs []string) ([]string, error) {
	if len(hosts) == 0 {
		return []string{}, nil
	}

	binary := "httprobe"
	if binaryPath != "" {
		binary = binaryPath
	}

	if concurrency <= 0 {
		concurrency = 20
	}

	args := []string{
		"-c", strconv.Itoa(concurrency),
		"-t", strconv.FormatInt(timeout.Milliseconds(), 10),
		"-prefer-https",
	}
	args = append(args, extraArgs...)

	result, err := RunToolWithInput(ctx, binary, hosts, args...)
	if err != nil {
		return nil, fmt.Errorf("httprobe execution failed: %w", err)
	}

	return scanLines(result.Stdout), nil
}
