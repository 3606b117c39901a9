package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/hakim/reconsweep/internal/reconerr"
)

// RunWhois queries registration data for domain and returns stdout verbatim.
// An all-whitespace response is reported as reconerr.ErrEmptyOutput.
func RunWhois(ctx context.Context, domain string, binaryPath string, extraArgs []string) (string, error) {
	binary := "whois"
	if binaryPath != "" {
		binary = binaryPath
	}

	args := append(append([]string{}, extraArgs...), domain)

	result, err := RunTool(ctx, binary, args...)
	if err != nil {
		return "", fmt.Errorf("whois execution failed: %w", err)
	}

	if strings.TrimSpace(string(result.Stdout)) == "" {
		return "", fmt.Errorf("whois returned no data: %w", reconerr.ErrEmptyOutput)
	}

	return string(result.Stdout), nil
}
