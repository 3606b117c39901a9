package tools

import (
	"context"
	"fmt"
)

// RunAssetfinder executes assetfinder in subs-only mode and returns one
// candidate host per output line.
func RunAssetfinder(ctx context.Context, domain string, binaryPath string, extraArgs []string) ([]string, error) {
	binary := "assetfinder"
	if binaryPath != "" {
		binary = binaryPath
	}

	args := append([]string{"--subs-only"}, extraArgs...)
	args = append(args, domain)

	result, err := RunTool(ctx, binary, args...)
	if err != nil {
		return nil, fmt.Errorf("assetfinder execution failed: %w", err)
	}

	return scanLines(result.Stdout), nil
}
