package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// SubfinderResult represents a single subdomain discovery result from subfinder
type SubfinderResult struct {
	Host   string `json:"host"`
	Source string `json:"source"`
}

// RunSubfinder executes subfinder for the given domain and returns the hosts
// it reported. It uses JSON output mode (-oJ); if threads > 0 it sets the
// thread count (-t flag).
func RunSubfinder(ctx context.Context, domain string, threads int, binaryPath string, extraArgs []string) ([]string, error) {
	binary := "subfinder"
	if binaryPath != "" {
		binary = binaryPath
	}

	args := []string{
		"-d", domain,
		"-silent",
		"-oJ",
	}

	if threads > 0 {
		args = append(args, "-t", strconv.Itoa(threads))
	}
	args = append(args, extraArgs...)

	result, err := RunTool(ctx, binary, args...)
	if err != nil {
		return nil, fmt.Errorf("subfinder execution failed: %w", err)
	}

	return ParseSubfinderOutput(result.Stdout), nil
}

// ParseSubfinderOutput extracts hosts from subfinder JSONL. Lines that are
// not JSON are taken as bare hostnames so plain-text output still parses.
func ParseSubfinderOutput(stdout []byte) []string {
	var hosts []string
	for _, line := range scanLines(stdout) {
		var sf SubfinderResult
		if err := json.Unmarshal([]byte(line), &sf); err != nil {
			hosts = append(hosts, line)
			continue
		}
		if sf.Host != "" {
			hosts = append(hosts, sf.Host)
		}
	}
	return hosts
}
