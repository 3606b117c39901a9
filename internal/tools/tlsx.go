package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// TlsxResult represents the certificate data tlsx reports for a host
type TlsxResult struct {
	SubjectCN string   `json:"subject_cn"`
	SubjectAN []string `json:"subject_an"`
	Host      string   `json:"host"`
	Port      string   `json:"port"`
}

// RunTlsx connects to domain over TLS and returns the names found in the
// certificate's Subject Alternative Names and Common Name.
func RunTlsx(ctx context.Context, domain string, binaryPath string, extraArgs []string) ([]string, error) {
	binary := "tlsx"
	if binaryPath != "" {
		binary = binaryPath
	}

	args := []string{
		"-u", domain,
		"-san",
		"-cn",
		"-silent",
		"-json",
	}
	args = append(args, extraArgs...)

	result, err := RunTool(ctx, binary, args...)
	if err != nil {
		return nil, fmt.Errorf("tlsx execution failed: %w", err)
	}

	return ParseTlsxOutput(result.Stdout), nil
}

// ParseTlsxOutput extracts certificate names from tlsx JSONL, skipping
// lines that do not decode.
func ParseTlsxOutput(stdout []byte) []string {
	var names []string
	for _, line := range scanLines(stdout) {
		var r TlsxResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		if r.SubjectCN != "" {
			names = append(names, r.SubjectCN)
		}
		names = append(names, r.SubjectAN...)
	}
	return names
}
