package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/reconerr"
)

// maxLineSize bounds a single stdout line; WHOIS and JSONL output stays well below it.
const maxLineSize = 1024 * 1024

// ToolResult contains the result of a tool execution
type ToolResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// RunTool executes a tool binary with the given arguments and returns the result.
// It handles concurrent pipe reading to prevent buffer deadlocks and enforces
// context timeout with proper subprocess cleanup.
func RunTool(ctx context.Context, binary string, args ...string) (*ToolResult, error) {
	return run(ctx, binary, nil, args)
}

// RunToolWithInput is RunTool with lines piped to the tool's stdin, one per line.
func RunToolWithInput(ctx context.Context, binary string, lines []string, args ...string) (*ToolResult, error) {
	return run(ctx, binary, lines, args)
}

func run(ctx context.Context, binary string, stdinLines []string, args []string) (*ToolResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	// Set WaitDelay for subprocess cleanup after context cancellation
	cmd.WaitDelay = 5 * time.Second

	if stdinLines != nil {
		cmd.Stdin = strings.NewReader(strings.Join(stdinLines, "\n") + "\n")
	}

	// WaitDelay also bounds these copies when a grandchild holds the descriptors
	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	err := cmd.Wait()

	result := &ToolResult{
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%s %w: %w", binary, reconerr.ErrTimeout, ctx.Err())
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("command cancelled: %w", ctx.Err())
		}
		return result, fmt.Errorf("command failed with exit code %d: %w", result.ExitCode, err)
	}

	return result, nil
}

// scanLines splits tool stdout into trimmed, non-empty lines
func scanLines(stdout []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
