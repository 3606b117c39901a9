// Package reconerr defines the failure taxonomy shared by every pipeline
// stage. Fatal errors stop the run before (or instead of) producing a report;
// everything else is isolated to one source or host and only degrades output.
package reconerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyOutput indicates a tool exited cleanly but produced nothing usable.
	ErrEmptyOutput = errors.New("empty output")

	// ErrTimeout indicates an external invocation or request exceeded its deadline.
	ErrTimeout = errors.New("timed out")
)

// MissingDependencyError lists every required tool that could not be resolved.
type MissingDependencyError struct {
	Tools []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing required tools: %s", strings.Join(e.Tools, ", "))
}

// DirectoryCreationError names the run directory path that could not be created.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("creating directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error { return e.Err }

// LookupFailure is a failed WHOIS lookup.
type LookupFailure struct {
	Target string
	Err    error
}

func (e *LookupFailure) Error() string {
	return fmt.Sprintf("whois lookup for %s failed: %v", e.Target, e.Err)
}

func (e *LookupFailure) Unwrap() error { return e.Err }

// EnumerationSourceFailure is a single enumeration source that returned nothing.
type EnumerationSourceFailure struct {
	Source string
	Err    error
}

func (e *EnumerationSourceFailure) Error() string {
	return fmt.Sprintf("enumeration source %s failed: %v", e.Source, e.Err)
}

func (e *EnumerationSourceFailure) Unwrap() error { return e.Err }

// ProbeFailure is a host that answered on neither scheme.
type ProbeFailure struct {
	Host string
	Err  error
}

func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("probing %s failed: %v", e.Host, e.Err)
}

func (e *ProbeFailure) Unwrap() error { return e.Err }

// ProbeEnvironmentError means no host could be probed at all, typically
// because the network is unavailable.
type ProbeEnvironmentError struct {
	Err error
}

func (e *ProbeEnvironmentError) Error() string {
	return fmt.Sprintf("liveness probing unavailable: %v", e.Err)
}

func (e *ProbeEnvironmentError) Unwrap() error { return e.Err }

// CaptureFailure is a screenshot that could not be taken for one host.
type CaptureFailure struct {
	Host string
	Err  error
}

func (e *CaptureFailure) Error() string {
	return fmt.Sprintf("capturing %s failed: %v", e.Host, e.Err)
}

func (e *CaptureFailure) Unwrap() error { return e.Err }

// ReportWriteError means the final report could not be persisted.
type ReportWriteError struct {
	Path string
	Err  error
}

func (e *ReportWriteError) Error() string {
	return fmt.Sprintf("writing report %s: %v", e.Path, e.Err)
}

func (e *ReportWriteError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var (
		missing *MissingDependencyError
		dir     *DirectoryCreationError
		rep     *ReportWriteError
	)
	return errors.As(err, &missing) || errors.As(err, &dir) || errors.As(err, &rep)
}
