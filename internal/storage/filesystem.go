package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/reconerr"
)

var unsafeTargetChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// Fixed sub-directories of every run
const (
	InfoDir        = "info"
	SubdomainsDir  = "subdomains"
	ScreenshotsDir = "screenshots"
	ReportDir      = "report"
)

// SanitizeTarget replaces characters unsafe for filesystem paths
// Allows alphanumeric, dots, and hyphens. Replaces everything else with underscore.
func SanitizeTarget(target string) string {
	return unsafeTargetChars.ReplaceAllString(target, "_")
}

// RunDirPath generates a consistent directory path for a run
// Format: {baseDir}/{target}_{YYYYMMDD}_{HHMMSS}
func RunDirPath(baseDir string, target string, startedAt time.Time) string {
	sanitized := SanitizeTarget(target)
	timestamp := startedAt.Format("20060102_150405")
	dirName := fmt.Sprintf("%s_%s", sanitized, timestamp)
	return filepath.Join(baseDir, dirName)
}

// RunLayout resolves every artifact path inside one run directory
type RunLayout struct {
	Root string
}

func (l RunLayout) WhoisPath() string {
	return filepath.Join(l.Root, InfoDir, "whois.txt")
}

// SourcePath is the raw output file of one enumeration source
func (l RunLayout) SourcePath(source string) string {
	return filepath.Join(l.Root, SubdomainsDir, SanitizeTarget(source)+".txt")
}

func (l RunLayout) SourcesSummaryPath() string {
	return filepath.Join(l.Root, SubdomainsDir, "sources.json")
}

func (l RunLayout) AllSubdomainsPath() string {
	return filepath.Join(l.Root, SubdomainsDir, "all_subdomains.txt")
}

func (l RunLayout) AlivePath() string {
	return filepath.Join(l.Root, SubdomainsDir, "alive.txt")
}

func (l RunLayout) LivenessPath() string {
	return filepath.Join(l.Root, SubdomainsDir, "liveness.json")
}

func (l RunLayout) ScreenshotsDir() string {
	return filepath.Join(l.Root, ScreenshotsDir)
}

// ScreenshotPath is where the screenshot for host is stored
func (l RunLayout) ScreenshotPath(host, ext string) string {
	return filepath.Join(l.Root, ScreenshotsDir, SanitizeTarget(host)+"."+strings.TrimPrefix(ext, "."))
}

func (l RunLayout) ReportPath() string {
	return filepath.Join(l.Root, ReportDir, "report.md")
}

func (l RunLayout) MetricsPath() string {
	return filepath.Join(l.Root, ReportDir, "metrics.prom")
}

// DiffPath is the standalone change report written by the diff command
func (l RunLayout) DiffPath() string {
	return filepath.Join(l.Root, ReportDir, "diff.md")
}

func (l RunLayout) LogPath() string {
	return filepath.Join(l.Root, "run.log")
}

// Name is the run directory's base name, e.g. example.com_20260102_150405
func (l RunLayout) Name() string {
	return filepath.Base(l.Root)
}

// CreateRunDir creates a fresh run directory with its fixed sub-directories.
// The root must not already exist. On any failure the partially created root
// is removed and a *reconerr.DirectoryCreationError naming the failing path
// is returned.
func CreateRunDir(baseDir string, target string, startedAt time.Time) (RunLayout, error) {
	root := RunDirPath(baseDir, target, startedAt)

	if err := EnsureDir(baseDir); err != nil {
		return RunLayout{}, &reconerr.DirectoryCreationError{Path: baseDir, Err: err}
	}

	// Mkdir (not MkdirAll) so an existing run directory is never reused
	if err := os.Mkdir(root, 0755); err != nil {
		return RunLayout{}, &reconerr.DirectoryCreationError{Path: root, Err: err}
	}

	layout := RunLayout{Root: root}
	for _, sub := range []string{InfoDir, SubdomainsDir, ScreenshotsDir, ReportDir} {
		path := filepath.Join(root, sub)
		if err := os.Mkdir(path, 0755); err != nil {
			os.RemoveAll(root)
			return RunLayout{}, &reconerr.DirectoryCreationError{Path: path, Err: err}
		}
	}

	if err := layout.Verify(); err != nil {
		os.RemoveAll(root)
		return RunLayout{}, err
	}

	return layout, nil
}

// Verify checks that the root and every fixed sub-directory exist
func (l RunLayout) Verify() error {
	for _, path := range []string{
		l.Root,
		filepath.Join(l.Root, InfoDir),
		filepath.Join(l.Root, SubdomainsDir),
		filepath.Join(l.Root, ScreenshotsDir),
		filepath.Join(l.Root, ReportDir),
	} {
		info, err := os.Stat(path)
		if err != nil {
			return &reconerr.DirectoryCreationError{Path: path, Err: err}
		}
		if !info.IsDir() {
			return &reconerr.DirectoryCreationError{Path: path, Err: errors.New("not a directory")}
		}
	}
	return nil
}

// EnsureDir creates a directory and all parent directories if they don't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
