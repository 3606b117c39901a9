package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/diff"
	"github.com/hakim/reconsweep/internal/discovery"
	"github.com/hakim/reconsweep/internal/httpprobe"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/storage"
)

// Summary is everything the report shows, gathered from the run directory
type Summary struct {
	Target      string
	RunDir      string
	GeneratedAt time.Time

	Whois       string // empty when the lookup produced nothing
	Subdomains  []string
	Alive       []models.LivenessResult
	Sources     []models.SourceOutcome
	Screenshots []string // paths relative to the report directory

	Status      models.RunStatus
	StageErrors map[string]string

	// Changes is the delta against the previous run; nil when there is none
	Changes *diff.Result
}

// SourcesSucceeded counts sources that returned at least one candidate
func (s *Summary) SourcesSucceeded() int {
	n := 0
	for _, o := range s.Sources {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Collect reads every artifact present in layout. Missing artifacts are
// normal (a stage failed, was skipped or never ran) and leave the matching
// field empty; unreadable ones are reported in the joined error while the
// rest of the summary is still filled in.
func Collect(layout storage.RunLayout, target string) (*Summary, error) {
	s := &Summary{
		Target:      target,
		RunDir:      layout.Root,
		GeneratedAt: time.Now().UTC(),
	}
	var errs []error

	if data, err := os.ReadFile(layout.WhoisPath()); err == nil {
		if strings.TrimSpace(string(data)) != "" {
			s.Whois = string(data)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("reading whois record: %w", err))
	}

	subdomains, err := discovery.ReadSubdomains(layout)
	if err != nil {
		errs = append(errs, fmt.Errorf("reading subdomains: %w", err))
	}
	s.Subdomains = subdomains

	alive, err := httpprobe.ReadAlive(layout)
	if err != nil {
		errs = append(errs, fmt.Errorf("reading alive hosts: %w", err))
	}
	s.Alive = alive

	if err := storage.ReadJSON(layout.SourcesSummaryPath(), &s.Sources); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("reading source summary: %w", err))
	}

	shots, err := listScreenshots(layout)
	if err != nil {
		errs = append(errs, fmt.Errorf("listing screenshots: %w", err))
	}
	s.Screenshots = shots

	return s, errors.Join(errs...)
}

func listScreenshots(layout storage.RunLayout) ([]string, error) {
	entries, err := os.ReadDir(layout.ScreenshotsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	reportDir := filepath.Dir(layout.ReportPath())
	var shots []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
		default:
			continue
		}
		rel, err := filepath.Rel(reportDir, filepath.Join(layout.ScreenshotsDir(), e.Name()))
		if err != nil {
			continue
		}
		shots = append(shots, filepath.ToSlash(rel))
	}
	slices.Sort(shots)
	return shots, nil
}
