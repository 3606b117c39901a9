// Package diff computes the delta between two runs against the same target.
// It reads the subdomain and liveness artifacts the enumerate and probe
// stages leave in each run directory and reports what appeared or went away.
// Neither run directory is modified.
package diff

import (
	"fmt"
	"os"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/hakim/reconsweep/internal/discovery"
	"github.com/hakim/reconsweep/internal/httpprobe"
	"github.com/hakim/reconsweep/internal/storage"
)

// Snapshot is what one run directory says about the target. Fields are
// empty when the matching stage never ran.
type Snapshot struct {
	RunDir     string
	Subdomains []string
	Alive      []string
}

// LoadSnapshot reads all_subdomains.txt and the liveness artifacts of the
// run at layout. Missing artifacts are treated as empty; a missing run
// directory is an error.
func LoadSnapshot(layout storage.RunLayout) (*Snapshot, error) {
	info, err := os.Stat(layout.Root)
	if err != nil {
		return nil, fmt.Errorf("opening run directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("run directory %s is not a directory", layout.Root)
	}

	snap := &Snapshot{RunDir: layout.Root}

	subdomains, err := discovery.ReadSubdomains(layout)
	if err != nil {
		return nil, fmt.Errorf("loading subdomains: %w", err)
	}
	snap.Subdomains = subdomains

	alive, err := httpprobe.ReadAlive(layout)
	if err != nil {
		return nil, fmt.Errorf("loading alive hosts: %w", err)
	}
	for _, r := range alive {
		if r.Alive {
			snap.Alive = append(snap.Alive, r.Host)
		}
	}

	return snap, nil
}

// Result holds the delta between a current and a previous snapshot. All
// slices are sorted and non-nil so callers can range over them
// unconditionally.
type Result struct {
	PreviousRunDir string

	NewSubdomains     []string
	RemovedSubdomains []string

	NewAlive  []string // alive now, not alive (or unknown) before
	GoneAlive []string // alive before, not alive now

	CurrentSubdomainCount  int
	PreviousSubdomainCount int
	CurrentAliveCount      int
	PreviousAliveCount     int
}

// Compute calculates the delta between current and previous. Both must be
// non-nil; pass an empty Snapshot for the "no previous run" case.
func Compute(current, previous *Snapshot) *Result {
	r := &Result{PreviousRunDir: previous.RunDir}

	r.NewSubdomains, r.RemovedSubdomains = diffHosts(current.Subdomains, previous.Subdomains)
	r.NewAlive, r.GoneAlive = diffHosts(current.Alive, previous.Alive)

	r.CurrentSubdomainCount = len(current.Subdomains)
	r.PreviousSubdomainCount = len(previous.Subdomains)
	r.CurrentAliveCount = len(current.Alive)
	r.PreviousAliveCount = len(previous.Alive)
	return r
}

// Empty reports whether nothing changed
func (r *Result) Empty() bool {
	return len(r.NewSubdomains) == 0 && len(r.RemovedSubdomains) == 0 &&
		len(r.NewAlive) == 0 && len(r.GoneAlive) == 0
}

// diffHosts returns the hosts only in current (added) and only in previous
// (removed)
func diffHosts(current, previous []string) (added, removed []string) {
	cur := mapset.NewThreadUnsafeSet(current...)
	prev := mapset.NewThreadUnsafeSet(previous...)

	added = cur.Difference(prev).ToSlice()
	removed = prev.Difference(cur).ToSlice()
	slices.Sort(added)
	slices.Sort(removed)
	if added == nil {
		added = []string{}
	}
	if removed == nil {
		removed = []string{}
	}
	return added, removed
}
