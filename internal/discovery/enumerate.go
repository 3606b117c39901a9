// Package discovery runs the enumeration sources against a target and merges
// what they find into the run's subdomain list.
package discovery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

// SourceRun is what a single source produced
type SourceRun struct {
	Name  string
	Hosts []string
	Err   error
}

// Outcome summarises the run for sources.json
func (r SourceRun) Outcome() models.SourceOutcome {
	o := models.SourceOutcome{Name: r.Name, Candidates: len(r.Hosts)}
	if r.Err != nil {
		o.Error = r.Err.Error()
	}
	return o
}

// EnumerationResult is the outcome of the whole enumeration stage
type EnumerationResult struct {
	Sources    []SourceRun
	Subdomains SubdomainSet
}

// Succeeded counts sources that returned at least one candidate
func (r *EnumerationResult) Succeeded() int {
	n := 0
	for _, s := range r.Sources {
		if s.Outcome().Succeeded() {
			n++
		}
	}
	return n
}

// Enumerate runs every source concurrently. A failing source contributes the
// empty set and its error is returned, joined, alongside the merged result.
func Enumerate(ctx context.Context, target models.Target, sources []Source, logger *logrus.Entry) (*EnumerationResult, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	type indexed struct {
		idx int
		run SourceRun
	}

	p := pool.NewWithResults[indexed]().WithMaxGoroutines(max(1, len(sources)))
	for i, src := range sources {
		p.Go(func() indexed {
			hosts, err := enumerateSafely(ctx, src, target)
			if err != nil {
				hosts = nil
				err = &reconerr.EnumerationSourceFailure{Source: src.Name(), Err: err}
			}
			return indexed{idx: i, run: SourceRun{Name: src.Name(), Hosts: hosts, Err: err}}
		})
	}
	collected := p.Wait()
	slices.SortFunc(collected, func(a, b indexed) int { return cmp.Compare(a.idx, b.idx) })

	result := &EnumerationResult{}
	var errs []error
	lists := make([][]string, 0, len(collected))
	for _, c := range collected {
		result.Sources = append(result.Sources, c.run)
		lists = append(lists, c.run.Hosts)
		if c.run.Err != nil {
			logger.WithField("source", c.run.Name).WithError(c.run.Err).Warn("enumeration source failed")
			errs = append(errs, c.run.Err)
			continue
		}
		logger.WithFields(logrus.Fields{"source": c.run.Name, "candidates": len(c.run.Hosts)}).Info("enumeration source finished")
	}

	result.Subdomains = Merge(target, lists...)
	logger.WithField("subdomains", len(result.Subdomains)).
		Infof("%d/%d sources returned results", result.Succeeded(), len(sources))
	if len(result.Subdomains) == 0 {
		logger.WithField("target", target.String()).Warn("no subdomains discovered")
	}

	return result, errors.Join(errs...)
}

// enumerateSafely turns a panicking source into an ordinary failure
func enumerateSafely(ctx context.Context, src Source, target models.Target) (hosts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %q panicked: %v", src.Name(), r)
		}
	}()
	return src.Enumerate(ctx, target)
}

// WriteArtifacts persists the raw per-source output, the per-source outcome
// summary and the merged list into layout.
func WriteArtifacts(layout storage.RunLayout, result *EnumerationResult) error {
	var errs []error
	outcomes := make([]models.SourceOutcome, 0, len(result.Sources))
	for _, s := range result.Sources {
		outcomes = append(outcomes, s.Outcome())
		if err := storage.WriteLines(layout.SourcePath(s.Name), s.Hosts); err != nil {
			errs = append(errs, err)
		}
	}
	if err := storage.WriteJSON(layout.SourcesSummaryPath(), outcomes); err != nil {
		errs = append(errs, err)
	}
	if err := storage.WriteLines(layout.AllSubdomainsPath(), result.Subdomains); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ReadSubdomains loads the merged list written by a previous enumeration.
// A missing file yields an empty set.
func ReadSubdomains(layout storage.RunLayout) (SubdomainSet, error) {
	lines, err := storage.ReadLines(layout.AllSubdomainsPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SubdomainSet{}, nil
		}
		return nil, err
	}
	return SubdomainSet(lines), nil
}
