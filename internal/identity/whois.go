// Package identity records who a target is registered to.
package identity

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
	"github.com/hakim/reconsweep/internal/tools"
)

// Config controls the WHOIS lookup
type Config struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	Logger  *logrus.Entry
}

// Lookup runs whois against target. Any failure, including a timeout or an
// empty response, is returned as a *reconerr.LookupFailure.
func Lookup(ctx context.Context, target models.Target, cfg Config) (string, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	record, err := tools.RunWhois(ctx, target.String(), cfg.Binary, cfg.Args)
	if err != nil {
		return "", &reconerr.LookupFailure{Target: target.String(), Err: err}
	}
	return record, nil
}

// Run performs the lookup and writes the record verbatim to info/whois.txt.
// On failure nothing is written.
func Run(ctx context.Context, layout storage.RunLayout, target models.Target, cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	start := time.Now()
	record, err := Lookup(ctx, target, cfg)
	if err != nil {
		cfg.Logger.WithField("target", target.String()).WithError(err).Warn("whois lookup failed")
		return err
	}

	if err := os.WriteFile(layout.WhoisPath(), []byte(record), 0644); err != nil {
		return fmt.Errorf("writing whois record: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"target":  target.String(),
		"bytes":   len(record),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("whois lookup complete")
	return nil
}
