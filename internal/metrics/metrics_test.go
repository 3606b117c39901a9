package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderGauges(t *testing.T) {
	r := NewRecorder("example.com")
	r.SetCounts(Counts{Subdomains: 9, Alive: 4, Screenshots: 3, SourcesOK: 2, SourcesTotal: 3})
	r.ObserveStage("probe", 1500*time.Millisecond, nil)
	r.ObserveStage("screenshot", time.Second, errors.New("1 capture failed"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"subdomains", testutil.ToFloat64(r.subdomains), 9},
		{"alive", testutil.ToFloat64(r.alive), 4},
		{"screenshots", testutil.ToFloat64(r.screenshots), 3},
		{"sources ok", testutil.ToFloat64(r.sourcesOK), 2},
		{"sources total", testutil.ToFloat64(r.sourcesTotal), 3},
		{"probe duration", testutil.ToFloat64(r.stageDuration.WithLabelValues("probe")), 1.5},
		{"probe failed", testutil.ToFloat64(r.stageFailed.WithLabelValues("probe")), 0},
		{"screenshot failed", testutil.ToFloat64(r.stageFailed.WithLabelValues("screenshot")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSetStatusKeepsOneSeries(t *testing.T) {
	r := NewRecorder("example.com")
	r.SetStatus("running")
	r.SetStatus("partial")

	if n := testutil.CollectAndCount(r.runInfo); n != 1 {
		t.Errorf("run_info series = %d, want 1", n)
	}
	if v := testutil.ToFloat64(r.runInfo.WithLabelValues("partial")); v != 1 {
		t.Errorf("run_info{status=partial} = %v", v)
	}
}

func TestWriteFile(t *testing.T) {
	r := NewRecorder("example.com")
	r.SetCounts(Counts{Subdomains: 2, Alive: 1})
	r.SetStatus("complete")

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`reconsweep_subdomains{target="example.com"} 2`,
		`reconsweep_alive_hosts{target="example.com"} 1`,
		`reconsweep_run_info{status="complete",target="example.com"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics file missing %q:\n%s", want, out)
		}
	}
}
