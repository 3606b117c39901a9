// Package metrics keeps a per-run Prometheus registry and writes it out in
// the text exposition format next to the report.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reconsweep"

// Recorder holds the gauges for one run. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	subdomains    prometheus.Gauge
	alive         prometheus.Gauge
	screenshots   prometheus.Gauge
	sourcesOK     prometheus.Gauge
	sourcesTotal  prometheus.Gauge
	stageDuration *prometheus.GaugeVec
	stageFailed   *prometheus.GaugeVec
	runInfo       *prometheus.GaugeVec
}

// NewRecorder registers every gauge on a fresh registry labelled with target
func NewRecorder(target string) *Recorder {
	constLabels := prometheus.Labels{"target": target}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	r := &Recorder{
		registry:     prometheus.NewRegistry(),
		subdomains:   gauge("subdomains", "Unique subdomains after merge."),
		alive:        gauge("alive_hosts", "Hosts that answered over HTTP(S)."),
		screenshots:  gauge("screenshots", "Screenshots captured."),
		sourcesOK:    gauge("sources_succeeded", "Enumeration sources that returned results."),
		sourcesTotal: gauge("sources_total", "Enumeration sources that ran."),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stage_duration_seconds", Help: "Wall time per stage.", ConstLabels: constLabels,
		}, []string{"stage"}),
		stageFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stage_failed", Help: "1 when the stage returned an error.", ConstLabels: constLabels,
		}, []string{"stage"}),
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_info", Help: "Always 1; carries the run's final status.", ConstLabels: constLabels,
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		r.subdomains, r.alive, r.screenshots, r.sourcesOK, r.sourcesTotal,
		r.stageDuration, r.stageFailed, r.runInfo,
	)
	return r
}

// ObserveStage records how long a stage took and whether it failed
func (r *Recorder) ObserveStage(stage string, elapsed time.Duration, err error) {
	r.stageDuration.WithLabelValues(stage).Set(elapsed.Seconds())
	failed := 0.0
	if err != nil {
		failed = 1
	}
	r.stageFailed.WithLabelValues(stage).Set(failed)
}

// Counts are the artifact totals shown in the report summary
type Counts struct {
	Subdomains   int
	Alive        int
	Screenshots  int
	SourcesOK    int
	SourcesTotal int
}

// SetCounts overwrites the artifact gauges
func (r *Recorder) SetCounts(c Counts) {
	r.subdomains.Set(float64(c.Subdomains))
	r.alive.Set(float64(c.Alive))
	r.screenshots.Set(float64(c.Screenshots))
	r.sourcesOK.Set(float64(c.SourcesOK))
	r.sourcesTotal.Set(float64(c.SourcesTotal))
}

// SetStatus marks the run's final status
func (r *Recorder) SetStatus(status string) {
	r.runInfo.Reset()
	r.runInfo.WithLabelValues(status).Set(1)
}

// WriteFile writes the registry to path in the Prometheus text format
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
