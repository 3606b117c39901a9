package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hakim/reconsweep/internal/diff"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

func newLayout(t *testing.T) storage.RunLayout {
	t.Helper()
	layout, err := storage.CreateRunDir(t.TempDir(), "example.com", time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return layout
}

func TestRenderSectionOrder(t *testing.T) {
	s := &Summary{
		Target:      "example.com",
		RunDir:      "out/example.com_20260102_150405",
		GeneratedAt: time.Date(2026, 1, 2, 15, 10, 0, 0, time.UTC),
		Whois:       "Domain Name: EXAMPLE.COM\n",
		Subdomains:  []string{"a.example.com", "b.example.com"},
		Alive:       []models.LivenessResult{{Host: "a.example.com", Alive: true}},
		Sources: []models.SourceOutcome{
			{Name: "subfinder", Candidates: 2},
			{Name: "assetfinder", Error: "exit status 1"},
		},
		Screenshots: []string{"../screenshots/a.example.com.png"},
		Status:      models.StatusPartial,
		StageErrors: map[string]string{"enumerate": "assetfinder | failed"},
	}

	out := Render(s)

	order := []string{
		"# Reconnaissance Report: example.com",
		"**Generated:** 2026-01-02 15:10:00 UTC",
		"## Summary",
		"## WHOIS",
		"## Alive Hosts",
		"## Enumeration Sources",
		"## Screenshots",
		"## Stage Errors",
	}
	last := -1
	for _, heading := range order {
		idx := strings.Index(out, heading)
		if idx < 0 {
			t.Fatalf("missing %q in report:\n%s", heading, out)
		}
		if idx < last {
			t.Errorf("%q out of order", heading)
		}
		last = idx
	}

	for _, want := range []string{
		"| Subdomains found | 2 |",
		"| Alive hosts | 1 |",
		"| Screenshots captured | 1 |",
		"| Enumeration sources with results | 1/2 |",
		"| Run status | partial |",
		"```\nDomain Name: EXAMPLE.COM\n```",
		"```\na.example.com\n```",
		"| assetfinder | 0 | failed: exit status 1 |",
		"- [a.example.com](../screenshots/a.example.com.png)",
		`assetfinder \| failed`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPlaceholders(t *testing.T) {
	out := Render(&Summary{Target: "example.com", GeneratedAt: time.Now()})
	for _, want := range []string{noWhois, noAlive, "| Enumeration sources with results | 0/0 |"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "## Stage Errors") {
		t.Error("stage errors section rendered without errors")
	}
}

func TestRenderFenceEscapesBackticks(t *testing.T) {
	out := Render(&Summary{Target: "example.com", Whois: "odd ``` record\n"})
	if !strings.Contains(out, "````\nodd ``` record\n````") {
		t.Errorf("whois block not fenced safely:\n%s", out)
	}
}

// A WHOIS timeout leaves no info/whois.txt; the report must still be complete.
func TestCollectAndWriteWithoutWhois(t *testing.T) {
	layout := newLayout(t)

	if err := storage.WriteLines(layout.AllSubdomainsPath(), []string{"a.example.com", "b.example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteLines(layout.AlivePath(), []string{"a.example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteJSON(layout.SourcesSummaryPath(), []models.SourceOutcome{{Name: "subfinder", Candidates: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.ScreenshotPath("a.example.com", "png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Collect(layout, "example.com")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if s.Whois != "" || len(s.Subdomains) != 2 || len(s.Alive) != 1 || len(s.Screenshots) != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Screenshots[0] != "../screenshots/a.example.com.png" {
		t.Errorf("screenshot link = %q", s.Screenshots[0])
	}

	if err := Write(layout, s); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(layout.ReportPath())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"# Reconnaissance Report: example.com", noWhois, "```\na.example.com\n```", "| Subdomains found | 2 |"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestCollectEmptyRun(t *testing.T) {
	s, err := Collect(newLayout(t), "example.com")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(s.Subdomains) != 0 || len(s.Alive) != 0 || len(s.Sources) != 0 || len(s.Screenshots) != 0 {
		t.Errorf("summary of an empty run = %+v", s)
	}
}

func TestWriteFailure(t *testing.T) {
	layout := newLayout(t)
	reportDir := filepath.Dir(layout.ReportPath())
	if err := os.RemoveAll(reportDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(reportDir, []byte("not a directory"), 0644); err != nil {
		t.Fatal(err)
	}

	err := Write(layout, &Summary{Target: "example.com"})
	var rw *reconerr.ReportWriteError
	if !errors.As(err, &rw) {
		t.Fatalf("error = %v, want *ReportWriteError", err)
	}
	if rw.Path != layout.ReportPath() {
		t.Errorf("Path = %q", rw.Path)
	}
	if !reconerr.IsFatal(err) {
		t.Error("report write errors are fatal")
	}
}

func TestRenderChangesSinceLastRun(t *testing.T) {
	s := &Summary{
		Target:     "example.com",
		Subdomains: []string{"a.example.com", "new.example.com"},
		Changes: &diff.Result{
			PreviousRunDir:         "out/example.com_20260101_000000",
			NewSubdomains:          []string{"new.example.com"},
			RemovedSubdomains:      []string{"old.example.com"},
			NewAlive:               []string{},
			GoneAlive:              []string{"old.example.com"},
			CurrentSubdomainCount:  2,
			PreviousSubdomainCount: 2,
			CurrentAliveCount:      1,
			PreviousAliveCount:     2,
		},
		StageErrors: map[string]string{"probe": "boom"},
	}

	out := Render(s)

	changes := strings.Index(out, "## Changes Since Last Run")
	if changes < 0 {
		t.Fatalf("missing changes section:\n%s", out)
	}
	if shots := strings.Index(out, "## Screenshots"); shots > changes {
		t.Error("changes section rendered before screenshots")
	}
	if errs := strings.Index(out, "## Stage Errors"); errs < changes {
		t.Error("changes section rendered after stage errors")
	}
	for _, want := range []string{
		"Compared with `out/example.com_20260101_000000`.",
		"| Subdomains | 2 | 2 | +1 / -1 |",
		"| Alive hosts | 2 | 1 | +0 / -1 |",
		"### New Subdomains (+1)\n\n- new.example.com\n",
		"### Removed Subdomains (-1)\n\n- old.example.com\n",
		"### No Longer Alive (-1)\n\n- old.example.com\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Newly Alive Hosts") {
		t.Error("empty change list rendered")
	}
}

func TestRenderWithoutPreviousRun(t *testing.T) {
	out := Render(&Summary{Target: "example.com"})
	if strings.Contains(out, "Changes Since Last Run") {
		t.Errorf("changes section rendered without a previous run:\n%s", out)
	}
}

func TestWriteDiff(t *testing.T) {
	layout := newLayout(t)

	if err := WriteDiff(layout, "example.com", &diff.Result{PreviousRunDir: "prev"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(layout.DiffPath())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "# Run Diff Report: example.com\n") || !strings.Contains(out, "No changes detected.") {
		t.Errorf("diff report = %q", out)
	}
}

func TestWriteDiffFailure(t *testing.T) {
	layout := storage.RunLayout{Root: filepath.Join(t.TempDir(), "missing")}
	err := WriteDiff(layout, "example.com", &diff.Result{})
	var writeErr *reconerr.ReportWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("WriteDiff() = %v, want *reconerr.ReportWriteError", err)
	}
}
