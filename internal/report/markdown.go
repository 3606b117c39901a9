// Package report renders the run's markdown report from its artifacts.
package report

import (
	"fmt"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

const (
	noWhois = "_No WHOIS data available._"
	noAlive = "_No alive hosts._"
)

// Render builds the report. Sections always appear in the same order:
// title, generation line, summary table, WHOIS, alive hosts, then the
// supplementary sections.
func Render(s *Summary) string {
	var b strings.Builder

	// Header
	b.WriteString(fmt.Sprintf("# Reconnaissance Report: %s\n\n", s.Target))
	b.WriteString(fmt.Sprintf("**Generated:** %s  \n", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	b.WriteString(fmt.Sprintf("**Run directory:** `%s`\n\n", s.RunDir))

	// Summary table
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	b.WriteString(fmt.Sprintf("| Subdomains found | %d |\n", len(s.Subdomains)))
	b.WriteString(fmt.Sprintf("| Alive hosts | %d |\n", len(s.Alive)))
	b.WriteString(fmt.Sprintf("| Screenshots captured | %d |\n", len(s.Screenshots)))
	b.WriteString(fmt.Sprintf("| Enumeration sources with results | %d/%d |\n", s.SourcesSucceeded(), len(s.Sources)))
	if s.Status != "" {
		b.WriteString(fmt.Sprintf("| Run status | %s |\n", s.Status))
	}
	b.WriteString("\n")

	// WHOIS
	b.WriteString("## WHOIS\n\n")
	if s.Whois != "" {
		writeFenced(&b, s.Whois)
	} else {
		b.WriteString(noWhois + "\n")
	}
	b.WriteString("\n")

	// Alive hosts
	b.WriteString("## Alive Hosts\n\n")
	if len(s.Alive) > 0 {
		var hosts strings.Builder
		for _, r := range s.Alive {
			hosts.WriteString(r.Host + "\n")
		}
		writeFenced(&b, hosts.String())
	} else {
		b.WriteString(noAlive + "\n")
	}
	b.WriteString("\n")

	// Sources
	b.WriteString("## Enumeration Sources\n\n")
	if len(s.Sources) > 0 {
		b.WriteString("| Source | Candidates | Status |\n")
		b.WriteString("|--------|------------|--------|\n")
		for _, o := range s.Sources {
			status := "ok"
			if o.Error != "" {
				status = "failed: " + escapeCell(o.Error)
			} else if o.Candidates == 0 {
				status = "no results"
			}
			b.WriteString(fmt.Sprintf("| %s | %d | %s |\n", o.Name, o.Candidates, status))
		}
	} else {
		b.WriteString("No enumeration sources ran.\n")
	}
	b.WriteString("\n")

	// Screenshots
	b.WriteString("## Screenshots\n\n")
	if len(s.Screenshots) > 0 {
		for _, rel := range s.Screenshots {
			name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
			b.WriteString(fmt.Sprintf("- [%s](%s)\n", name, rel))
		}
	} else {
		b.WriteString("No screenshots captured.\n")
	}

	if s.Changes != nil {
		writeChanges(&b, s.Changes)
	}

	if len(s.StageErrors) > 0 {
		b.WriteString("\n## Stage Errors\n\n")
		b.WriteString("| Stage | Error |\n")
		b.WriteString("|-------|-------|\n")
		for _, stage := range slices.Sorted(maps.Keys(s.StageErrors)) {
			b.WriteString(fmt.Sprintf("| %s | %s |\n", stage, escapeCell(s.StageErrors[stage])))
		}
	}

	return b.String()
}

// Write renders s into layout's report path, replacing any previous report.
// Failure is a *reconerr.ReportWriteError.
func Write(layout storage.RunLayout, s *Summary) error {
	outputPath := layout.ReportPath()
	if err := os.WriteFile(outputPath, []byte(Render(s)), 0644); err != nil {
		return &reconerr.ReportWriteError{Path: outputPath, Err: err}
	}
	return nil
}

// writeFenced emits content in a code fence longer than any backtick run
// inside it
func writeFenced(b *strings.Builder, content string) {
	fence := strings.Repeat("`", max(3, longestRun(content, '`')+1))
	b.WriteString(fence + "\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(fence + "\n")
}

func longestRun(s string, c rune) int {
	longest, current := 0, 0
	for _, r := range s {
		if r == c {
			current++
			longest = max(longest, current)
			continue
		}
		current = 0
	}
	return longest
}

// escapeCell keeps a value on one table row
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
