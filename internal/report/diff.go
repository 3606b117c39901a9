package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/diff"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

// RenderDiff builds a standalone change report for target
func RenderDiff(target string, r *diff.Result, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Run Diff Report: %s\n\n", target))
	b.WriteString(fmt.Sprintf("**Date:** %s  \n", generatedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	b.WriteString(fmt.Sprintf("**Compared with:** `%s`\n\n", r.PreviousRunDir))

	if r.Empty() {
		b.WriteString("No changes detected.\n")
		return b.String()
	}

	writeDiffSummaryTable(&b, r)
	writeHostChanges(&b, "##", r)
	return b.String()
}

// WriteDiff renders r into layout's diff path. Failure is a
// *reconerr.ReportWriteError.
func WriteDiff(layout storage.RunLayout, target string, r *diff.Result) error {
	outputPath := layout.DiffPath()
	if err := os.WriteFile(outputPath, []byte(RenderDiff(target, r, time.Now())), 0644); err != nil {
		return &reconerr.ReportWriteError{Path: outputPath, Err: err}
	}
	return nil
}

// writeChanges is the "Changes Since Last Run" section of the main report
func writeChanges(b *strings.Builder, r *diff.Result) {
	b.WriteString("\n## Changes Since Last Run\n\n")
	b.WriteString(fmt.Sprintf("Compared with `%s`.\n\n", r.PreviousRunDir))
	if r.Empty() {
		b.WriteString("No changes detected.\n")
		return
	}
	writeDiffSummaryTable(b, r)
	writeHostChanges(b, "###", r)
}

// writeDiffSummaryTable writes the two-row comparison table
func writeDiffSummaryTable(b *strings.Builder, r *diff.Result) {
	b.WriteString("| Category | Previous | Current | Change |\n")
	b.WriteString("|----------|----------|---------|--------|\n")
	b.WriteString(fmt.Sprintf("| Subdomains | %d | %d | %s |\n",
		r.PreviousSubdomainCount, r.CurrentSubdomainCount, formatChange(len(r.NewSubdomains), len(r.RemovedSubdomains))))
	b.WriteString(fmt.Sprintf("| Alive hosts | %d | %d | %s |\n",
		r.PreviousAliveCount, r.CurrentAliveCount, formatChange(len(r.NewAlive), len(r.GoneAlive))))
	b.WriteString("\n")
}

func writeHostChanges(b *strings.Builder, heading string, r *diff.Result) {
	writeHostList(b, heading, "New Subdomains", "+", r.NewSubdomains)
	writeHostList(b, heading, "Removed Subdomains", "-", r.RemovedSubdomains)
	writeHostList(b, heading, "Newly Alive Hosts", "+", r.NewAlive)
	writeHostList(b, heading, "No Longer Alive", "-", r.GoneAlive)
}

// writeHostList renders one change list. Skipped when empty.
func writeHostList(b *strings.Builder, heading, title, sign string, hosts []string) {
	if len(hosts) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("%s %s (%s%d)\n\n", heading, title, sign, len(hosts)))
	for _, h := range hosts {
		b.WriteString("- " + h + "\n")
	}
	b.WriteString("\n")
}

// formatChange produces strings like "+3 / -1"; "none" when nothing moved
func formatChange(added, removed int) string {
	if added == 0 && removed == 0 {
		return "none"
	}
	return fmt.Sprintf("+%d / -%d", added, removed)
}
