// Package console prints operator-facing status lines with the [*]/[+]/[!]/[-]
// markers used across the CLI. Structured records go through logrus instead.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer writes coloured status lines to one writer
type Printer struct {
	out     io.Writer
	info    *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

// New returns a Printer writing to w. Colour follows fatih/color's terminal
// detection unless noColor is set.
func New(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     w,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.info, p.success, p.warn, p.fail} {
			c.DisableColor()
		}
	}
	return p
}

// Stdout returns a Printer on os.Stdout
func Stdout() *Printer {
	return New(os.Stdout, false)
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(p.info, "[*]", format, args...)
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(p.success, "[+]", format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.warn, "[!]", format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.fail, "[-]", format, args...)
}

// Plainf prints an indented detail line without a marker
func (p *Printer) Plainf(format string, args ...any) {
	fmt.Fprintf(p.out, "    "+format+"\n", args...)
}

func (p *Printer) line(c *color.Color, marker, format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", c.Sprint(marker), fmt.Sprintf(format, args...))
}
