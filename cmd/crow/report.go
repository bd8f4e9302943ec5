package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/vito/crow/pkg/ioctx"
)

// Changed is the outcome of formatting one file.
type Changed int

const (
	Unchanged Changed = iota
	// Cached files were skipped because they didn't change since they were
	// last formatted.
	Cached
	Reformatted
)

var (
	reformattedStyle = lipgloss.NewStyle().Bold(true)
	failedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	summaryStyle     = lipgloss.NewStyle().Bold(true)
	failCountStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
)

// Report collects the outcome of every file and prints status lines as
// they come in.
type Report struct {
	Check   bool
	Diff    bool
	Quiet   bool
	Verbose bool

	out   io.Writer
	color bool

	mu           sync.Mutex
	changeCount  int
	sameCount    int
	failureCount int
}

// NewReport returns a report printing to the context's stderr.
func NewReport(ctx context.Context, cfg Config) *Report {
	return &Report{
		Check:   cfg.Check,
		Diff:    cfg.Diff,
		Quiet:   cfg.Quiet,
		Verbose: cfg.Verbose,
		out:     ioctx.StderrFromContext(ctx),
		color:   ioctx.ColorFromContext(ctx) && !cfg.NoColor,
	}
}

func (r *Report) println(s string) {
	if !r.color {
		s = ansi.Strip(s)
	}
	fmt.Fprintln(r.out, s)
}

// Done records a file that was formatted without error.
func (r *Report) Done(path string, changed Changed) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch changed {
	case Reformatted:
		if r.Verbose || !r.Quiet {
			verb := "reformatted"
			if r.Check || r.Diff {
				verb = "would reformat"
			}
			r.println(reformattedStyle.Render(verb + " " + path))
		}
		r.changeCount++
	default:
		if r.Verbose {
			msg := path + " already well formatted, good job."
			if changed == Cached {
				msg = path + " wasn't modified on disk since last run."
			}
			r.println(dimStyle.Render(msg))
		}
		r.sameCount++
	}
}

// Failed records a file that could not be formatted.
func (r *Report) Failed(path, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(failedStyle.Render(fmt.Sprintf("error: cannot format %s: %s", path, message)))
	r.failureCount++
}

// Detail prints extra context for a failure in verbose runs.
func (r *Report) Detail(message string) {
	if !r.Verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(strings.TrimRight(message, "\n"))
}

// PathIgnored notes a path skipped during discovery.
func (r *Report) PathIgnored(path, message string) {
	if !r.Verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(dimStyle.Render(fmt.Sprintf("%s ignored: %s", path, message)))
}

// Out prints a message unless the report is quiet.
func (r *Report) Out(message string) {
	if r.Quiet && !r.Verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(summaryStyle.Render(message))
}

// ReturnCode is 123 if any file failed, 1 if --check found files to
// reformat, and 0 otherwise.
func (r *Report) ReturnCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.failureCount > 0:
		return 123
	case r.changeCount > 0 && r.Check:
		return 1
	}
	return 0
}

// Summary describes the run, such as "2 files reformatted, 1 file left
// unchanged."
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	reformatted, unchanged, failed := "reformatted", "left unchanged", "failed to reformat"
	if r.Check || r.Diff {
		reformatted, unchanged, failed = "would be reformatted", "would be left unchanged", "would fail to reformat"
	}

	var parts []string
	if r.changeCount > 0 {
		parts = append(parts, summaryStyle.Render(fmt.Sprintf("%s %s", files(r.changeCount), reformatted)))
	}
	if r.sameCount > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", files(r.sameCount), unchanged))
	}
	if r.failureCount > 0 {
		parts = append(parts, failCountStyle.Render(fmt.Sprintf("%s %s", files(r.failureCount), failed)))
	}
	s := strings.Join(parts, ", ") + "."
	if !r.color {
		s = ansi.Strip(s)
	}
	return s
}

func files(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

// Finish prints the closing lines of a run.
func (r *Report) Finish() {
	if r.Quiet && !r.Verbose {
		return
	}
	headline := "All done! ✨ 🍰 ✨"
	if r.ReturnCode() != 0 {
		headline = "Oh no! 💥 💔 💥"
	}
	r.mu.Lock()
	r.println(summaryStyle.Render(headline))
	r.mu.Unlock()
	summary := r.Summary()
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, summary)
}
