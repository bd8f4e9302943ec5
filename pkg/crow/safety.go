package crow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/vito/crow/pkg/pyast"
)

// AssertEquivalent checks that src and dst describe the same program.
func AssertEquivalent(ctx context.Context, src, dst string) error {
	srcDump, err := pyast.Dump(ctx, []byte(src))
	if err != nil {
		return &AssertionError{
			Kind:    "equivalent",
			Message: fmt.Sprintf("cannot use --safe with this file; failed to parse source file: %v", err),
		}
	}

	dstDump, err := pyast.Dump(ctx, []byte(dst))
	if err != nil {
		return &AssertionError{
			Kind:    "equivalent",
			Message: fmt.Sprintf("INTERNAL ERROR: crow produced invalid code: %v. Please report a bug on crow's issue tracker.", err),
			Log:     dumpToFile(dst),
		}
	}

	if srcDump != dstDump {
		return &AssertionError{
			Kind:    "equivalent",
			Message: "INTERNAL ERROR: crow produced code that is not equivalent to the source. Please report a bug on crow's issue tracker.",
			Log:     dumpToFile(Diff(srcDump, dstDump, "src", "dst")),
		}
	}
	return nil
}

// AssertStable checks that formatting dst again leaves it unchanged.
func AssertStable(src, dst string, mode Mode) error {
	newDst, err := FormatStr(dst, mode)
	if err != nil {
		return fmt.Errorf("second pass: %w", err)
	}
	if dst != newDst {
		return &AssertionError{
			Kind:    "stable",
			Message: "INTERNAL ERROR: crow produced different code on the second pass of the formatter. Please report a bug on crow's issue tracker.",
			Log: dumpToFile(
				Diff(src, dst, "source", "first pass"),
				Diff(dst, newDst, "first pass", "second pass"),
			),
		}
	}
	return nil
}

// dumpToFile writes the given texts to a temporary file and returns its
// name, or "" if it could not be written.
func dumpToFile(output ...string) string {
	f, err := os.CreateTemp("", "crow_*.log")
	if err != nil {
		slog.Debug("failed to create log file", "error", err)
		return ""
	}
	defer f.Close()
	for _, o := range output {
		if _, err := f.WriteString(o); err != nil {
			slog.Debug("failed to write log file", "path", f.Name(), "error", err)
			return ""
		}
		if !strings.HasSuffix(o, "\n") {
			f.WriteString("\n")
		}
	}
	return f.Name()
}
