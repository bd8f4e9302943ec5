package main

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/vito/crow/pkg/crow"
)

// compilePattern compiles a regular expression from the command line or a
// project file. Multi-line patterns are read verbosely: whitespace is
// insignificant and # starts a comment.
func compilePattern(name, pattern string) (*regexp.Regexp, error) {
	if strings.Contains(pattern, "\n") {
		pattern = stripVerbose(pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid regular expression for %s given: %q", name, pattern)
	}
	return re, nil
}

func stripVerbose(pattern string) string {
	var b strings.Builder
	escaped := false
	inClass := false
	for _, line := range strings.Split(pattern, "\n") {
		for _, r := range line {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '[':
				inClass = true
			case r == ']':
				inClass = false
			case inClass:
			case r == '#':
				goto nextLine
			case r == ' ' || r == '\t':
				continue
			}
			b.WriteRune(r)
		}
	nextLine:
		escaped = false
	}
	return b.String()
}

type discovery struct {
	root         string
	include      *regexp.Regexp
	exclude      *regexp.Regexp
	forceExclude *regexp.Regexp
	report       *Report
}

// normalize returns the slash-separated path of p relative to the project
// root, starting with a slash and ending with one for directories. It
// returns "" for paths that resolve outside the root.
func (d *discovery) normalize(p string, isDir bool) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		d.report.PathIgnored(p, err.Error())
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		d.report.PathIgnored(p, "is a symbolic link that points outside "+d.root)
		return ""
	}
	normalized := "/" + filepath.ToSlash(rel)
	if rel == "." {
		normalized = "/"
	}
	if isDir && !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	return normalized
}

// pythonFiles returns the files under dir matching include and not
// excluded, sorted.
func (d *discovery) pythonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	var found []string
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		info, err := os.Stat(child)
		if err != nil {
			d.report.PathIgnored(child, "cannot be read")
			continue
		}

		normalized := d.normalize(child, info.IsDir())
		if normalized == "" {
			continue
		}
		if d.exclude != nil && d.exclude.MatchString(normalized) {
			d.report.PathIgnored(child, "matches the --exclude regular expression")
			continue
		}
		if d.forceExclude != nil && d.forceExclude.MatchString(normalized) {
			d.report.PathIgnored(child, "matches the --force-exclude regular expression")
			continue
		}

		switch {
		case info.IsDir():
			more, err := d.pythonFiles(child)
			if err != nil {
				return nil, err
			}
			found = append(found, more...)
		case info.Mode().IsRegular():
			if d.include == nil || d.include.MatchString(normalized) {
				found = append(found, child)
			}
		}
	}
	sort.Strings(found)
	return found, nil
}

// collectSources expands the command line srcs into files to format. "-"
// is kept as is for standard input.
func collectSources(cfg Config, srcs []string, report *Report) ([]string, error) {
	root, err := crow.FindProjectRoot(srcs)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	d := &discovery{root: root, report: report}
	if d.include, err = compilePattern("--include", cfg.Include); err != nil {
		return nil, err
	}
	if d.exclude, err = compilePattern("--exclude", cfg.Exclude); err != nil {
		return nil, err
	}
	if cfg.ForceExclude != "" {
		if d.forceExclude, err = compilePattern("--force-exclude", cfg.ForceExclude); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	var sources []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			sources = append(sources, p)
		}
	}

	for _, src := range srcs {
		if src == "-" {
			add(src)
			continue
		}
		info, err := os.Stat(src)
		switch {
		case err != nil:
			report.Failed(src, "invalid path")
		case info.IsDir():
			files, err := d.pythonFiles(src)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		default:
			if d.forceExclude != nil {
				if normalized := d.normalize(src, false); normalized != "" && d.forceExclude.MatchString(normalized) {
					report.PathIgnored(src, "matches the --force-exclude regular expression")
					continue
				}
			}
			add(src)
		}
	}
	return sources, nil
}
