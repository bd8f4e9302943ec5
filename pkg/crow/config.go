package crow

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// FindProjectRoot returns the nearest directory above the common base of
// srcs that holds a .git or .hg directory or a pyproject.toml file. If there
// is none, the filesystem root is returned.
//
// A src of "-" stands for the working directory.
func FindProjectRoot(srcs []string) (string, error) {
	if len(srcs) == 0 {
		srcs = []string{"."}
	}

	var common []string
	for i, src := range srcs {
		if src == "-" {
			src = "."
		}
		abs, err := filepath.Abs(src)
		if err != nil {
			return "", errors.Wrapf(err, "resolve %s", src)
		}
		parts := pathParts(abs)
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			parts = parts[:len(parts)-1]
		}
		if i == 0 {
			common = parts
			continue
		}
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}

	dir := filepath.Join(common...)
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		if info, err := os.Stat(filepath.Join(dir, ".hg")); err == nil && info.IsDir() {
			return dir, nil
		}
		if info, err := os.Stat(filepath.Join(dir, "pyproject.toml")); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir, nil
		}
		dir = parent
	}
}

// pathParts splits an absolute path into its root and each element.
func pathParts(abs string) []string {
	vol := filepath.VolumeName(abs)
	rest := strings.TrimPrefix(abs, vol)
	parts := []string{vol + string(filepath.Separator)}
	for _, p := range strings.Split(rest, string(filepath.Separator)) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// FindPyprojectToml returns the pyproject.toml in the project root of
// srcs, or "" if there isn't one.
func FindPyprojectToml(srcs []string) (string, error) {
	root, err := FindProjectRoot(srcs)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, "pyproject.toml")
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	return "", nil
}

type pyproject struct {
	Tool struct {
		Crow map[string]any `toml:"crow"`
	} `toml:"tool"`
}

// ReadPyprojectToml returns the [tool.crow] table of a pyproject.toml file.
// Keys are normalized to snake case, so line-length, --line-length and
// line_length all read as line_length.
func ReadPyprojectToml(path string) (map[string]any, error) {
	var doc pyproject
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	config := make(map[string]any, len(doc.Tool.Crow))
	for k, v := range doc.Tool.Crow {
		config[strcase.ToSnake(strings.TrimPrefix(k, "--"))] = v
	}
	return config, nil
}

// ModeFromConfig applies the formatting options of a [tool.crow] table, as
// returned by ReadPyprojectToml, to base. Other keys are ignored.
func ModeFromConfig(base Mode, config map[string]any) (Mode, error) {
	mode := base
	for key, value := range config {
		switch key {
		case "line_length":
			n, ok := value.(int64)
			if !ok || n <= 0 {
				return base, errors.Errorf("%s: expected a positive integer, got %v", key, value)
			}
			mode.LineLength = int(n)
		case "target_version":
			versions, err := targetVersionsFromConfig(value)
			if err != nil {
				return base, errors.Wrap(err, key)
			}
			mode.TargetVersions = versions
		case "skip_string_normalization", "skip_magic_trailing_comma", "pyi":
			b, ok := value.(bool)
			if !ok {
				return base, errors.Errorf("%s: expected a boolean, got %v", key, value)
			}
			switch key {
			case "skip_string_normalization":
				mode.StringNormalization = !b
			case "skip_magic_trailing_comma":
				mode.MagicTrailingComma = !b
			default:
				mode.IsPyi = b
			}
		}
	}
	return mode, nil
}

func targetVersionsFromConfig(value any) ([]TargetVersion, error) {
	var names []string
	switch v := value.(type) {
	case string:
		names = []string{v}
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Errorf("expected a version name, got %v", e)
			}
			names = append(names, s)
		}
	default:
		return nil, errors.Errorf("expected a list of versions, got %v", value)
	}
	versions := make([]TargetVersion, 0, len(names))
	for _, name := range names {
		v, err := ParseTargetVersion(name)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}
