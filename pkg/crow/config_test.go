package crow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type ConfigSuite struct{}

func TestConfig(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(ConfigSuite{})
}

func realDir(t *testctx.T) string {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func (ConfigSuite) TestFindProjectRoot(ctx context.Context, t *testctx.T) {
	root := realDir(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	pkg := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	file := filepath.Join(pkg, "mod.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))

	found, err := FindProjectRoot([]string{file})
	require.NoError(t, err)
	require.Equal(t, root, found)

	found, err = FindProjectRoot([]string{pkg, filepath.Join(root, "src")})
	require.NoError(t, err)
	require.Equal(t, root, found)
}

func (ConfigSuite) TestPyprojectMarksRoot(ctx context.Context, t *testctx.T) {
	root := realDir(t)
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	path := filepath.Join(sub, "pyproject.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tool.crow]\n"), 0o644))

	found, err := FindProjectRoot([]string{sub})
	require.NoError(t, err)
	require.Equal(t, sub, found)

	toml, err := FindPyprojectToml([]string{sub})
	require.NoError(t, err)
	require.Equal(t, path, toml)
}

func (ConfigSuite) TestReadPyprojectToml(ctx context.Context, t *testctx.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[tool.other]
line-length = 1

[tool.crow]
line-length = 100
target-version = ["py37", "py38"]
skip-string-normalization = true
"--pyi" = true
include = '\.pyi?$'
`), 0o644))

	config, err := ReadPyprojectToml(path)
	require.NoError(t, err)
	require.Equal(t, int64(100), config["line_length"])
	require.Equal(t, true, config["skip_string_normalization"])
	require.Equal(t, true, config["pyi"])
	require.Equal(t, `\.pyi?$`, config["include"])

	mode, err := ModeFromConfig(DefaultMode(), config)
	require.NoError(t, err)
	require.Equal(t, 100, mode.LineLength)
	require.Equal(t, []TargetVersion{PY37, PY38}, mode.TargetVersions)
	require.False(t, mode.StringNormalization)
	require.True(t, mode.MagicTrailingComma)
	require.True(t, mode.IsPyi)
}

func (ConfigSuite) TestModeFromConfigErrors(ctx context.Context, t *testctx.T) {
	for name, config := range map[string]map[string]any{
		"negative line length": {"line_length": int64(-1)},
		"string line length":   {"line_length": "88"},
		"unknown version":      {"target_version": []any{"py4"}},
		"non-bool flag":        {"pyi": "yes"},
	} {
		t.Run(name, func(ctx context.Context, t *testctx.T) {
			mode, err := ModeFromConfig(DefaultMode(), config)
			require.Error(t, err)
			require.Equal(t, DefaultMode(), mode)
		})
	}
}

func (ConfigSuite) TestInvalidToml(ctx context.Context, t *testctx.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tool.crow\n"), 0o644))
	_, err := ReadPyprojectToml(path)
	require.Error(t, err)
}
