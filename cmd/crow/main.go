package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/charmbracelet/fang"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vito/crow/pkg/crow"
	"github.com/vito/crow/pkg/ioctx"
)

const (
	defaultInclude = `\.pyi?$`
	defaultExclude = `/(\.direnv|\.eggs|\.git|\.hg|\.mypy_cache|\.nox|\.tox|\.venv|venv|\.svn|_build|buck-out|build|dist)/`
)

// Config holds the command line options.
type Config struct {
	LineLength              int
	TargetVersions          []string
	Pyi                     bool
	SkipStringNormalization bool
	SkipMagicTrailingComma  bool
	Check                   bool
	Diff                    bool
	Color                   bool
	NoColor                 bool
	Fast                    bool
	Safe                    bool
	Include                 string
	Exclude                 string
	ForceExclude            string
	Quiet                   bool
	Verbose                 bool
	Debug                   bool
	Code                    string
	ConfigFile              string
	Workers                 int
	NoCache                 bool
	PrintTree               bool
	DebugAddr               string
	LSP                     bool
	LSPLogFile              string
}

// exitCode ends the process with a status but no message of its own.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

func main() {
	ctx := context.Background()
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)
	ctx = ioctx.ColorToContext(ctx, isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))

	err := fang.Execute(ctx, newRootCmd(),
		fang.WithVersion("v0.1.0"),
		fang.WithCommit("dev"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var code exitCode
			if errors.As(err, &code) {
				return
			}
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	)
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	os.Exit(123)
}

func newRootCmd() *cobra.Command {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "crow [flags] [src...]",
		Short: "The uncompromising Python code formatter",
		Long: `Crow reformats Python source files in place, making every file look
the same regardless of how it was written.

Directories are searched recursively for files matching --include. A src of
"-" formats standard input to standard output.`,
		Example: `  # Format every Python file under the current directory
  crow .

  # Report files that would change, exiting 1 if any would
  crow --check src/

  # Show the changes instead of writing them
  crow --diff --color module.py

  # Format a snippet
  crow -c 'x  =  [1,2 ,3]'`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if cfg.LSP {
				return runLSP(ctx, cfg)
			}

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(ioctx.StderrFromContext(ctx), &slog.HandlerOptions{
				Level: level,
			})))

			if cfg.DebugAddr != "" {
				if err := setupDebugHandlers(cfg.DebugAddr); err != nil {
					return err
				}
			}

			if err := applyProjectConfig(cmd, args, &cfg); err != nil {
				return err
			}

			mode, err := modeFromConfig(cfg)
			if err != nil {
				return err
			}

			if cfg.PrintTree {
				return printTree(ctx, cfg, args, mode)
			}
			if cmd.Flags().Changed("code") {
				return formatCode(ctx, cfg, mode)
			}
			return run(ctx, cfg, args, mode)
		},
	}

	flags := rootCmd.Flags()
	flags.IntVarP(&cfg.LineLength, "line-length", "l", crow.DefaultLineLength, "How many characters per line to allow")
	flags.StringSliceVarP(&cfg.TargetVersions, "target-version", "t", nil, "Python versions that should be supported by the output (py27, py33..py38); detected per file by default")
	flags.BoolVar(&cfg.Pyi, "pyi", false, "Format all input files like typing stubs regardless of file extension")
	flags.BoolVarP(&cfg.SkipStringNormalization, "skip-string-normalization", "S", false, "Don't normalize string quotes or prefixes")
	flags.BoolVarP(&cfg.SkipMagicTrailingComma, "skip-magic-trailing-comma", "C", false, "Don't use trailing commas as a reason to split lines")
	flags.BoolVar(&cfg.Check, "check", false, "Don't write the files back, just return the status: 0 if nothing would change, 1 if some files would be reformatted, 123 on internal error")
	flags.BoolVar(&cfg.Diff, "diff", false, "Don't write the files back, just output a diff for each file on stdout")
	flags.BoolVar(&cfg.Color, "color", false, "Show colored diff")
	flags.BoolVar(&cfg.NoColor, "no-color", false, "Never color output")
	flags.BoolVar(&cfg.Fast, "fast", false, "Skip the AST safety checks")
	flags.BoolVar(&cfg.Safe, "safe", false, "Check that the output is equivalent to the input and stable (the default)")
	flags.StringVar(&cfg.Include, "include", defaultInclude, "Regular expression matching files to include in recursive searches")
	flags.StringVar(&cfg.Exclude, "exclude", defaultExclude, "Regular expression matching files and directories to exclude in recursive searches")
	flags.StringVar(&cfg.ForceExclude, "force-exclude", "", "Like --exclude, but also applies to files named explicitly")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", false, "Don't emit non-error messages to stderr")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Also emit messages to stderr about files that were not changed or were ignored")
	flags.BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	flags.StringVarP(&cfg.Code, "code", "c", "", "Format the code passed in as a string")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Read configuration from this file instead of the project's pyproject.toml")
	flags.IntVarP(&cfg.Workers, "workers", "W", runtime.NumCPU(), "Number of files to format in parallel")
	flags.BoolVar(&cfg.NoCache, "no-cache", false, "Don't read or write the cache of formatted files")
	flags.BoolVar(&cfg.PrintTree, "print-tree", false, "Print the syntax tree of each src instead of formatting it")
	flags.BoolVar(&cfg.LSP, "lsp", false, "Run in Language Server Protocol mode")
	flags.StringVar(&cfg.LSPLogFile, "lsp-log-file", "", "Path to LSP log file (stderr if not specified)")
	flags.StringVar(&cfg.DebugAddr, "debug-addr", "", "Serve pprof and expvar handlers on this address")
	_ = flags.MarkHidden("print-tree")
	_ = flags.MarkHidden("debug-addr")

	return rootCmd
}

func modeFromConfig(cfg Config) (crow.Mode, error) {
	mode := crow.DefaultMode()
	mode.LineLength = cfg.LineLength
	mode.IsPyi = cfg.Pyi
	mode.StringNormalization = !cfg.SkipStringNormalization
	mode.MagicTrailingComma = !cfg.SkipMagicTrailingComma
	for _, name := range cfg.TargetVersions {
		v, err := crow.ParseTargetVersion(name)
		if err != nil {
			return mode, err
		}
		mode.TargetVersions = append(mode.TargetVersions, v)
	}
	if mode.LineLength <= 0 {
		return mode, fmt.Errorf("invalid line length %d", mode.LineLength)
	}
	return mode, nil
}
