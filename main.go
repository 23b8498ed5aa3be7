package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ardanlabs/impeller-interop/generator"
	"github.com/ardanlabs/impeller-interop/logutil"
	"github.com/ardanlabs/impeller-interop/model"
	"github.com/ardanlabs/impeller-interop/parser"
	"github.com/ardanlabs/impeller-interop/registry"
)

func main() {
	cobra.CheckErr(newCLI(os.Getenv).ExecuteContext(context.Background()))
}

type options struct {
	out      string
	pkg      string
	registry string
	verbose  bool
	report   bool
}

func newCLI(getenv func(string) string) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "impeller-interop <impeller.h>",
		Short:         "Generate Go bindings for the Impeller C API",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logutil.NewLogger(cmd.ErrOrStderr(), logutil.Level(opts.verbose, getenv))
			return run(args[0], opts, log, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file (default <module root>/impeller/"+generator.FileName+")")
	cmd.Flags().StringVarP(&opts.pkg, "package", "p", generator.DefaultPackage, "Package name of the generated file")
	cmd.Flags().StringVar(&opts.registry, "registry", "", "Manual interop registry replacing the embedded one")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.report, "report", false, "Print the wrapping status of every function")

	return cmd
}

func run(header string, opts options, log *slog.Logger, stderr io.Writer) error {
	reg := registry.Default()
	if opts.registry != "" {
		var err error
		if reg, err = registry.Load(opts.registry); err != nil {
			return err
		}
	}

	h, err := parser.ParseFile(header, reg.ParserOptions()...)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			for _, d := range perr.Diagnostics {
				fmt.Fprintf(stderr, "%s:%s\n", header, d)
			}
		}
		return fmt.Errorf("parsing header: %w", err)
	}

	m, err := model.Build(h, append(reg.ModelOptions(), model.WithLogger(log))...)
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}

	res, err := generator.New(m,
		generator.WithRegistry(reg),
		generator.WithPackage(opts.pkg),
		generator.WithSource(filepath.Base(header)),
		generator.WithLogger(log),
	).Generate()
	if err != nil {
		return fmt.Errorf("generating bindings: %w", err)
	}

	out := opts.out
	if out == "" {
		root, err := findModuleRoot(".")
		if err != nil {
			return err
		}
		out = filepath.Join(root, generator.DefaultPackage, generator.FileName)
	}

	if err := writeFile(out, res.Source); err != nil {
		return err
	}

	if opts.report {
		generator.WriteReport(stderr, m, res)
	}

	log.Info("bindings written",
		"path", out,
		"handles", len(m.Handles),
		"functions", len(m.Functions),
		"manual", len(res.Warnings))

	return nil
}

// findModuleRoot walks up from dir to the nearest directory holding a
// go.mod file.
func findModuleRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, "go.mod")); err == nil {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", fmt.Errorf("no go.mod found in %s or any parent directory", dir)
		}
		d = parent
	}
}

// writeFile replaces path with data through a temporary file in the same
// directory, so a failed run never leaves a partial file behind.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bindings-*.go")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
