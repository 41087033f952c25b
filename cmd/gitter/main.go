// cmd/gitter/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitter/internal/config"
	"gitter/internal/logging"
	"gitter/internal/repo"
	"gitter/internal/workspace"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// app carries the state of one invocation.
type app struct {
	dir    string
	logger *logging.Logger
	repo   *repo.Repository
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "gitter",
		Short: "Gitter is a small content-addressed version control system",
		Long: `Gitter stores snapshots of a working tree as content-addressed blobs,
trees and commits, with branches and tags as named references to them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.dir == "" {
				dir, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("getting current directory: %w", err)
				}
				a.dir = dir
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.dir, "directory", "C", "", "run as if gitter was started in `dir`")

	rootCmd.AddCommand(
		a.initCmd(),
		a.addCmd(),
		a.commitCmd(),
		a.statusCmd(),
		a.logCmd(),
		a.diffCmd(),
		a.hashObjectCmd(),
		a.catFileCmd(),
		a.branchCmd(),
		a.tagCmd(),
		a.showRefCmd(),
		a.reflogCmd(),
		a.watchCmd(),
	)
	return rootCmd, a
}

// open finds the repository around a.dir, configures logging and color
// from its config and opens it.
func (a *app) open(cmd *cobra.Command) (*repo.Repository, error) {
	root, err := workspace.FindRoot(a.dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(filepath.Join(root, workspace.MetaDir))
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Core.LogLevel, cfg.Core.Development)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a.logger = logger

	setColor(cfg.UI.Color, cmd.OutOrStdout())

	r, err := repo.Open(root, logger.WithInvocation(cmd.Name()))
	if err != nil {
		return nil, err
	}
	a.repo = r
	return r, nil
}

// abs interprets a command line path relative to the invocation directory.
func (a *app) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.dir, p)
}

func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "error: closing repository:", err)
		}
		a.repo = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func setColor(mode string, out io.Writer) {
	switch strings.ToLower(mode) {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		f, ok := out.(*os.File)
		color.NoColor = !ok || os.Getenv("NO_COLOR") != "" ||
			!(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
}

func printColoredDiff(w io.Writer, diff []byte) {
	if color.NoColor {
		w.Write(diff)
		return
	}

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)
	meta := color.New(color.Bold)

	text := strings.TrimSuffix(string(diff), "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
			meta.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			header.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd, a := newRootCmd()
	defer a.close()

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
