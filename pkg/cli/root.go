// Package cli is the alongc command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"alongc/pkg/compiler"
	"alongc/pkg/config"
)

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile string
	verbose bool

	cfg *config.Config
	log *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// compileFailed exits with the number of diagnostics the compiler reported.
func compileFailed(err error, count int) error {
	if count < 1 {
		count = 1
	}
	return &ExitError{Code: count, Err: err}
}

// NewRootCommand builds the command tree around the given streams.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "alongc",
		Short: "alongc - Along/cmn to Along32 translator",
		Long: `alongc translates Along/cmn programs into Along32 assembly in a single pass.

Commands:
  build    translate <base>.cmn into <base>.asm and the <base>.ccmn listing
  run      translate, assemble and execute a program on the built-in VM
  watch    rebuild every source in a directory when it changes
  symbols  print the symbol table of a program as YAML
  version  show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./alongc.toml or $"+config.EnvVar+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newBuildCmd(a),
		newRunCmd(a),
		newWatchCmd(a),
		newSymbolsCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = config.Load(a.cfgFile)
	} else {
		a.cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(a.cfg.Log.Level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// Run executes the command line and returns the process exit status.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var exit *ExitError
	if errors.As(err, &exit) {
		if !errors.Is(exit.Err, errProgramExit) {
			printBuildError(stderr, exit.Err)
		}
		return exit.Code
	}

	printBuildError(stderr, err)
	return 1
}

// Execute runs alongc against the process streams.
func Execute() int {
	return Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorLabelStyle.Render("error:")+" "+err.Error())
}

// printBuildError renders compiler diagnostics in their own format.
func printBuildError(w io.Writer, err error) {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		fmt.Fprintln(w, renderDiagnostic(ce))
		return
	}
	printError(w, err)
}
