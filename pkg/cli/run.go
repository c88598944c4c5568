package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"alongc/pkg/asm"
	"alongc/pkg/compiler"
	"alongc/pkg/cpu"
	"alongc/pkg/utils"
)

// errProgramExit marks a non-zero Exit {n} from the executed program; it is
// reported through the exit status only.
var errProgramExit = errors.New("program exited with non-zero status")

func newRunCmd(a *app) *cobra.Command {
	var (
		maxSteps int
		showAsm  bool
	)

	cmd := &cobra.Command{
		Use:   "run <base>",
		Short: "Translate, assemble and execute a program",
		Long: `Translate <base>.cmn in memory, assemble the Along32 output and execute it
on the built-in virtual machine. ReadInt reads from stdin and the Write
routines print to stdout. No files are written.

Values given in declarations (int x = 5) are recorded in the symbol table
but never emitted: variables start at 0 in .bss until a store assigns them.
Constants are folded into the code with their declared value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-steps") {
				maxSteps = a.cfg.Run.MaxSteps
			}
			return a.run(cmd, args[0], maxSteps, showAsm)
		},
	}

	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "stop after this many instructions (default from config)")
	cmd.Flags().BoolVar(&showAsm, "show-asm", false, "print the generated assembly to stderr before running")
	return cmd
}

func (a *app) run(cmd *cobra.Command, base string, maxSteps int, showAsm bool) error {
	art, err := utils.ResolveArtifacts(base, "", a.extensions())
	if err != nil {
		return err
	}
	src, err := os.ReadFile(art.Source)
	if err != nil {
		return fmt.Errorf("unable to open/create important files: %w", err)
	}

	title := a.cfg.Build.Title
	if title == "" {
		title = art.Base
	}
	log := a.log.With("build", uuid.NewString(), "source", art.Source)

	res, err := compiler.Compile(string(src), compiler.Options{
		Title:    title,
		Includes: a.cfg.Emit.Includes,
		Logger:   log,
	})
	if err != nil {
		return compileFailed(err, res.Errors)
	}
	if showAsm {
		fmt.Fprint(cmd.ErrOrStderr(), res.Assembly)
	}

	prog, err := asm.Assemble(res.Assembly)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	mem := a.cfg.Run.Memory
	if need := prog.MemSize(); need > mem {
		mem = need
	}
	vm := cpu.NewCPU(mem)
	vm.Input = cmd.InOrStdin()
	vm.Output = cmd.OutOrStdout()
	vm.MaxSteps = maxSteps
	if err := vm.Load(prog.Image, prog.Entry); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	if err := vm.Run(); err != nil {
		var fault *cpu.Fault
		if errors.As(err, &fault) {
			if line, ok := prog.SourceMap[fault.PC]; ok {
				return fmt.Errorf("run: %w (assembly line %d)", err, line)
			}
		}
		return fmt.Errorf("run: %w", err)
	}
	log.Debug("program halted", "exit", vm.ExitCode, "steps", vm.Steps)

	if vm.ExitCode != 0 {
		return &ExitError{Code: vm.ExitCode, Err: errProgramExit}
	}
	return nil
}
