package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"alongc/pkg/compiler"
	"alongc/pkg/utils"
)

func newSymbolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols <base>",
		Short: "Print the symbol table of <base>.cmn as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := utils.ResolveArtifacts(args[0], "", a.extensions())
			if err != nil {
				return err
			}
			src, err := os.ReadFile(art.Source)
			if err != nil {
				return fmt.Errorf("unable to open/create important files: %w", err)
			}

			res, err := compiler.Compile(string(src), compiler.Options{
				Title:    art.Base,
				Includes: a.cfg.Emit.Includes,
				Logger:   a.log,
			})
			if err != nil {
				return compileFailed(err, res.Errors)
			}
			return res.Symbols.WriteYAML(cmd.OutOrStdout())
		},
	}
}
