package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"alongc/pkg/utils"
	"alongc/pkg/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		outDir  string
		symbols bool
		initial bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Rebuild every source in <dir> when it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.defaultBuildOptions()
			if cmd.Flags().Changed("out-dir") {
				opts.outDir = outDir
			}
			if symbols {
				opts.symbols = true
			}
			ext := a.extensions()

			w := watch.New(args[0], func(path string) error {
				_, err := a.build(path, opts)
				if err != nil {
					printBuildError(cmd.ErrOrStderr(), err)
				}
				return err
			}, watch.Options{
				Debounce: a.cfg.Watch.Debounce.Duration,
				Match:    func(p string) bool { return utils.IsSource(p, ext) },
				Initial:  initial,
				Logger:   a.log,
			})

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
			defer stop()
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory for the listing and assembly (default: next to the source)")
	cmd.Flags().BoolVar(&symbols, "symbols", false, "also write <base>.symbols.yaml")
	cmd.Flags().BoolVar(&initial, "initial", true, "build every source once at startup")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
