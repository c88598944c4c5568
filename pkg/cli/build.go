package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"alongc/pkg/compiler"
	"alongc/pkg/utils"
)

// autoSymbols is the --symbols value meaning "next to the assembly".
const autoSymbols = "auto"

type buildOptions struct {
	title     string
	outDir    string
	listing   bool
	symbols   bool
	symbolsTo string
}

func newBuildCmd(a *app) *cobra.Command {
	var (
		outDir    string
		symbols   string
		noListing bool
	)

	cmd := &cobra.Command{
		Use:   "build <base> [title]",
		Short: "Translate <base>.cmn into Along32 assembly",
		Long: `Translate <base>.cmn into <base>.asm and write the numbered listing to
<base>.ccmn. The title defaults to the base name.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.defaultBuildOptions()
			if len(args) == 2 {
				opts.title = args[1]
			}
			if cmd.Flags().Changed("out-dir") {
				opts.outDir = outDir
			}
			if cmd.Flags().Changed("symbols") {
				opts.symbols = true
				opts.symbolsTo = symbols
			}
			if noListing {
				opts.listing = false
			}

			art, err := a.build(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("wrote "+art.Output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory for the listing and assembly (default: next to the source)")
	cmd.Flags().StringVar(&symbols, "symbols", "", "also write the symbol table as YAML (default path: <base>.symbols.yaml)")
	cmd.Flags().Lookup("symbols").NoOptDefVal = autoSymbols
	cmd.Flags().BoolVar(&noListing, "no-listing", false, "do not write the .ccmn listing")
	return cmd
}

func (a *app) defaultBuildOptions() buildOptions {
	return buildOptions{
		title:   a.cfg.Build.Title,
		outDir:  a.cfg.Build.OutDir,
		listing: a.cfg.ListingEnabled(),
		symbols: a.cfg.Build.Symbols,
	}
}

func (a *app) extensions() utils.Extensions {
	return utils.Extensions{
		Source:  a.cfg.Build.SourceExt,
		Listing: a.cfg.Build.ListingExt,
		Output:  a.cfg.Build.OutputExt,
		Symbols: a.cfg.Build.SymbolsSuffix,
	}
}

// build runs one file-to-file compilation. All files are opened before
// compiling and closed on every path.
func (a *app) build(base string, opts buildOptions) (art utils.Artifacts, err error) {
	art, err = utils.ResolveArtifacts(base, opts.outDir, a.extensions())
	if err != nil {
		return art, err
	}
	if opts.symbolsTo != "" && opts.symbolsTo != autoSymbols {
		art.Symbols = opts.symbolsTo
	}
	title := opts.title
	if title == "" {
		title = art.Base
	}

	log := a.log.With("build", uuid.NewString(), "source", art.Source)

	src, err := os.Open(art.Source)
	if err != nil {
		return art, fmt.Errorf("unable to open/create important files: %w", err)
	}
	defer src.Close()

	if opts.outDir != "" {
		if err := os.MkdirAll(filepath.Dir(art.Output), 0o755); err != nil {
			return art, fmt.Errorf("unable to open/create important files: %w", err)
		}
	}

	var listing io.Writer
	if opts.listing {
		f, ferr := os.Create(art.Listing)
		if ferr != nil {
			return art, fmt.Errorf("unable to open/create important files: %w", ferr)
		}
		defer closeInto(f, &err)
		listing = f
	}

	out, err := os.Create(art.Output)
	if err != nil {
		return art, fmt.Errorf("unable to open/create important files: %w", err)
	}
	defer closeInto(out, &err)

	c := compiler.New(src, out, compiler.Options{
		Title:    title,
		Includes: a.cfg.Emit.Includes,
		Listing:  listing,
		Logger:   log,
	})
	if err := c.Run(); err != nil {
		return art, compileFailed(err, c.ErrorCount())
	}

	if opts.symbols {
		if err := writeSymbols(art.Symbols, c.Symbols()); err != nil {
			return art, err
		}
		log.Debug("symbols written", "path", art.Symbols)
	}
	return art, nil
}

func writeSymbols(path string, syms *compiler.SymbolTable) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create symbols file: %w", err)
	}
	defer closeInto(f, &err)
	return syms.WriteYAML(f)
}

// closeInto closes c and keeps its error unless *err already holds one.
func closeInto(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
