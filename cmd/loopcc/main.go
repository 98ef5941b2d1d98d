package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raymyers/loopcc/pkg/compile"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/irfile"
	"github.com/raymyers/loopcc/pkg/isel"
	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/memspace"
)

var version = "0.1.0"

// Command line options
var (
	outDir    string
	stem      string
	target    string
	jobs      int
	keepGoing bool
	dumpIR    bool
	verbose   bool
)

// ErrCompileFailed is returned once the failure has been reported on the
// error writer.
var ErrCompileFailed = errors.New("compilation failed")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := executeRoot(rootCmd, os.Stderr); err != nil {
		return 1
	}
	return 0
}

// executeRoot runs the command and reports any error that RunE did not
// already print, such as a bad flag.
func executeRoot(cmd *cobra.Command, errOut io.Writer) error {
	err := cmd.Execute()
	if err != nil && !errors.Is(err, ErrCompileFailed) {
		fmt.Fprintf(errOut, "loopcc: %v\n", err)
	}
	return err
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loopcc [flags] file...",
		Short: "loopcc lowers scheduled loop IR to C with SIMD intrinsics",
		Long: `loopcc reads scheduled loop IR documents and emits one C header and
one C source per document. Vector memory spaces are lowered to the
intrinsics of the selected targets.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			if stem != "" && len(args) > 1 {
				fmt.Fprintln(errOut, "loopcc: --stem needs exactly one input file")
				return ErrCompileFailed
			}

			units := make([]*loopir.Unit, 0, len(args))
			for _, filename := range args {
				u, err := irfile.Load(filename)
				if err != nil {
					fmt.Fprintf(errOut, "loopcc: %v\n", err)
					return ErrCompileFailed
				}
				units = append(units, u)
			}

			// Handle --dir: dump the decoded IR
			if dumpIR {
				p := loopir.NewPrinter(out)
				for _, u := range units {
					p.PrintUnit(u)
				}
				return nil
			}

			table, err := selectTable(target)
			if err != nil {
				fmt.Fprintf(errOut, "loopcc: %v\n", err)
				return ErrCompileFailed
			}
			failed := false
			for _, u := range units {
				if err := compileUnit(cmd.Context(), u, table, errOut); err != nil {
					failed = true
				}
			}
			if failed {
				return ErrCompileFailed
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory for the generated .h and .c files")
	rootCmd.Flags().StringVar(&stem, "stem", "", "Base name of the generated files (default: unit name)")
	rootCmd.Flags().StringVar(&target, "target", "all", "Comma-separated targets, \"all\" or \"native\"")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Procedures lowered in parallel (default: GOMAXPROCS)")
	rootCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Write the procedures that compiled even when others failed")
	rootCmd.Flags().BoolVar(&dumpIR, "dir", false, "Dump the decoded IR and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report each procedure and written file")

	rootCmd.AddCommand(newTargetsCmd(out))
	return rootCmd
}

// selectTable resolves the --target flag
func selectTable(spec string) (*isel.Table, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "all":
		return isel.Default(), nil
	case "native":
		if len(isel.HostTargets()) == 0 {
			return nil, fmt.Errorf("no supported target on this machine (known: %s)", strings.Join(isel.TargetNames(), ", "))
		}
		return isel.HostTable()
	}
	return isel.ForTargets(strings.Split(spec, ",")...)
}

// compileUnit compiles one unit and writes its artifacts, reporting every
// failure on errOut.
func compileUnit(ctx context.Context, u *loopir.Unit, table *isel.Table, errOut io.Writer) error {
	opts := compile.Options{
		Stem:      stem,
		Table:     table,
		Jobs:      jobs,
		KeepGoing: keepGoing,
	}
	if verbose {
		opts.Progress = func(proc string, err error) {
			if err == nil {
				fmt.Fprintf(errOut, "loopcc: %s: lowered %s\n", u.Name, proc)
			}
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	art, err := compile.Compile(ctx, u, opts)
	var list diag.List
	if errors.As(err, &list) {
		for _, e := range list {
			fmt.Fprintf(errOut, "loopcc: %v\n", e)
		}
	} else if err != nil {
		fmt.Fprintf(errOut, "loopcc: %s: %v\n", u.Name, err)
	}
	if art == nil {
		return err
	}

	paths, werr := art.Write(outDir)
	if werr != nil {
		fmt.Fprintf(errOut, "loopcc: %v\n", werr)
		return werr
	}
	if verbose {
		for _, p := range paths {
			fmt.Fprintf(errOut, "loopcc: wrote %s\n", p)
		}
	}
	return err
}

func newTargetsCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List instruction set targets and memory spaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTargets(out)
			return nil
		},
	}
}

func printTargets(out io.Writer) {
	host := isel.HostSupport()
	table := isel.Default()
	fmt.Fprintln(out, "Targets:")
	for _, t := range isel.AllTargets() {
		mark := "no"
		if host[t.Name] {
			mark = "yes"
		}
		fmt.Fprintf(out, "  %-8s host: %-3s  memory: %s\n", t.Name, mark, strings.Join(t.Mems, ", "))
	}

	fmt.Fprintln(out, "Memory spaces:")
	for _, name := range memspace.Names() {
		s, err := memspace.Lookup(name)
		if err != nil {
			continue
		}
		if !s.IsRegister() {
			fmt.Fprintf(out, "  %-8s %s\n", s.Name, s.Strategy)
			continue
		}
		fmt.Fprintf(out, "  %-8s %s %d x %s: %s\n", s.Name, s.Strategy, s.Lanes, s.Elem,
			strings.Join(table.Ops(s.Name), ", "))
	}
}
