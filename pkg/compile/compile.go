// Package compile lowers every procedure of a unit and assembles the
// header and source artifacts.
package compile

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/isel"
	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/lowering"
)

// Options control a compilation
type Options struct {
	// Stem names the artifacts; defaults to the unit name.
	Stem string
	// Table resolves vector operations; defaults to isel.Default().
	Table *isel.Table
	// Jobs bounds parallel lowering; defaults to GOMAXPROCS.
	Jobs int
	// KeepGoing assembles artifacts from the procedures that lowered
	// successfully even when others failed.
	KeepGoing bool
	// Progress, when set, is called once per procedure in source order.
	Progress func(proc string, err error)
}

// Artifacts are the emitted header and source
type Artifacts struct {
	Stem   string
	Header string
	Source string
	// Procs lists the procedures present in the artifacts
	Procs []string
}

// Compile lowers unit. Procedures the unit does not export are emitted
// static and declared only in the source. On failure the error is a diag.List holding every
// failed procedure in source order; artifacts are returned alongside it
// only with KeepGoing.
func Compile(ctx context.Context, unit *loopir.Unit, opts Options) (*Artifacts, error) {
	if opts.Table == nil {
		opts.Table = isel.Default()
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Stem == "" {
		opts.Stem = unit.Name
	}

	for _, name := range unit.Exports {
		if unit.Proc(name) == nil {
			return nil, diag.List{diag.Invariant(loopir.SrcInfo{}, "export %s names no procedure", name)}
		}
	}

	n := len(unit.Procs)
	results := make([]*lowering.Result, n)
	errs := make([]error, n)
	seen := make(map[string]bool, n)
	for i, p := range unit.Procs {
		if seen[p.Name] {
			errs[i] = diag.InProc(diag.Invariant(p.Src, "duplicate procedure %s", p.Name), p.Name, p.Src)
		}
		seen[p.Name] = true
	}

	compiler := lowering.NewCompiler(unit, opts.Table)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, p := range unit.Procs {
		if errs[i] != nil {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// each worker writes only its own slot
			results[i], errs[i] = compiler.CompileProc(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed diag.List
	var ok []*lowering.Result
	for i, p := range unit.Procs {
		if opts.Progress != nil {
			opts.Progress(p.Name, errs[i])
		}
		if errs[i] != nil {
			failed = append(failed, diag.InProc(errs[i], p.Name, p.Src))
			continue
		}
		ok = append(ok, results[i])
	}
	if len(failed) > 0 && !opts.KeepGoing {
		return nil, failed
	}
	return assemble(opts.Stem, ok), failed.Err()
}

// Write stores the artifacts as <stem>.h and <stem>.c in dir and returns
// their paths.
func (a *Artifacts) Write(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	h := filepath.Join(dir, a.Stem+".h")
	c := filepath.Join(dir, a.Stem+".c")
	if err := os.WriteFile(h, []byte(a.Header), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(c, []byte(a.Source), 0o644); err != nil {
		return nil, err
	}
	return []string{h, c}, nil
}
