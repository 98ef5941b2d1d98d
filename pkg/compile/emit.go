package compile

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/isel"
	"github.com/raymyers/loopcc/pkg/layout"
	"github.com/raymyers/loopcc/pkg/lowering"
	"github.com/raymyers/loopcc/pkg/memspace"
)

var upper = cases.Upper(language.Und)

const assumeMacro = `#ifndef LCC_ASSUME
#if defined(__clang__)
#define LCC_ASSUME(x) __builtin_assume(x)
#elif defined(__GNUC__)
#define LCC_ASSUME(x) do { if (!(x)) __builtin_unreachable(); } while (0)
#elif defined(_MSC_VER)
#define LCC_ASSUME(x) __assume(x)
#else
#define LCC_ASSUME(x) ((void)0)
#endif
#endif`

// Guard returns the include guard for a stem, e.g. "my-kernels" gives
// MY_KERNELS_H.
func Guard(stem string) string {
	s := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, stem)
	if s == "" || unicode.IsDigit(rune(s[0])) {
		s = "_" + s
	}
	return upper.String(s) + "_H"
}

func assemble(stem string, results []*lowering.Result) *Artifacts {
	windows := layout.NewRegistry()
	helpers := map[string]isel.Helper{}
	var mems []string
	heap := false
	var procs []string
	for _, r := range results {
		windows.Merge(r.Windows)
		for _, h := range r.Helpers {
			helpers[h.Name] = h
		}
		mems = append(mems, r.Mems...)
		heap = heap || r.UsesHeap
		procs = append(procs, r.Proc.Name)
	}
	return &Artifacts{
		Stem:   stem,
		Header: header(stem, windows, results),
		Source: source(stem, results, helpers, mems, heap),
		Procs:  procs,
	}
}

func header(stem string, windows *layout.Registry, results []*lowering.Result) string {
	guard := Guard(stem)
	var b bytes.Buffer
	fmt.Fprintln(&b, "#pragma once")
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	fmt.Fprint(&b, "#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")
	fmt.Fprint(&b, "#include <stdint.h>\n#include <stdbool.h>\n\n")
	fmt.Fprintf(&b, "%s\n\n", assumeMacro)

	p := csrc.NewPrinter(&b)
	for _, w := range windows.Sorted() {
		g := upper.String(w.Name())
		fmt.Fprintf(&b, "#ifndef %s\n#define %s\n", g, g)
		p.PrintStructDef(w.Def())
		fmt.Fprint(&b, "#endif\n\n")
	}
	for _, r := range results {
		if r.Func.Static {
			continue
		}
		p.PrintPrototype(r.Func)
		fmt.Fprintln(&b)
	}

	fmt.Fprint(&b, "#ifdef __cplusplus\n}\n#endif\n")
	fmt.Fprintf(&b, "#endif  // %s\n", guard)
	return b.String()
}

func source(stem string, results []*lowering.Result, helpers map[string]isel.Helper, mems []string, heap bool) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "#include \"%s.h\"\n\n", stem)

	includes := memspace.Includes(mems)
	if heap {
		includes = append(includes, "<stdlib.h>")
	}
	includes = lo.Uniq(includes)
	slices.Sort(includes)
	for _, inc := range includes {
		fmt.Fprintf(&b, "#include %s\n", inc)
	}
	if len(includes) > 0 {
		fmt.Fprintln(&b)
	}

	names := lo.Keys(helpers)
	slices.Sort(names)
	for _, n := range names {
		fmt.Fprintf(&b, "%s\n\n", helpers[n].Code)
	}

	p := csrc.NewPrinter(&b)
	for _, r := range results {
		if r.Func.Static {
			p.PrintPrototype(r.Func)
			fmt.Fprintln(&b)
		}
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(&b)
		}
		p.PrintFunction(r.Func)
	}
	return b.String()
}
