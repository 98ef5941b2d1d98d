package isel

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/loopir"
)

// Table is a read-only registry of templates keyed by (memory space, op)
type Table struct {
	targets []string
	entries map[Key]*Template
}

// NewTable builds a table from the given targets. A later target may not
// redefine an entry of an earlier one.
func NewTable(targets ...Target) (*Table, error) {
	t := &Table{entries: map[Key]*Template{}}
	for _, tg := range targets {
		t.targets = append(t.targets, tg.Name)
		for i := range tg.Entries {
			e := &tg.Entries[i]
			k := Key{Mem: e.Mem, Op: e.Op}
			if _, dup := t.entries[k]; dup {
				return nil, fmt.Errorf("target %s: duplicate entry %s", tg.Name, k)
			}
			t.entries[k] = e
		}
	}
	return t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the table with every known target
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable(AllTargets()...)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

var upper = cases.Upper(language.Und)

// ForTargets returns a table restricted to the named targets, matched
// case-insensitively. "all" selects every target.
func ForTargets(names ...string) (*Table, error) {
	all := AllTargets()
	if len(names) == 1 && strings.EqualFold(names[0], "all") {
		return NewTable(all...)
	}
	var picked []Target
	for _, n := range lo.Uniq(lo.Map(names, func(n string, _ int) string {
		return upper.String(strings.TrimSpace(n))
	})) {
		tg, ok := lo.Find(all, func(t Target) bool { return t.Name == n })
		if !ok {
			return nil, fmt.Errorf("unknown target %q (known: %s)", n, strings.Join(TargetNames(), ", "))
		}
		picked = append(picked, tg)
	}
	return NewTable(picked...)
}

// TargetNames returns the names of every known target
func TargetNames() []string {
	return lo.Map(AllTargets(), func(t Target, _ int) string { return t.Name })
}

// Targets returns the names of the targets in the table
func (t *Table) Targets() []string {
	return slices.Clone(t.targets)
}

// Lookup returns the template for (mem, op). A miss is UnsupportedOperation.
func (t *Table) Lookup(mem, op string, src loopir.SrcInfo) (*Template, error) {
	k := Key{Mem: loopir.MemName(mem), Op: op}
	if e, ok := t.entries[k]; ok {
		return e, nil
	}
	return nil, diag.Unsupported(src, "no instruction for %s on memory %s with targets [%s]",
		op, k.Mem, strings.Join(t.targets, ", "))
}

// Keys returns every entry key, sorted by memory space then operation
func (t *Table) Keys() []Key {
	keys := lo.Keys(t.entries)
	slices.SortFunc(keys, func(a, b Key) int {
		if c := strings.Compare(a.Mem, b.Mem); c != 0 {
			return c
		}
		return strings.Compare(a.Op, b.Op)
	})
	return keys
}

// Ops returns the sorted operations available on a memory space
func (t *Table) Ops(mem string) []string {
	var ops []string
	for _, k := range t.Keys() {
		if k.Mem == mem {
			ops = append(ops, k.Op)
		}
	}
	return ops
}
