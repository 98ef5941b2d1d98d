package lowering

import (
	"fmt"
	"strings"

	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/layout"
	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/memspace"
)

// bindKind says how a name in scope is read and written
type bindKind int

const (
	bindCtrl      bindKind = iota // size/index/stride/bool value
	bindScalarPtr                 // numeric scalar parameter, accessed as *x
	bindScalar                    // numeric scalar local, accessed as x
	bindBuffer                    // pointer or window buffer
	bindRegister                  // vector register variable(s)
)

// binding is what an IR symbol means in the emitted code
type binding struct {
	kind     bindKind
	cname    string
	base     loopir.BaseType
	subst    csrc.Expr // loop variables rebound by a split
	nonNeg   bool
	readOnly bool
	view     layout.View
	space    memspace.Space
}

func (b *binding) ref() csrc.Expr {
	if b.subst != nil {
		return b.subst
	}
	return csrc.Var(b.cname)
}

type scope struct {
	syms  map[loopir.Sym]*binding
	names map[string]bool
	hints map[string]bool
	frees []csrc.Stmt
}

// reserved C identifiers and emitted typedef and helper names that IR
// names must never take
var reserved = map[string]bool{
	"ctxt": true, "auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true, "enum": true,
	"extern": true, "float": true, "for": true, "goto": true, "if": true, "inline": true,
	"int": true, "long": true, "register": true, "restrict": true, "return": true, "short": true,
	"signed": true, "sizeof": true, "static": true, "struct": true, "switch": true, "typedef": true,
	"union": true, "unsigned": true, "void": true, "volatile": true, "while": true, "bool": true,
	"true": true, "false": true, "free": true, "malloc": true, "NULL": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"int_fast32_t": true, "size_t": true, "float32x4_t": true,
}

// reservedPrefixes cover generated helpers (lcc_floor_div, lcc_clamp_32to8),
// window structs (lcc_win_2f32c), the LCC_ASSUME macro and compiler
// intrinsics. No generated name ends in a _N suffix, so a prefixed IR name
// always takes one.
var reservedPrefixes = []string{"lcc_", "LCC_", "_"}

func hasReservedPrefix(name string) bool {
	for _, pre := range reservedPrefixes {
		if strings.HasPrefix(name, pre) {
			return true
		}
	}
	return false
}

func (st *procState) push() {
	st.scopes = append(st.scopes, &scope{
		syms:  map[loopir.Sym]*binding{},
		names: map[string]bool{},
		hints: map[string]bool{},
	})
}

// pop closes the innermost scope and returns its pending releases.
func (st *procState) pop() []csrc.Stmt {
	top := st.scopes[len(st.scopes)-1]
	st.scopes = st.scopes[:len(st.scopes)-1]
	frees := make([]csrc.Stmt, 0, len(top.frees))
	for i := len(top.frees) - 1; i >= 0; i-- {
		frees = append(frees, top.frees[i])
	}
	return frees
}

func (st *procState) top() *scope {
	return st.scopes[len(st.scopes)-1]
}

func (st *procState) lookup(name loopir.Sym) (*binding, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if b, ok := st.scopes[i].syms[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (st *procState) visible(cname string) bool {
	if reserved[cname] {
		return true
	}
	if st.c.unit.Proc(cname) != nil {
		return true
	}
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if st.scopes[i].names[cname] {
			return true
		}
	}
	return false
}

// fresh picks a C name for sym that no visible binding uses: the plain
// name when free, else name_1, name_2, ...
func (st *procState) fresh(sym loopir.Sym) string {
	base := string(sym)
	name, n := base, 0
	if hasReservedPrefix(base) {
		name, n = base+"_1", 1
	}
	for st.visible(name) {
		n++
		name = fmt.Sprintf("%s_%d", base, n)
	}
	return name
}

// bind declares sym in the innermost scope under a fresh C name
func (st *procState) bind(sym loopir.Sym, b *binding) *binding {
	if b.cname == "" {
		b.cname = st.fresh(sym)
	}
	t := st.top()
	t.syms[sym] = b
	t.names[b.cname] = true
	return b
}

// bindSubst rebinds sym to an expression without declaring a C name
func (st *procState) bindSubst(sym loopir.Sym, e csrc.Expr) {
	st.top().syms[sym] = &binding{kind: bindCtrl, base: loopir.Index, subst: e, nonNeg: true}
}

// hinted reports whether an assumption was already emitted in a visible
// scope, and records it in the innermost one otherwise.
func (st *procState) hinted(h string) bool {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if st.scopes[i].hints[h] {
			return true
		}
	}
	st.top().hints[h] = true
	return false
}
