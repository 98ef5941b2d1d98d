package layout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/memspace"
)

// WindowStruct identifies a window descriptor type. Two descriptors with
// the same element, rank and constness are the same C type.
type WindowStruct struct {
	Elem  loopir.BaseType
	Rank  int
	Const bool
}

// Name returns the deterministic C name, e.g. lcc_win_2f32c
func (w WindowStruct) Name() string {
	c := ""
	if w.Const {
		c = "c"
	}
	return fmt.Sprintf("lcc_win_%d%s%s", w.Rank, w.Elem, c)
}

// Type returns the struct type used in declarations
func (w WindowStruct) Type() ctypes.Tstruct {
	return ctypes.Tstruct{Name: w.Name()}
}

// Def returns the struct definition with its fields. The innermost stride
// is always 1 and is not stored.
func (w WindowStruct) Def() ctypes.Tstruct {
	fields := []ctypes.Field{{
		Name: "data",
		Type: ctypes.Tpointer{Elem: memspace.ElemCType(w.Elem), Const: w.Const, ConstPtr: true},
	}}
	if w.Rank > 1 {
		fields = append(fields, ctypes.Field{
			Name:  fmt.Sprintf("strides[%d]", w.Rank-1),
			Type:  ctypes.Index(),
			Const: true,
		})
	}
	return ctypes.Tstruct{Name: w.Name(), Fields: fields}
}

// Registry collects the window descriptors used by emitted code
type Registry struct {
	used map[string]WindowStruct
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{used: map[string]WindowStruct{}}
}

// Use records a descriptor and returns its C type
func (r *Registry) Use(w WindowStruct) ctypes.Tstruct {
	r.used[w.Name()] = w
	return w.Type()
}

// Merge adds every descriptor of other
func (r *Registry) Merge(other *Registry) {
	for k, w := range other.used {
		r.used[k] = w
	}
}

// Sorted returns the used descriptors ordered by name
func (r *Registry) Sorted() []WindowStruct {
	out := lo.Values(r.used)
	slices.SortFunc(out, func(a, b WindowStruct) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}

// Len returns the number of distinct descriptors
func (r *Registry) Len() int {
	return len(r.used)
}
