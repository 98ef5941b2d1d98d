// Package memspace holds the fixed table of named memory spaces and how
// buffers placed in each are lowered.
package memspace

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/loopir"
)

// Strategy selects how buffers in a space are represented
type Strategy int

const (
	Plain    Strategy = iota // raw pointers and window descriptors
	Register                 // vector registers, reached only through isel
)

func (s Strategy) String() string {
	if s == Plain {
		return "plain"
	}
	return "register"
}

// Space describes one memory space
type Space struct {
	Name     string
	Strategy Strategy

	// Heap allows allocations with a shape only known at run time.
	Heap bool

	// Includes are system headers required when the space is used.
	Includes []string

	// Register spaces only: vector type, its element and lane count.
	Vector ctypes.Tvector
	Elem   loopir.BaseType
	Lanes  int

	// Target is the instruction set a register space belongs to.
	Target string
}

// IsRegister reports whether buffers in the space live in vector registers
func (s Space) IsRegister() bool {
	return s.Strategy == Register
}

// registry holds every known memory space, keyed by name.
var registry map[string]Space

func init() {
	registry = make(map[string]Space)
	for _, s := range []Space{
		{Name: loopir.DefaultMem, Strategy: Plain, Heap: true},
		{Name: "DRAM_STATIC", Strategy: Plain},
		registerSpace("AVX2", "AVX2", "__m256", 8, "<immintrin.h>"),
		registerSpace("AVX512", "AVX512", "__m512", 16, "<immintrin.h>"),
		registerSpace("Neon4f", "NEON", "float32x4_t", 4, "<arm_neon.h>"),
	} {
		registry[s.Name] = s
	}
}

func registerSpace(name, target, vec string, lanes int, include string) Space {
	return Space{
		Name:     name,
		Strategy: Register,
		Includes: []string{include},
		Vector:   ctypes.Tvector{Name: vec, Elem: ctypes.Float(), Lanes: lanes},
		Elem:     loopir.F32,
		Lanes:    lanes,
		Target:   target,
	}
}

// Lookup returns the memory space with the given name; "" is DRAM.
func Lookup(name string) (Space, error) {
	s, ok := registry[loopir.MemName(name)]
	if !ok {
		return Space{}, fmt.Errorf("unknown memory space %q", name)
	}
	return s, nil
}

// Names returns every registered space name, sorted
func Names() []string {
	names := lo.Keys(registry)
	slices.Sort(names)
	return names
}

// Includes returns the sorted, deduplicated headers needed by the spaces
func Includes(names []string) []string {
	var incs []string
	for _, n := range names {
		if s, err := Lookup(n); err == nil {
			incs = append(incs, s.Includes...)
		}
	}
	incs = lo.Uniq(incs)
	slices.Sort(incs)
	return incs
}

// ElemCType returns the C element type of an IR numeric type
func ElemCType(b loopir.BaseType) ctypes.Type {
	switch b {
	case loopir.F32:
		return ctypes.Float()
	case loopir.F64:
		return ctypes.Double()
	case loopir.I8:
		return ctypes.I8()
	case loopir.I32:
		return ctypes.I32()
	case loopir.Bool:
		return ctypes.Bool()
	}
	return ctypes.Index()
}
