package memspace

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/loopcc/pkg/ctypes"
	"github.com/raymyers/loopcc/pkg/loopir"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		heap     bool
		lanes    int
	}{
		{"", Plain, true, 0},
		{"DRAM", Plain, true, 0},
		{"DRAM_STATIC", Plain, false, 0},
		{"AVX2", Register, false, 8},
		{"AVX512", Register, false, 16},
		{"Neon4f", Register, false, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Lookup(tt.name)
			if err != nil {
				t.Fatalf("Lookup(%q): %v", tt.name, err)
			}
			if s.Strategy != tt.strategy || s.Heap != tt.heap || s.Lanes != tt.lanes {
				t.Errorf("Lookup(%q) = %+v", tt.name, s)
			}
		})
	}
	if _, err := Lookup("GPU_SHARED"); err == nil {
		t.Error("expected error for unknown space")
	}
}

func TestIncludes(t *testing.T) {
	got := Includes([]string{"DRAM", "AVX512", "AVX2", "Neon4f"})
	want := []string{"<arm_neon.h>", "<immintrin.h>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Includes mismatch (-want +got):\n%s", diff)
	}
	if got := Includes([]string{"DRAM"}); len(got) != 0 {
		t.Errorf("plain spaces need no includes, got %v", got)
	}
}

func TestNames(t *testing.T) {
	want := []string{"AVX2", "AVX512", "DRAM", "DRAM_STATIC", "Neon4f"}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestElemCType(t *testing.T) {
	tests := []struct {
		b    loopir.BaseType
		want ctypes.Type
	}{
		{loopir.F32, ctypes.Float()},
		{loopir.F64, ctypes.Double()},
		{loopir.I8, ctypes.I8()},
		{loopir.I32, ctypes.I32()},
		{loopir.Size, ctypes.Index()},
		{loopir.Bool, ctypes.Bool()},
	}
	for _, tt := range tests {
		if got := ElemCType(tt.b); !ctypes.Equal(got, tt.want) {
			t.Errorf("ElemCType(%v) = %v, want %v", tt.b, got, tt.want)
		}
	}
}
