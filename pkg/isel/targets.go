package isel

import (
	"fmt"
	"strings"
)

// Target is one instruction set and the entries it contributes
type Target struct {
	Name    string // "AVX2", "AVX512", "NEON"
	Mems    []string
	Entries []Template
}

// vecOps describes the intrinsics of a single f32 vector memory space.
// Empty fields leave the operation out of the target.
type vecOps struct {
	mem, prefix     string
	lanes           int64
	load, store     string
	zero, broadcast string
	add, sub, mul   string
	fmadd           string // {dst_data} = fmadd(a, b, dst)
	fmaddArgs       string // order of the three operands
	reduce          string
	prefixLoad      string
	prefixStore     string
	helpers         []Helper
}

func vector(name string, mem string) ArgSpec {
	return ArgSpec{Name: name, Form: Data, Mem: mem, Rank: 1}
}

func (v vecOps) templates() []Template {
	dst := ArgSpec{Name: "dst", Form: Data, Mem: v.mem, Rank: 1, Writes: true}
	full := func(args ...string) []Assumption {
		as := make([]Assumption, len(args))
		for i, a := range args {
			as[i] = Assumption{Arg: a, Dim: 0, Max: v.lanes, Exact: true}
		}
		return as
	}
	var ts []Template
	add := func(t Template) {
		t.Mem = v.mem
		ts = append(ts, t)
	}

	add(Template{
		Op:        "load",
		Intrinsic: v.load,
		Format:    fmt.Sprintf("{dst_data} = %s(&{src_data});", v.load),
		Args:      []ArgSpec{dst, {Name: "src", Form: Data, Mem: "DRAM", Rank: 1}},
		Assumes:   full("dst", "src"),
	})
	add(Template{
		Op:        "store",
		Intrinsic: v.store,
		Format:    fmt.Sprintf("%s(&{dst_data}, {src_data});", v.store),
		Args:      []ArgSpec{{Name: "dst", Form: Data, Mem: "DRAM", Rank: 1, Writes: true}, vector("src", v.mem)},
		Assumes:   full("dst", "src"),
	})
	add(Template{
		Op:        "zero",
		Intrinsic: v.zero,
		Format:    fmt.Sprintf("{dst_data} = %s;", v.zero),
		Args:      []ArgSpec{dst},
		Assumes:   full("dst"),
	})
	add(Template{
		Op:        "broadcast",
		Intrinsic: v.broadcast,
		Format:    fmt.Sprintf("{dst_data} = %s({src});", v.broadcast),
		Args:      []ArgSpec{dst, {Name: "src", Form: Scalar}},
		Assumes:   full("dst"),
	})
	for _, bin := range []struct{ op, fn string }{{"add", v.add}, {"sub", v.sub}, {"mul", v.mul}} {
		add(Template{
			Op:        bin.op,
			Intrinsic: bin.fn,
			Format:    fmt.Sprintf("{dst_data} = %s({lhs_data}, {rhs_data});", bin.fn),
			Args:      []ArgSpec{dst, vector("lhs", v.mem), vector("rhs", v.mem)},
			Assumes:   full("dst", "lhs", "rhs"),
			RankAgree: true,
		})
	}
	add(Template{
		Op:        "fmadd",
		Intrinsic: v.fmadd,
		Format:    fmt.Sprintf("{dst_data} = %s(%s);", v.fmadd, v.fmaddArgs),
		Args:      []ArgSpec{dst, vector("a", v.mem), vector("b", v.mem)},
		Assumes:   full("dst", "a", "b"),
		RankAgree: true,
	})
	add(Template{
		Op:        "reduce_add",
		Intrinsic: v.reduce,
		Format:    fmt.Sprintf("{dst_data} += %s({src_data});", v.reduce),
		Args:      []ArgSpec{{Name: "dst", Form: Data, Mem: "DRAM", Rank: 0, Writes: true}, vector("src", v.mem)},
		Assumes:   full("src"),
		Helpers:   v.helpersFor(v.reduce),
	})
	if v.prefixLoad != "" {
		add(Template{
			Op:        "prefix_load",
			Intrinsic: v.prefixLoad,
			Format:    v.prefixLoad,
			Args:      []ArgSpec{dst, {Name: "src", Form: Data, Mem: "DRAM", Rank: 1}, {Name: "n", Form: Scalar}},
			Assumes:   []Assumption{{Arg: "src", Dim: 0, Max: v.lanes}, {Arg: "dst", Dim: 0, Max: v.lanes, Exact: true}},
			Helpers:   v.helpersFor(v.prefixLoad),
		})
	}
	if v.prefixStore != "" {
		add(Template{
			Op:        "prefix_store",
			Intrinsic: v.prefixStore,
			Format:    v.prefixStore,
			Args:      []ArgSpec{{Name: "dst", Form: Data, Mem: "DRAM", Rank: 1, Writes: true}, vector("src", v.mem), {Name: "n", Form: Scalar}},
			Assumes:   []Assumption{{Arg: "dst", Dim: 0, Max: v.lanes}, {Arg: "src", Dim: 0, Max: v.lanes, Exact: true}},
			Helpers:   v.helpersFor(v.prefixStore),
		})
	}
	// prefix formats carry their own statement text; take the intrinsic
	// name from the first call in it.
	for i := range ts {
		if name, _, ok := strings.Cut(ts[i].Intrinsic, "("); ok {
			ts[i].Intrinsic = strings.TrimSpace(name[strings.LastIndex(name, " ")+1:])
		}
	}
	return ts
}

func (v vecOps) helpersFor(format string) []Helper {
	var hs []Helper
	for _, h := range v.helpers {
		if strings.Contains(format, h.Name+"(") {
			hs = append(hs, h)
		}
	}
	return hs
}

const avx2PrefixMask = `static inline __m256i lcc_avx2_prefix_mask(int_fast32_t n) {
    return _mm256_cmpgt_epi32(_mm256_set1_epi32((int)n), _mm256_setr_epi32(0, 1, 2, 3, 4, 5, 6, 7));
}`

const avx2Hsum = `static inline float lcc_avx2_hsum(__m256 v) {
    __m128 lo = _mm_add_ps(_mm256_castps256_ps128(v), _mm256_extractf128_ps(v, 1));
    lo = _mm_add_ps(lo, _mm_movehl_ps(lo, lo));
    lo = _mm_add_ss(lo, _mm_movehdup_ps(lo));
    return _mm_cvtss_f32(lo);
}`

const avx512PrefixMask = `static inline __mmask16 lcc_avx512_prefix_mask(int_fast32_t n) {
    return (__mmask16)((1u << n) - 1u);
}`

// AVX2Target returns the 8 x f32 AVX2 + FMA entries
func AVX2Target() Target {
	ops := vecOps{
		mem: "AVX2", lanes: 8,
		load: "_mm256_loadu_ps", store: "_mm256_storeu_ps",
		zero: "_mm256_setzero_ps()", broadcast: "_mm256_set1_ps",
		add: "_mm256_add_ps", sub: "_mm256_sub_ps", mul: "_mm256_mul_ps",
		fmadd: "_mm256_fmadd_ps", fmaddArgs: "{a_data}, {b_data}, {dst_data}",
		reduce:      "lcc_avx2_hsum",
		prefixLoad:  "{dst_data} = _mm256_maskload_ps(&{src_data}, lcc_avx2_prefix_mask({n}));",
		prefixStore: "_mm256_maskstore_ps(&{dst_data}, lcc_avx2_prefix_mask({n}), {src_data});",
		helpers: []Helper{
			{Name: "lcc_avx2_prefix_mask", Code: avx2PrefixMask},
			{Name: "lcc_avx2_hsum", Code: avx2Hsum},
		},
	}
	return Target{Name: "AVX2", Mems: []string{"AVX2"}, Entries: ops.templates()}
}

// AVX512Target returns the 16 x f32 AVX-512F entries
func AVX512Target() Target {
	ops := vecOps{
		mem: "AVX512", lanes: 16,
		load: "_mm512_loadu_ps", store: "_mm512_storeu_ps",
		zero: "_mm512_setzero_ps()", broadcast: "_mm512_set1_ps",
		add: "_mm512_add_ps", sub: "_mm512_sub_ps", mul: "_mm512_mul_ps",
		fmadd: "_mm512_fmadd_ps", fmaddArgs: "{a_data}, {b_data}, {dst_data}",
		reduce:      "_mm512_reduce_add_ps",
		prefixLoad:  "{dst_data} = _mm512_maskz_loadu_ps(lcc_avx512_prefix_mask({n}), &{src_data});",
		prefixStore: "_mm512_mask_storeu_ps(&{dst_data}, lcc_avx512_prefix_mask({n}), {src_data});",
		helpers: []Helper{
			{Name: "lcc_avx512_prefix_mask", Code: avx512PrefixMask},
		},
	}
	return Target{Name: "AVX512", Mems: []string{"AVX512"}, Entries: ops.templates()}
}

// NEONTarget returns the 4 x f32 Advanced SIMD entries
func NEONTarget() Target {
	ops := vecOps{
		mem: "Neon4f", lanes: 4,
		load: "vld1q_f32", store: "vst1q_f32",
		zero: "vmovq_n_f32(0.0f)", broadcast: "vmovq_n_f32",
		add: "vaddq_f32", sub: "vsubq_f32", mul: "vmulq_f32",
		fmadd: "vfmaq_f32", fmaddArgs: "{dst_data}, {a_data}, {b_data}",
		reduce: "vaddvq_f32",
	}
	return Target{Name: "NEON", Mems: []string{"Neon4f"}, Entries: ops.templates()}
}

// AllTargets returns every known target in a fixed order
func AllTargets() []Target {
	return []Target{AVX2Target(), AVX512Target(), NEONTarget()}
}
