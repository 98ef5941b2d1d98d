package lowering

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/loopcc/pkg/csrc"
	"github.com/raymyers/loopcc/pkg/csrc/csrctest"
	"github.com/raymyers/loopcc/pkg/diag"
	"github.com/raymyers/loopcc/pkg/isel"
	"github.com/raymyers/loopcc/pkg/loopir"
)

func sizeParam(name loopir.Sym) loopir.Param {
	return loopir.Param{Name: name, Type: loopir.Scalar(loopir.Size)}
}

func bufParam(name loopir.Sym, t loopir.Type, mutable bool) loopir.Param {
	return loopir.Param{Name: name, Type: t, Mem: "DRAM", Mutable: mutable}
}

func one() loopir.Expr {
	return loopir.FloatConst{Value: 1, Type: loopir.F32}
}

func compileProc(t *testing.T, procs ...*loopir.Proc) (*Result, error) {
	t.Helper()
	unit := &loopir.Unit{Name: "test", Procs: procs}
	return NewCompiler(unit, isel.Default()).CompileProc(procs[len(procs)-1])
}

func mustCompile(t *testing.T, procs ...*loopir.Proc) *Result {
	t.Helper()
	res, err := compileProc(t, procs...)
	if err != nil {
		t.Fatalf("CompileProc: %v", err)
	}
	return res
}

func render(fn *csrc.Function) string {
	var buf bytes.Buffer
	csrc.NewPrinter(&buf).PrintFunction(fn)
	return buf.String()
}

// counts runs fn over a zeroed buffer of n elements and returns it
func counts(t *testing.T, fn *csrc.Function, n int64) []float64 {
	t.Helper()
	mem := make([]float64, n)
	in := csrctest.New()
	err := in.Call(fn, map[string]csrctest.Value{
		"n": csrctest.IntVal(n),
		"x": csrctest.PtrVal(mem),
	})
	if err != nil {
		t.Fatalf("n=%d: %v\n%s", n, err, render(fn))
	}
	return mem
}

func checkOnce(t *testing.T, mem []float64, label string) {
	t.Helper()
	for i, v := range mem {
		if v != 1 {
			t.Fatalf("%s: element %d visited %v times", label, i, v)
		}
	}
}

// visitOrder runs fn with a step counter c and returns, per element of x,
// the step at which it was last written, along with the final count.
func visitOrder(t *testing.T, fn *csrc.Function, n int64) ([]float64, float64) {
	t.Helper()
	mem := make([]float64, n)
	step := []float64{0}
	in := csrctest.New()
	err := in.Call(fn, map[string]csrctest.Value{
		"n": csrctest.IntVal(n),
		"x": csrctest.PtrVal(mem),
		"c": csrctest.PtrVal(step),
	})
	if err != nil {
		t.Fatalf("n=%d: %v\n%s", n, err, render(fn))
	}
	return mem, step[0]
}

func TestSplitVisitsEveryIndexOnceInOrder(t *testing.T) {
	n, c := loopir.Var("n"), loopir.Var("c")
	for f := 1; f <= 9; f++ {
		for size := int64(0); size <= 40; size++ {
			for _, hi := range []loopir.Expr{n, loopir.Int(size)} {
				p := &loopir.Proc{
					Name: "stamp",
					Params: []loopir.Param{
						sizeParam("n"),
						bufParam("x", loopir.Tensor(loopir.F32, n), true),
						bufParam("c", loopir.Scalar(loopir.F32), true),
					},
					Body: []loopir.Stmt{loopir.For{
						Iter:  "i",
						Hi:    hi,
						Split: &loopir.Split{Factor: f, Outer: "io", Inner: "ii"},
						Body: []loopir.Stmt{
							loopir.Reduce{Name: "c", RHS: one()},
							loopir.Assign{Name: "x", Idx: []loopir.Expr{loopir.Var("i")}, RHS: c},
						},
					}},
				}
				res := mustCompile(t, p)
				label := fmt.Sprintf("F=%d N=%d hi=%s", f, size, loopir.ExprString(hi))
				mem, steps := visitOrder(t, res.Func, size)
				if steps != float64(size) {
					t.Fatalf("%s: %v iterations", label, steps)
				}
				for i, v := range mem {
					if v != float64(i+1) {
						t.Fatalf("%s: element %d visited at step %v\n%s", label, i, v, render(res.Func))
					}
				}
			}
		}
	}
}

func TestSplitTileStartWithTail(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	for f := 1; f <= 9; f++ {
		p := &loopir.Proc{
			Name:   "inc",
			Params: []loopir.Param{sizeParam("n"), bufParam("x", loopir.Tensor(loopir.F32, n), true)},
			Body: []loopir.Stmt{loopir.For{
				Iter: "i",
				Hi:   n,
				Split: &loopir.Split{
					Factor: f, Outer: "io",
					Tail: []loopir.Stmt{loopir.Reduce{Name: "x", Idx: []loopir.Expr{i}, RHS: one()}},
				},
				Body: []loopir.Stmt{loopir.For{
					Iter: "k",
					Hi:   loopir.Int(int64(f)),
					Body: []loopir.Stmt{loopir.Reduce{
						Name: "x", Idx: []loopir.Expr{loopir.Bin(loopir.Add, i, loopir.Var("k"))}, RHS: one(),
					}},
				}},
			}},
		}
		res := mustCompile(t, p)
		for size := int64(0); size <= 40; size++ {
			checkOnce(t, counts(t, res.Func, size), fmt.Sprintf("F=%d N=%d", f, size))
		}
	}
}

func TestSplitRemainderShape(t *testing.T) {
	n := loopir.Var("n")
	inc := []loopir.Stmt{loopir.Reduce{Name: "x", Idx: []loopir.Expr{loopir.Var("i")}, RHS: one()}}
	build := func(hi loopir.Expr, assumes ...loopir.Expr) *loopir.Proc {
		return &loopir.Proc{
			Name:    "inc",
			Params:  []loopir.Param{sizeParam("n"), bufParam("x", loopir.Tensor(loopir.F32, n), true)},
			Assumes: assumes,
			Body: []loopir.Stmt{loopir.For{
				Iter: "i", Hi: hi, Body: inc,
				Split: &loopir.Split{Factor: 4, Outer: "io", Inner: "ii"},
			}},
		}
	}
	divisible := loopir.Bin(loopir.Eq, loopir.Bin(loopir.Mod, n, loopir.Int(4)), loopir.Int(0))

	tests := []struct {
		name    string
		proc    *loopir.Proc
		want    []string
		notWant []string
	}{
		{"dynamic", build(n), []string{"if (n % 4 > 0) {", "x[n / 4 * 4 + ii] += 1.0f;"}, nil},
		{"constant divisible", build(loopir.Int(16)), []string{"io < 16 / 4"}, []string{"% 4"}},
		{"constant remainder", build(loopir.Int(18)), []string{"for (int_fast32_t ii = 0; ii < 18 % 4; ii++) {"}, []string{"if ("}},
		{"assumed divisible", build(n, divisible), []string{"LCC_ASSUME(n % 4 == 0);"}, []string{"if (", "ii < n % 4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(mustCompile(t, tt.proc).Func)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %q in\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("unexpected %q in\n%s", w, out)
				}
			}
		})
	}
}

func TestFreshNames(t *testing.T) {
	p := &loopir.Proc{
		Name:   "nest",
		Params: []loopir.Param{sizeParam("n"), sizeParam("int")},
		Body: []loopir.Stmt{
			loopir.For{Iter: "i", Hi: loopir.Var("n"), Body: []loopir.Stmt{
				loopir.For{Iter: "i", Hi: loopir.Var("n"), Body: []loopir.Stmt{loopir.Pass{}}},
				loopir.For{Iter: "j", Hi: loopir.Var("int"), Body: []loopir.Stmt{loopir.Pass{}}},
			}},
			loopir.For{Iter: "i", Hi: loopir.Var("n"), Body: nil},
		},
	}
	res := mustCompile(t, p)
	var params []string
	for _, prm := range res.Func.Params {
		params = append(params, prm.Name)
	}
	if diff := cmp.Diff([]string{"ctxt", "n", "int_1"}, params); diff != "" {
		t.Errorf("params mismatch:\n%s", diff)
	}
	outer := res.Func.Body[0].(csrc.Sfor)
	inner := outer.Body[0].(csrc.Sfor)
	sib := outer.Body[1].(csrc.Sfor)
	next := res.Func.Body[1].(csrc.Sfor)
	got := []string{outer.Var, inner.Var, sib.Var, next.Var, csrc.ExprString(sib.Hi)}
	if diff := cmp.Diff([]string{"i", "i_1", "j", "i", "int_1"}, got); diff != "" {
		t.Errorf("loop names mismatch:\n%s", diff)
	}
	out := render(res.Func)
	if !strings.Contains(out, "; // NO-OP") {
		t.Errorf("empty loop body should print a no-op:\n%s", out)
	}
}

func TestWindowAddressing(t *testing.T) {
	m, n := loopir.Var("m"), loopir.Var("n")
	i, j := loopir.Var("i"), loopir.Var("j")
	p := &loopir.Proc{
		Name: "fill",
		Params: []loopir.Param{
			sizeParam("m"), sizeParam("n"),
			bufParam("A", loopir.Tensor(loopir.F32, m, n), true),
		},
		Body: []loopir.Stmt{
			loopir.WindowStmt{Name: "W", RHS: loopir.WindowExpr{Name: "A", Idx: []loopir.Access{
				loopir.Interval{Lo: loopir.Int(1), Hi: m},
				loopir.Interval{Lo: loopir.Int(2), Hi: n},
			}}},
			loopir.For{Iter: "i", Hi: loopir.Int(2), Body: []loopir.Stmt{
				loopir.For{Iter: "j", Hi: loopir.Int(3), Body: []loopir.Stmt{
					loopir.Assign{Name: "W", Idx: []loopir.Expr{i, j}, RHS: loopir.FloatConst{Value: 7, Type: loopir.F32}},
				}},
			}},
		},
	}
	res := mustCompile(t, p)
	out := render(res.Func)
	for _, w := range []string{
		"struct lcc_win_2f32 W = (struct lcc_win_2f32){ &A[n + 2], { n } };",
		"W.data[i * W.strides[0] + j] = 7.0f;",
	} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in\n%s", w, out)
		}
	}
	if got := res.Windows.Sorted(); len(got) != 1 || got[0].Name() != "lcc_win_2f32" {
		t.Errorf("windows = %v", got)
	}

	const rows, cols = 4, 6
	mem := make([]float64, rows*cols)
	in := csrctest.New()
	if err := in.Call(res.Func, map[string]csrctest.Value{
		"m": csrctest.IntVal(rows), "n": csrctest.IntVal(cols), "A": csrctest.PtrVal(mem),
	}); err != nil {
		t.Fatal(err)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			want := 0.0
			if r >= 1 && r < 3 && c >= 2 && c < 5 {
				want = 7
			}
			if mem[r*cols+c] != want {
				t.Errorf("A[%d][%d] = %v, want %v", r, c, mem[r*cols+c], want)
			}
		}
	}
}

func TestWindowParameter(t *testing.T) {
	m, n := loopir.Var("m"), loopir.Var("n")
	p := &loopir.Proc{
		Name: "corner",
		Params: []loopir.Param{
			sizeParam("m"), sizeParam("n"),
			bufParam("W", loopir.WindowOf(loopir.F32, m, n), true),
		},
		Body: []loopir.Stmt{
			loopir.Assign{Name: "W", Idx: []loopir.Expr{loopir.Int(1), loopir.Int(1)}, RHS: one()},
		},
	}
	res := mustCompile(t, p)
	if got := render(res.Func); !strings.Contains(got, "void corner( void *ctxt, int_fast32_t m, int_fast32_t n, struct lcc_win_2f32 W ) {") {
		t.Errorf("signature mismatch:\n%s", got)
	}
	// a 3x3 window at offset 5 of a buffer with row stride 10
	mem := make([]float64, 40)
	in := csrctest.New()
	if err := in.Call(res.Func, map[string]csrctest.Value{
		"m": csrctest.IntVal(3), "n": csrctest.IntVal(3), "W": csrctest.WindowVal(mem, 5, 10),
	}); err != nil {
		t.Fatal(err)
	}
	if mem[5+10+1] != 1 {
		t.Errorf("store landed elsewhere: %v", mem)
	}
}

func TestVectorizedKernel(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	vec := func(name loopir.Sym) loopir.WindowExpr {
		return loopir.WindowExpr{Name: name, Idx: []loopir.Access{
			loopir.Interval{Lo: i, Hi: loopir.Bin(loopir.Add, i, loopir.Int(8))},
		}}
	}
	p := &loopir.Proc{
		Name: "vadd",
		Params: []loopir.Param{
			sizeParam("n"),
			bufParam("x", loopir.Tensor(loopir.F32, n), false),
			bufParam("y", loopir.Tensor(loopir.F32, n), true),
		},
		Assumes: []loopir.Expr{loopir.Bin(loopir.Eq, loopir.Bin(loopir.Mod, n, loopir.Int(8)), loopir.Int(0))},
		Body: []loopir.Stmt{loopir.For{
			Iter: "i", Hi: n,
			Split: &loopir.Split{Factor: 8, Outer: "io"},
			Body: []loopir.Stmt{
				loopir.Alloc{Name: "xv", Type: loopir.Tensor(loopir.F32, loopir.Int(8)), Mem: "AVX2"},
				loopir.Alloc{Name: "yv", Type: loopir.Tensor(loopir.F32, loopir.Int(8)), Mem: "AVX2"},
				loopir.Call{Op: "load", Mem: "AVX2", Args: []loopir.Expr{loopir.Var("xv"), vec("x")}},
				loopir.Call{Op: "load", Mem: "AVX2", Args: []loopir.Expr{loopir.Var("yv"), vec("y")}},
				loopir.Call{Op: "add", Mem: "AVX2", Args: []loopir.Expr{loopir.Var("yv"), loopir.Var("xv"), loopir.Var("yv")}},
				loopir.Call{Op: "store", Mem: "AVX2", Args: []loopir.Expr{vec("y"), loopir.Var("yv")}},
			},
		}},
	}
	res := mustCompile(t, p)
	want := `// vadd(
//     n : size,
//     x : f32[n] @DRAM,
//     y : f32[n] @DRAM
// )
void vadd( void *ctxt, int_fast32_t n, const float *x, float *y ) {
  LCC_ASSUME(n % 8 == 0);
  for (int_fast32_t io = 0; io < n / 8; io++) {
    __m256 xv;
    __m256 yv;
    xv = _mm256_loadu_ps(&x[io * 8]);
    yv = _mm256_loadu_ps(&y[io * 8]);
    yv = _mm256_add_ps(xv, yv);
    _mm256_storeu_ps(&y[io * 8], yv);
  }
}
`
	if diff := cmp.Diff(want, render(res.Func)); diff != "" {
		t.Errorf("vadd mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AVX2", "DRAM"}, res.Mems); diff != "" {
		t.Errorf("mems mismatch:\n%s", diff)
	}
}

func TestDynamicExtentHintEmittedOnce(t *testing.T) {
	r := loopir.Var("r")
	src := loopir.WindowExpr{Name: "x", Idx: []loopir.Access{loopir.Interval{Lo: loopir.Int(0), Hi: r}}}
	load := loopir.Call{Op: "prefix_load", Mem: "AVX2", Args: []loopir.Expr{loopir.Var("xv"), src, r}}
	p := &loopir.Proc{
		Name:   "tail",
		Params: []loopir.Param{sizeParam("r"), bufParam("x", loopir.Tensor(loopir.F32, loopir.Int(8)), false)},
		Body: []loopir.Stmt{
			loopir.Alloc{Name: "xv", Type: loopir.Tensor(loopir.F32, loopir.Int(8)), Mem: "AVX2"},
			load,
			load,
		},
	}
	res := mustCompile(t, p)
	out := render(res.Func)
	if c := strings.Count(out, "LCC_ASSUME(r <= 8);"); c != 1 {
		t.Errorf("hint emitted %d times:\n%s", c, out)
	}
	if len(res.Helpers) != 1 || res.Helpers[0].Name != "lcc_avx2_prefix_mask" {
		t.Errorf("helpers = %v", res.Helpers)
	}
}

func TestFloorDivision(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	k := loopir.Var("k")
	p := &loopir.Proc{
		Name: "halves",
		Params: []loopir.Param{
			sizeParam("n"),
			{Name: "k", Type: loopir.Scalar(loopir.Index)},
			bufParam("x", loopir.Tensor(loopir.F32, n), true),
		},
		Body: []loopir.Stmt{loopir.For{Iter: "i", Hi: n, Body: []loopir.Stmt{
			loopir.Assign{Name: "x", Idx: []loopir.Expr{loopir.Bin(loopir.Div, i, loopir.Int(2))}, RHS: one()},
			loopir.Assign{Name: "x", Idx: []loopir.Expr{loopir.Bin(loopir.Div, loopir.Bin(loopir.Sub, i, k), loopir.Int(2))}, RHS: one()},
		}}},
	}
	res := mustCompile(t, p)
	out := render(res.Func)
	for _, w := range []string{"x[i / 2] = 1.0f;", "x[lcc_floor_div(i - k, 2)] = 1.0f;"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in\n%s", w, out)
		}
	}
	if len(res.Helpers) != 1 || res.Helpers[0].Name != "lcc_floor_div" {
		t.Errorf("helpers = %v", res.Helpers)
	}
}

func TestMixedTypeAssignment(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	p := &loopir.Proc{
		Name: "narrow",
		Params: []loopir.Param{
			sizeParam("n"),
			bufParam("dst", loopir.Tensor(loopir.I8, n), true),
			bufParam("src", loopir.Tensor(loopir.I32, n), false),
			bufParam("f", loopir.Tensor(loopir.F32, n), true),
		},
		Body: []loopir.Stmt{loopir.For{Iter: "i", Hi: n, Body: []loopir.Stmt{
			loopir.Assign{Name: "dst", Idx: []loopir.Expr{i}, RHS: loopir.Read{Name: "src", Idx: []loopir.Expr{i}}},
			loopir.Assign{Name: "f", Idx: []loopir.Expr{i}, RHS: loopir.Read{Name: "src", Idx: []loopir.Expr{i}}},
		}}},
	}
	res := mustCompile(t, p)
	out := render(res.Func)
	for _, w := range []string{"dst[i] = lcc_clamp_32to8(src[i]);", "f[i] = (float)src[i];"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in\n%s", w, out)
		}
	}
}

func TestFloatIdentitiesKept(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	zero := loopir.FloatConst{Value: 0, Type: loopir.F32}
	p := &loopir.Proc{
		Name: "keep",
		Params: []loopir.Param{
			sizeParam("n"),
			bufParam("x", loopir.Tensor(loopir.F32, n), false),
			bufParam("y", loopir.Tensor(loopir.F32, n), true),
		},
		Body: []loopir.Stmt{loopir.For{Iter: "i", Hi: n, Body: []loopir.Stmt{
			loopir.Assign{
				Name: "y",
				Idx:  []loopir.Expr{loopir.Bin(loopir.Add, i, loopir.Int(0))},
				RHS:  loopir.Bin(loopir.Add, loopir.Read{Name: "x", Idx: []loopir.Expr{i}}, zero),
			},
			loopir.Assign{
				Name: "y",
				Idx:  []loopir.Expr{loopir.Bin(loopir.Sub, i, loopir.Int(0))},
				RHS:  loopir.Bin(loopir.Mul, loopir.Read{Name: "x", Idx: []loopir.Expr{i}}, one()),
			},
		}}},
	}
	out := render(mustCompile(t, p).Func)
	for _, w := range []string{"y[i] = x[i] + 0.0f;", "y[i] = x[i] * 1.0f;"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in\n%s", w, out)
		}
	}
}

func TestReservedNames(t *testing.T) {
	n := loopir.Var("int_fast32_t")
	p := &loopir.Proc{
		Name: "clash",
		Params: []loopir.Param{
			sizeParam("int_fast32_t"),
			sizeParam("lcc_floor_div"),
			sizeParam("int8_t"),
			sizeParam("helper"),
			bufParam("lcc_win_1f32", loopir.Tensor(loopir.F32, n), true),
		},
		Body: []loopir.Stmt{loopir.For{Iter: "_mm256_add_ps", Hi: n, Body: []loopir.Stmt{
			loopir.Assign{Name: "lcc_win_1f32", Idx: []loopir.Expr{loopir.Var("_mm256_add_ps")}, RHS: one()},
		}}},
	}
	helper := &loopir.Proc{Name: "helper", Body: []loopir.Stmt{loopir.Pass{}}}
	res := mustCompile(t, helper, p)
	var params []string
	for _, prm := range res.Func.Params {
		params = append(params, prm.Name)
	}
	want := []string{"ctxt", "int_fast32_t_1", "lcc_floor_div_1", "int8_t_1", "helper_1", "lcc_win_1f32_1"}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Errorf("params mismatch:\n%s", diff)
	}
	loop := res.Func.Body[0].(csrc.Sfor)
	if loop.Var != "_mm256_add_ps_1" {
		t.Errorf("loop var = %q", loop.Var)
	}
}

func TestHeapAllocation(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	p := &loopir.Proc{
		Name:   "double",
		Params: []loopir.Param{sizeParam("n"), bufParam("x", loopir.Tensor(loopir.F32, n), true)},
		Body: []loopir.Stmt{
			loopir.Alloc{Name: "tmp", Type: loopir.Tensor(loopir.F32, n), Mem: "DRAM"},
			loopir.For{Iter: "i", Hi: n, Body: []loopir.Stmt{
				loopir.Assign{Name: "tmp", Idx: []loopir.Expr{i}, RHS: loopir.Read{Name: "x", Idx: []loopir.Expr{i}}},
				loopir.Reduce{Name: "x", Idx: []loopir.Expr{i}, RHS: loopir.Read{Name: "tmp", Idx: []loopir.Expr{i}}},
			}},
		},
	}
	res := mustCompile(t, p)
	if !res.UsesHeap {
		t.Error("UsesHeap should be set")
	}
	out := render(res.Func)
	for _, w := range []string{"float *tmp = (float *)malloc(n * sizeof(float));", "  free(tmp);\n}"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in\n%s", w, out)
		}
	}

	mem := []float64{1, 2, 3}
	in := csrctest.New()
	if err := in.Call(res.Func, map[string]csrctest.Value{"n": csrctest.IntVal(3), "x": csrctest.PtrVal(mem)}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{2, 4, 6}, mem); diff != "" {
		t.Errorf("result mismatch:\n%s", diff)
	}
}

func TestCallProcPromotesTensorToWindow(t *testing.T) {
	n := loopir.Var("n")
	callee := &loopir.Proc{
		Name:   "sum",
		Params: []loopir.Param{sizeParam("n"), bufParam("v", loopir.WindowOf(loopir.F32, n), false), bufParam("out", loopir.Scalar(loopir.F32), true)},
		Body:   []loopir.Stmt{loopir.Pass{}},
	}
	caller := &loopir.Proc{
		Name: "driver",
		Params: []loopir.Param{
			sizeParam("n"),
			bufParam("x", loopir.Tensor(loopir.F32, n), true),
			bufParam("acc", loopir.Tensor(loopir.F32, loopir.Int(4)), true),
		},
		Body: []loopir.Stmt{
			loopir.CallProc{Proc: "sum", Args: []loopir.Expr{n, loopir.Var("x"), loopir.Read{Name: "acc", Idx: []loopir.Expr{loopir.Int(2)}}}},
		},
	}
	res := mustCompile(t, callee, caller)
	want := "sum(ctxt, n, (struct lcc_win_1f32c){ &x[0] }, &acc[2]);"
	if out := render(res.Func); !strings.Contains(out, want) {
		t.Errorf("missing %q in\n%s", want, out)
	}
}

func TestLoweringErrors(t *testing.T) {
	n := loopir.Var("n")
	i := loopir.Var("i")
	x := bufParam("x", loopir.Tensor(loopir.F32, n), false)
	y := bufParam("y", loopir.Tensor(loopir.F32, n), true)
	reg := loopir.Alloc{Name: "xv", Type: loopir.Tensor(loopir.F32, loopir.Int(8)), Mem: "AVX2"}

	tests := []struct {
		name   string
		params []loopir.Param
		body   []loopir.Stmt
		want   error
	}{
		{
			"write read-only",
			[]loopir.Param{sizeParam("n"), x},
			[]loopir.Stmt{loopir.Assign{Name: "x", Idx: []loopir.Expr{loopir.Int(0)}, RHS: one()}},
			diag.ErrInternalInvariantViolation,
		},
		{
			"scalar read of register",
			[]loopir.Param{sizeParam("n"), y},
			[]loopir.Stmt{reg, loopir.Assign{Name: "y", Idx: []loopir.Expr{loopir.Int(0)}, RHS: loopir.Read{Name: "xv", Idx: []loopir.Expr{loopir.Int(0)}}}},
			diag.ErrUnsupportedOperation,
		},
		{
			"scalar write of register",
			[]loopir.Param{sizeParam("n")},
			[]loopir.Stmt{reg, loopir.Assign{Name: "xv", Idx: []loopir.Expr{loopir.Int(0)}, RHS: one()}},
			diag.ErrUnsupportedOperation,
		},
		{
			"rank mismatch",
			[]loopir.Param{sizeParam("n"), y},
			[]loopir.Stmt{loopir.Assign{Name: "y", Idx: []loopir.Expr{i, i}, RHS: one()}},
			diag.ErrRankMismatch,
		},
		{
			"unresolvable alloc",
			[]loopir.Param{sizeParam("n"), {Name: "k", Type: loopir.Scalar(loopir.Index)}},
			[]loopir.Stmt{loopir.Alloc{Name: "t", Type: loopir.Tensor(loopir.F32, loopir.Var("k")), Mem: "DRAM"}},
			diag.ErrUnresolvableShape,
		},
		{
			"static memory dynamic shape",
			[]loopir.Param{sizeParam("n")},
			[]loopir.Stmt{loopir.Alloc{Name: "t", Type: loopir.Tensor(loopir.F32, n), Mem: "DRAM_STATIC"}},
			diag.ErrUnresolvableShape,
		},
		{
			"vectorized split without tail",
			[]loopir.Param{sizeParam("n"), y},
			[]loopir.Stmt{loopir.For{Iter: "i", Hi: n, Split: &loopir.Split{Factor: 8, Outer: "io"}, Body: []loopir.Stmt{loopir.Pass{}}}},
			diag.ErrInternalInvariantViolation,
		},
		{
			"zero split factor",
			[]loopir.Param{sizeParam("n")},
			[]loopir.Stmt{loopir.For{Iter: "i", Hi: n, Split: &loopir.Split{Factor: 0, Outer: "io", Inner: "ii"}}},
			diag.ErrInternalInvariantViolation,
		},
		{
			"unknown instruction",
			[]loopir.Param{sizeParam("n")},
			[]loopir.Stmt{reg, loopir.Call{Op: "sqrt", Mem: "AVX2", Args: []loopir.Expr{loopir.Var("xv")}}},
			diag.ErrUnsupportedOperation,
		},
		{
			"vector load from register",
			[]loopir.Param{sizeParam("n")},
			[]loopir.Stmt{reg, loopir.Call{Op: "load", Mem: "AVX2", Args: []loopir.Expr{loopir.Var("xv"), loopir.Var("xv")}}},
			diag.ErrUnsupportedOperation,
		},
		{
			"register parameter",
			[]loopir.Param{sizeParam("n"), {Name: "v", Type: loopir.Tensor(loopir.F32, loopir.Int(8)), Mem: "AVX2"}},
			nil,
			diag.ErrUnsupportedOperation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &loopir.Proc{Name: "bad", Params: tt.params, Body: tt.body, Src: loopir.SrcInfo{File: "k.yaml", Line: 3}}
			res, err := compileProc(t, p)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("failed procedure returned a result")
			}
			var de *diag.Error
			if !errors.As(err, &de) || de.Proc != "bad" {
				t.Errorf("error %v does not name the procedure", err)
			}
		})
	}
}

func TestCallProcErrors(t *testing.T) {
	n := loopir.Var("n")
	callee := &loopir.Proc{
		Name:   "scale",
		Params: []loopir.Param{sizeParam("n"), bufParam("v", loopir.WindowOf(loopir.F32, n), true)},
	}
	call := func(params []loopir.Param, args ...loopir.Expr) *loopir.Proc {
		return &loopir.Proc{Name: "driver", Params: params, Body: []loopir.Stmt{
			loopir.CallProc{Proc: "scale", Args: append([]loopir.Expr{n}, args...)},
		}}
	}
	static := loopir.Param{Name: "s", Type: loopir.Tensor(loopir.F32, n), Mem: "DRAM_STATIC", Mutable: true}
	tests := []struct {
		name string
		proc *loopir.Proc
		want error
	}{
		{"memory", call([]loopir.Param{sizeParam("n"), static}, loopir.Var("s")), diag.ErrUnsupportedOperation},
		{"read-only to mutable", call([]loopir.Param{sizeParam("n"), bufParam("x", loopir.Tensor(loopir.F32, n), false)}, loopir.Var("x")), diag.ErrInternalInvariantViolation},
		{"rank", call([]loopir.Param{sizeParam("n"), bufParam("A", loopir.Tensor(loopir.F32, n, n), true)}, loopir.Var("A")), diag.ErrRankMismatch},
		{"arity", call([]loopir.Param{sizeParam("n")}), diag.ErrInternalInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := compileProc(t, callee, tt.proc); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
