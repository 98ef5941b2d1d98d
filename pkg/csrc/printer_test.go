package csrc

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/loopcc/pkg/ctypes"
)

func TestExprString(t *testing.T) {
	i, n := Var("i"), Var("n")
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"int", Int(3), "3"},
		{"float suffix", Econst_float{Value: 2, Typ: ctypes.Float()}, "2.0f"},
		{"double", Econst_float{Value: 0.25, Typ: ctypes.Double()}, "0.25"},
		{"mul binds tighter", Bin(Oadd, Bin(Omul, i, Int(8)), Var("j")), "i * 8 + j"},
		{"paren for lower prec rhs", Bin(Omul, i, Bin(Oadd, n, Int(1))), "i * (n + 1)"},
		{"left assoc", Bin(Osub, Bin(Osub, n, i), Int(1)), "n - i - 1"},
		{"right grouping kept", Bin(Osub, n, Bin(Osub, i, Int(1))), "n - (i - 1)"},
		{"div then mul", Bin(Omul, Bin(Odiv, n, Int(8)), Int(8)), "n / 8 * 8"},
		{"mul then div", Bin(Odiv, n, Bin(Omul, Int(8), i)), "n / (8 * i)"},
		{"identities kept", Bin(Oadd, Bin(Omul, i, Int(1)), Int(0)), "i * 1 + 0"},
		{"float plus zero", Bin(Oadd, Var("x"), Econst_float{Value: 0, Typ: ctypes.Float()}), "x + 0.0f"},
		{"compare", Bin(Ogt, Bin(Omod, n, Int(8)), Int(0)), "n % 8 > 0"},
		{"logic", Bin(Oor, Bin(Oand, Var("a"), Var("b")), Var("c")), "a && b || c"},
		{"index", Eindex{Base: Var("x"), Idx: Bin(Oadd, Bin(Omul, i, n), Var("j"))}, "x[i * n + j]"},
		{"window data", Eindex{Base: Efield{Arg: Var("w"), FieldName: "data"},
			Idx: Bin(Omul, i, Eindex{Base: Efield{Arg: Var("w"), FieldName: "strides"}, Idx: Int(0)})},
			"w.data[i * w.strides[0]]"},
		{"addr of element", Eaddrof{Arg: Eindex{Base: Var("x"), Idx: i}}, "&x[i]"},
		{"deref", Ederef{Ptr: Var("alpha")}, "*alpha"},
		{"neg of neg", Eunop{Op: Oneg, Arg: Int(-2)}, "-(-2)"},
		{"neg sum", Eunop{Op: Oneg, Arg: Bin(Oadd, i, n)}, "-(i + n)"},
		{"cast", Ecast{Arg: Bin(Oadd, i, n), Typ: ctypes.Float()}, "(float)(i + n)"},
		{"call", Ecall{Func: "lcc_floor_div", Args: []Expr{i, Int(4)}}, "lcc_floor_div(i, 4)"},
		{"compound", Ecompound{Typ: ctypes.Tstruct{Name: "lcc_win_2f32"},
			Init: Einit{Elems: []Expr{Eaddrof{Arg: Eindex{Base: Var("A"), Idx: i}}, Einit{Elems: []Expr{n}}}}},
			"(struct lcc_win_2f32){ &A[i], { n } }"},
		{"sizeof", Esizeof{ArgType: ctypes.Float()}, "sizeof(float)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExprString(tt.expr); got != tt.want {
				t.Errorf("ExprString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddMulFold(t *testing.T) {
	if got := ExprString(Add(Mul(Int(2), Int(4)), Int(1))); got != "9" {
		t.Errorf("fold = %s", got)
	}
	if got := ExprString(Add(Var("i"), Int(0))); got != "i" {
		t.Errorf("Add zero = %s", got)
	}
	if got := ExprString(Mul(Int(1), Var("s"))); got != "s" {
		t.Errorf("Mul one = %s", got)
	}
}

func TestPrintFunction(t *testing.T) {
	fn := &Function{
		Name: "scale",
		Doc:  []string{"scale(", "    n : size,", ")"},
		Params: []Param{
			{Name: "ctxt", Typ: ctypes.Pointer(ctypes.Void())},
			{Name: "n", Typ: ctypes.Index()},
			{Name: "x", Typ: ctypes.Pointer(ctypes.Float())},
		},
		Body: []Stmt{
			Sraw{Text: "LCC_ASSUME(n >= 0);"},
			Sfor{Var: "i", Hi: Var("n"), Body: []Stmt{
				Sassign{LHS: Eindex{Base: Var("x"), Idx: Var("i")}, Op: AddAssign(), RHS: Econst_float{Value: 1, Typ: ctypes.Float()}},
			}},
			Sif{Cond: Bin(Ogt, Var("n"), Int(0)), Then: nil, Else: []Stmt{Sskip{}}},
			Sfor{Var: "k", Hi: Int(0)},
		},
	}
	var buf bytes.Buffer
	NewPrinter(&buf).PrintFunction(fn)
	want := `// scale(
//     n : size,
// )
void scale( void *ctxt, int_fast32_t n, float *x ) {
  LCC_ASSUME(n >= 0);
  for (int_fast32_t i = 0; i < n; i++) {
    x[i] += 1.0f;
  }
  if (n > 0) {
    ; // NO-OP
  } else {
    ; // NO-OP
  }
  for (int_fast32_t k = 0; k < 0; k++) {
    ; // NO-OP
  }
}
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("PrintFunction mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	NewPrinter(&buf).PrintPrototype(&Function{Name: "f", Params: fn.Params[:1]})
	if got := buf.String(); got != "void f( void *ctxt );\n" {
		t.Errorf("PrintPrototype() = %q", got)
	}
}

func TestPrintStructDef(t *testing.T) {
	s := ctypes.Tstruct{Name: "lcc_win_2f32c", Fields: []ctypes.Field{
		{Name: "data", Type: ctypes.Tpointer{Elem: ctypes.Float(), Const: true, ConstPtr: true}},
		{Name: "strides[1]", Type: ctypes.Index(), Const: true},
	}}
	var buf bytes.Buffer
	NewPrinter(&buf).PrintStructDef(s)
	want := "struct lcc_win_2f32c {\n    const float * const data;\n    const int_fast32_t strides[1];\n};\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("PrintStructDef mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintRaw(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintStmts([]Stmt{
		Sdecl{Typ: ctypes.Array(ctypes.Float(), 8), Name: "tmp"},
		Sif{Cond: Var("c"), Then: []Stmt{Sraw{Text: "a;\nb;"}}},
	})
	want := "float tmp[8];\nif (c) {\n  a;\n  b;\n}\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
