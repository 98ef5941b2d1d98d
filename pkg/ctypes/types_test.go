package ctypes

import "testing"

func TestTypeConstructors(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		wantStr string
	}{
		{"void", Void(), "void"},
		{"bool", Bool(), "bool"},
		{"index", Index(), "int_fast32_t"},
		{"i8", I8(), "int8_t"},
		{"i32", I32(), "int32_t"},
		{"float", Float(), "float"},
		{"double", Double(), "double"},
		{"pointer to float", Pointer(Float()), "float *"},
		{"pointer to const float", ConstPointer(Float()), "const float *"},
		{"array of float", Array(Float(), 8), "float[8]"},
		{"vector", Tvector{Name: "__m256", Elem: Float(), Lanes: 8}, "__m256"},
		{"struct", Tstruct{Name: "lcc_win_1f32"}, "struct lcc_win_1f32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestDecl(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		id   string
		want string
	}{
		{"scalar", Index(), "n", "int_fast32_t n"},
		{"pointer", Pointer(Double()), "y", "double *y"},
		{"const pointer", ConstPointer(Float()), "x", "const float *x"},
		{"pointer const self", Tpointer{Elem: Float(), ConstPtr: true}, "data", "float * const data"},
		{"const both", Tpointer{Elem: I8(), Const: true, ConstPtr: true}, "data", "const int8_t * const data"},
		{"array", Array(Float(), 16), "buf", "float buf[16]"},
		{"array of vectors", Array(Tvector{Name: "__m256"}, 4), "acc", "__m256 acc[4]"},
		{"struct", Tstruct{Name: "lcc_win_2f32c"}, "w", "struct lcc_win_2f32c w"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decl(tt.typ, tt.id); got != tt.want {
				t.Errorf("Decl() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldDecl(t *testing.T) {
	f := Field{Name: "strides[1]", Type: Index(), Const: true}
	if got := FieldDecl(f); got != "const int_fast32_t strides[1]" {
		t.Errorf("FieldDecl() = %q", got)
	}
}

func TestTypeEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Type
		equal bool
	}{
		{"float == float", Float(), Float(), true},
		{"float != double", Float(), Double(), false},
		{"i8 != i32", I8(), I32(), false},
		{"bool != index", Bool(), Index(), false},
		{"void == void", Void(), Void(), true},
		{"pointer == pointer", Pointer(Float()), Pointer(Float()), true},
		{"pointer != const pointer", Pointer(Float()), ConstPointer(Float()), false},
		{"array[8] == array[8]", Array(Float(), 8), Array(Float(), 8), true},
		{"array[8] != array[16]", Array(Float(), 8), Array(Float(), 16), false},
		{"struct A == struct A", Tstruct{Name: "A"}, Tstruct{Name: "A"}, true},
		{"struct A != struct B", Tstruct{Name: "A"}, Tstruct{Name: "B"}, false},
		{"nil == nil", nil, nil, true},
		{"nil != float", nil, Float(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.equal {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}
