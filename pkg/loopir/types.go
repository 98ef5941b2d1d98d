package loopir

import (
	"fmt"
	"strings"
)

// BaseType is the scalar kind of a value or of the elements of a buffer.
type BaseType int

const (
	F32 BaseType = iota
	F64
	I8
	I32
	Size   // non-negative extent, passed by value
	Index  // loop counter / index arithmetic
	Bool   // predicate
	Stride // stride of a buffer dimension
)

func (b BaseType) String() string {
	names := []string{"f32", "f64", "i8", "i32", "size", "index", "bool", "stride"}
	if int(b) < len(names) {
		return names[b]
	}
	return "?"
}

// IsNumeric reports whether values of this type can be stored in buffers.
func (b BaseType) IsNumeric() bool {
	return b == F32 || b == F64 || b == I8 || b == I32
}

// IsFloat reports whether b is a floating-point element type.
func (b BaseType) IsFloat() bool {
	return b == F32 || b == F64
}

// IsIndexable reports whether b participates in index arithmetic.
func (b BaseType) IsIndexable() bool {
	return b == Size || b == Index || b == Stride
}

// ParseBaseType converts the textual name of a base type.
func ParseBaseType(s string) (BaseType, error) {
	switch strings.TrimSpace(s) {
	case "f32", "R":
		return F32, nil
	case "f64":
		return F64, nil
	case "i8":
		return I8, nil
	case "i32":
		return I32, nil
	case "size":
		return Size, nil
	case "index":
		return Index, nil
	case "bool":
		return Bool, nil
	case "stride":
		return Stride, nil
	}
	return 0, fmt.Errorf("unknown base type %q", s)
}

// Type is the full type of a parameter, local, or window.
// Shape is empty for scalars and control values.
type Type struct {
	Base   BaseType
	Shape  []Expr
	Window bool // a (possibly strided) view rather than a whole allocation
}

// Scalar returns a rank-0 type.
func Scalar(b BaseType) Type {
	return Type{Base: b}
}

// Tensor returns the type of a whole buffer with the given shape.
func Tensor(b BaseType, shape ...Expr) Type {
	return Type{Base: b, Shape: shape}
}

// WindowOf returns the type of a view with the given shape.
func WindowOf(b BaseType, shape ...Expr) Type {
	return Type{Base: b, Shape: shape, Window: true}
}

// Rank returns the number of dimensions.
func (t Type) Rank() int {
	return len(t.Shape)
}

// IsTensor reports whether the type describes a buffer with at least one dimension.
func (t Type) IsTensor() bool {
	return len(t.Shape) > 0
}

// IsBuffer reports whether the value lives in memory (numeric scalars included).
func (t Type) IsBuffer() bool {
	return t.Base.IsNumeric()
}

func (t Type) String() string {
	if len(t.Shape) == 0 {
		return t.Base.String()
	}
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = ExprString(d)
	}
	if t.Window {
		return fmt.Sprintf("[%s][%s]", t.Base, strings.Join(dims, ", "))
	}
	return fmt.Sprintf("%s[%s]", t.Base, strings.Join(dims, ", "))
}
