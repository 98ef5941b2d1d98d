// Package ctypes defines the C types that appear in emitted code
package ctypes

import (
	"fmt"
	"strings"
)

// Type is the interface for all emitted C types
type Type interface {
	implType()
	String() string
}

// IntWidth selects one of the fixed-width integer types
type IntWidth int

const (
	Int8 IntWidth = iota
	Int32
	Fast32 // int_fast32_t, used for sizes, indices and strides
)

func (w IntWidth) String() string {
	names := []string{"int8_t", "int32_t", "int_fast32_t"}
	if int(w) < len(names) {
		return names[w]
	}
	return "?"
}

// FloatSize represents the size of floating-point types
type FloatSize int

const (
	F32 FloatSize = iota
	F64
)

// Tvoid represents the void type
type Tvoid struct{}

// Tbool represents the C99 bool type
type Tbool struct{}

// Tint represents a fixed-width integer type
type Tint struct {
	Width IntWidth
}

// Tfloat represents floating-point types (float, double)
type Tfloat struct {
	Size FloatSize
}

// Tvector represents a target vector register type such as __m256
type Tvector struct {
	Name  string
	Elem  Type
	Lanes int
}

// Tpointer represents pointer types.
// Const qualifies the pointee, ConstPtr the pointer itself.
type Tpointer struct {
	Elem     Type
	Const    bool
	ConstPtr bool
}

// Tarray represents fixed-size array types
type Tarray struct {
	Elem Type
	Size int64
}

// Tstruct represents a named struct type
type Tstruct struct {
	Name   string
	Fields []Field
}

// Field represents a struct field
type Field struct {
	Name  string
	Type  Type
	Const bool
}

// Marker methods for Type interface
func (Tvoid) implType()    {}
func (Tbool) implType()    {}
func (Tint) implType()     {}
func (Tfloat) implType()   {}
func (Tvector) implType()  {}
func (Tpointer) implType() {}
func (Tarray) implType()   {}
func (Tstruct) implType()  {}

func (Tvoid) String() string     { return "void" }
func (Tbool) String() string     { return "bool" }
func (t Tint) String() string    { return t.Width.String() }
func (t Tvector) String() string { return t.Name }

func (t Tfloat) String() string {
	if t.Size == F32 {
		return "float"
	}
	return "double"
}

func (t Tpointer) String() string {
	return strings.TrimSpace(Decl(t, ""))
}

func (t Tarray) String() string {
	return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Size)
}

func (t Tstruct) String() string {
	return "struct " + t.Name
}

// Decl renders a declaration of name with type t, e.g. "const float *x"
// or "float buf[8]". An empty name gives the abstract declarator.
func Decl(t Type, name string) string {
	switch t := t.(type) {
	case Tarray:
		return Decl(t.Elem, fmt.Sprintf("%s[%d]", name, t.Size))
	case Tpointer:
		base := t.Elem.String()
		if t.Const {
			base = "const " + base
		}
		if t.ConstPtr {
			return strings.TrimSpace(base + " * const " + name)
		}
		return base + " *" + name
	}
	if name == "" {
		return t.String()
	}
	return t.String() + " " + name
}

// FieldDecl renders a struct field declaration
func FieldDecl(f Field) string {
	d := Decl(f.Type, f.Name)
	if f.Const {
		return "const " + d
	}
	return d
}

// Void returns the void type
func Void() Type {
	return Tvoid{}
}

// Bool returns the bool type
func Bool() Type {
	return Tbool{}
}

// Index returns int_fast32_t
func Index() Type {
	return Tint{Width: Fast32}
}

// I8 returns int8_t
func I8() Type {
	return Tint{Width: Int8}
}

// I32 returns int32_t
func I32() Type {
	return Tint{Width: Int32}
}

// Float returns the float type
func Float() Type {
	return Tfloat{Size: F32}
}

// Double returns the double type
func Double() Type {
	return Tfloat{Size: F64}
}

// Pointer returns a pointer to the given type
func Pointer(elem Type) Type {
	return Tpointer{Elem: elem}
}

// ConstPointer returns a pointer to a const element
func ConstPointer(elem Type) Type {
	return Tpointer{Elem: elem, Const: true}
}

// Array returns an array type
func Array(elem Type, size int64) Type {
	return Tarray{Elem: elem, Size: size}
}

// Equal checks if two types are equal
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch ta := a.(type) {
	case Tvoid:
		_, ok := b.(Tvoid)
		return ok
	case Tbool:
		_, ok := b.(Tbool)
		return ok
	case Tint:
		tb, ok := b.(Tint)
		return ok && ta.Width == tb.Width
	case Tfloat:
		tb, ok := b.(Tfloat)
		return ok && ta.Size == tb.Size
	case Tvector:
		tb, ok := b.(Tvector)
		return ok && ta.Name == tb.Name
	case Tpointer:
		tb, ok := b.(Tpointer)
		return ok && ta.Const == tb.Const && ta.ConstPtr == tb.ConstPtr && Equal(ta.Elem, tb.Elem)
	case Tarray:
		tb, ok := b.(Tarray)
		return ok && ta.Size == tb.Size && Equal(ta.Elem, tb.Elem)
	case Tstruct:
		tb, ok := b.(Tstruct)
		return ok && ta.Name == tb.Name
	}
	return false
}
