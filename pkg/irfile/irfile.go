// Package irfile decodes YAML IR documents into loopir units.
//
// A document holds one unit:
//
//	unit: kernels
//	exports: [vadd]
//	procs:
//	  - name: vadd
//	    params:
//	      - {name: n, type: size}
//	      - {name: x, type: "f32[n] @DRAM"}
//	      - {name: y, type: "f32[n] @DRAM", mut: true}
//	    assume: ["n % 8 == 0"]
//	    body:
//	      - for: i
//	        hi: n
//	        body:
//	          - {assign: "y[i]", rhs: "x[i] + 1.0"}
//
// Expressions and types are strings in the parser grammar. Every node takes
// its source location from an explicit src key ("file:line[:col]") or from
// its position in the document.
package irfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/loopcc/pkg/loopir"
	"github.com/raymyers/loopcc/pkg/parser"
)

// Error is a malformed document
type Error struct {
	Src loopir.SrcInfo
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Src, e.Msg)
}

// Load reads and decodes the IR document at path. The unit name defaults
// to the file name without extension.
func Load(path string) (*loopir.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, path)
}

// Decode decodes an IR document; file is used for source locations.
func Decode(data []byte, file string) (*loopir.Unit, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	d := &decoder{file: file}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &Error{Src: loopir.SrcInfo{File: file, Line: 1}, Msg: "empty document"}
	}
	return d.unit(doc.Content[0])
}

type decoder struct {
	file string
	// element types of the buffers visible in the current procedure
	elems map[loopir.Sym]loopir.BaseType
}

func (d *decoder) pos(n *yaml.Node) loopir.SrcInfo {
	return loopir.SrcInfo{File: d.file, Line: n.Line, Col: n.Column}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return &Error{Src: d.pos(n), Msg: fmt.Sprintf(format, args...)}
}

// fields returns the entries of a mapping node, rejecting unknown keys.
func (d *decoder) fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		known := false
		for _, a := range allowed {
			if k.Value == a {
				known = true
				break
			}
		}
		if !known {
			return nil, d.errorf(k, "unknown key %q", k.Value)
		}
		if _, dup := out[k.Value]; dup {
			return nil, d.errorf(k, "duplicate key %q", k.Value)
		}
		out[k.Value] = v
	}
	return out, nil
}

func (d *decoder) scalar(n *yaml.Node, what string) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", d.errorf(n, "%s must be a scalar", what)
	}
	return n.Value, nil
}

func (d *decoder) required(f map[string]*yaml.Node, parent *yaml.Node, key string) (string, error) {
	n, ok := f[key]
	if !ok {
		return "", d.errorf(parent, "missing %s", key)
	}
	s, err := d.scalar(n, key)
	if err == nil && s == "" {
		err = d.errorf(n, "empty %s", key)
	}
	return s, err
}

func (d *decoder) sequence(n *yaml.Node, what string) ([]*yaml.Node, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "%s must be a sequence", what)
	}
	return n.Content, nil
}

// src resolves the location of a node, preferring an explicit src key.
func (d *decoder) src(n *yaml.Node, f map[string]*yaml.Node) (loopir.SrcInfo, error) {
	s, ok := f["src"]
	if !ok {
		return d.pos(n), nil
	}
	info, err := ParseSrc(s.Value)
	if err != nil {
		return loopir.SrcInfo{}, d.errorf(s, "%v", err)
	}
	return info, nil
}

// ParseSrc parses "file:line" or "file:line:col".
func ParseSrc(s string) (loopir.SrcInfo, error) {
	parts := strings.Split(s, ":")
	nums := 0
	for i := len(parts) - 1; i > 0 && nums < 2; i-- {
		if _, err := strconv.Atoi(parts[i]); err != nil {
			break
		}
		nums++
	}
	if nums == 0 {
		return loopir.SrcInfo{}, fmt.Errorf("invalid source location %q", s)
	}
	cut := len(parts) - nums
	info := loopir.SrcInfo{File: strings.Join(parts[:cut], ":")}
	info.Line, _ = strconv.Atoi(parts[cut])
	if nums == 2 {
		info.Col, _ = strconv.Atoi(parts[cut+1])
	}
	return info, nil
}

func (d *decoder) expr(n *yaml.Node, what string) (loopir.Expr, error) {
	return d.exprAs(n, what, loopir.F32)
}

func (d *decoder) exprAs(n *yaml.Node, what string, ft loopir.BaseType) (loopir.Expr, error) {
	s, err := d.scalar(n, what)
	if err != nil {
		return nil, err
	}
	e, err := parser.ParseExprAs(s, ft)
	if err != nil {
		return nil, d.errorf(n, "%s: %v", what, err)
	}
	return e, nil
}

func (d *decoder) exprs(n *yaml.Node, what string) ([]loopir.Expr, error) {
	items, err := d.sequence(n, what)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	out := make([]loopir.Expr, 0, len(items))
	for _, it := range items {
		e, err := d.expr(it, what)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) unit(n *yaml.Node) (*loopir.Unit, error) {
	f, err := d.fields(n, "unit", "exports", "procs")
	if err != nil {
		return nil, err
	}
	name, err := d.scalar(f["unit"], "unit")
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(d.file), filepath.Ext(d.file))
	}
	u := &loopir.Unit{Name: name}
	procs, err := d.sequence(f["procs"], "procs")
	if err != nil {
		return nil, err
	}
	for _, pn := range procs {
		p, err := d.proc(pn)
		if err != nil {
			return nil, err
		}
		u.Procs = append(u.Procs, p)
	}

	exports, err := d.sequence(f["exports"], "exports")
	if err != nil {
		return nil, err
	}
	for _, en := range exports {
		name, err := d.scalar(en, "export")
		if err != nil {
			return nil, err
		}
		if u.Proc(name) == nil {
			return nil, d.errorf(en, "export %q names no procedure", name)
		}
		u.Exports = append(u.Exports, name)
	}
	return u, nil
}

func (d *decoder) proc(n *yaml.Node) (*loopir.Proc, error) {
	f, err := d.fields(n, "name", "src", "params", "assume", "body")
	if err != nil {
		return nil, err
	}
	p := &loopir.Proc{}
	if p.Name, err = d.required(f, n, "name"); err != nil {
		return nil, err
	}
	if p.Src, err = d.src(n, f); err != nil {
		return nil, err
	}
	d.elems = map[loopir.Sym]loopir.BaseType{}

	params, err := d.sequence(f["params"], "params")
	if err != nil {
		return nil, err
	}
	for _, an := range params {
		a, err := d.param(an)
		if err != nil {
			return nil, err
		}
		p.Params = append(p.Params, a)
	}
	if p.Assumes, err = d.exprs(f["assume"], "assume"); err != nil {
		return nil, err
	}
	if p.Body, err = d.body(f["body"]); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *decoder) param(n *yaml.Node) (loopir.Param, error) {
	f, err := d.fields(n, "name", "type", "mem", "mut", "src")
	if err != nil {
		return loopir.Param{}, err
	}
	var a loopir.Param
	name, err := d.required(f, n, "name")
	if err != nil {
		return a, err
	}
	a.Name = loopir.Sym(name)
	if a.Src, err = d.src(n, f); err != nil {
		return a, err
	}
	if a.Type, a.Mem, err = d.typ(f, n); err != nil {
		return a, err
	}
	if m, ok := f["mut"]; ok {
		if err := m.Decode(&a.Mutable); err != nil {
			return a, d.errorf(m, "mut must be a bool")
		}
	}
	if a.Type.IsBuffer() {
		d.elems[a.Name] = a.Type.Base
	}
	return a, nil
}

// typ decodes the type key and an optional mem key overriding "@MEM".
func (d *decoder) typ(f map[string]*yaml.Node, parent *yaml.Node) (loopir.Type, string, error) {
	s, err := d.required(f, parent, "type")
	if err != nil {
		return loopir.Type{}, "", err
	}
	t, mem, err := parser.ParseTypeString(s)
	if err != nil {
		return t, "", d.errorf(f["type"], "type: %v", err)
	}
	if m, ok := f["mem"]; ok {
		if mem, err = d.scalar(m, "mem"); err != nil {
			return t, "", err
		}
	}
	return t, mem, nil
}
