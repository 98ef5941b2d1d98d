// Package diag defines the failures reported while lowering procedures.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/loopcc/pkg/loopir"
)

// Kind classifies a lowering failure
type Kind int

const (
	UnresolvableShape Kind = iota
	UnsupportedOperation
	RankMismatch
	InternalInvariantViolation
)

func (k Kind) String() string {
	names := []string{"unresolvable shape", "unsupported operation", "rank mismatch", "internal invariant violation"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrUnresolvableShape          = errors.New("unresolvable shape")
	ErrUnsupportedOperation       = errors.New("unsupported operation")
	ErrRankMismatch               = errors.New("rank mismatch")
	ErrInternalInvariantViolation = errors.New("internal invariant violation")
)

var sentinels = []error{
	ErrUnresolvableShape,
	ErrUnsupportedOperation,
	ErrRankMismatch,
	ErrInternalInvariantViolation,
}

// Error is a failure attributed to one procedure and source location.
type Error struct {
	Kind Kind
	Proc string
	Src  loopir.SrcInfo
	Msg  string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Src.Line > 0 {
		b.WriteString(e.Src.String())
		b.WriteString(": ")
	}
	if e.Proc != "" {
		fmt.Fprintf(&b, "proc %s: ", e.Proc)
	}
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Msg)
	return b.String()
}

// Unwrap returns the sentinel of the error's kind.
func (e *Error) Unwrap() error {
	if int(e.Kind) < len(sentinels) {
		return sentinels[e.Kind]
	}
	return nil
}

// Errorf builds an Error without a procedure; the procedure compiler fills it in.
func Errorf(kind Kind, src loopir.SrcInfo, format string, args ...any) *Error {
	return &Error{Kind: kind, Src: src, Msg: fmt.Sprintf(format, args...)}
}

// Shape reports an UnresolvableShape failure
func Shape(src loopir.SrcInfo, format string, args ...any) *Error {
	return Errorf(UnresolvableShape, src, format, args...)
}

// Unsupported reports an UnsupportedOperation failure
func Unsupported(src loopir.SrcInfo, format string, args ...any) *Error {
	return Errorf(UnsupportedOperation, src, format, args...)
}

// Rank reports a RankMismatch failure
func Rank(src loopir.SrcInfo, format string, args ...any) *Error {
	return Errorf(RankMismatch, src, format, args...)
}

// Invariant reports an InternalInvariantViolation failure
func Invariant(src loopir.SrcInfo, format string, args ...any) *Error {
	return Errorf(InternalInvariantViolation, src, format, args...)
}

// InProc attaches a procedure name and, when missing, a location to err.
// Errors that are not *Error become invariant violations.
func InProc(err error, proc string, src loopir.SrcInfo) *Error {
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Proc == "" {
			out.Proc = proc
		}
		if out.Src.Line == 0 {
			out.Src = src
		}
		return &out
	}
	return &Error{Kind: InternalInvariantViolation, Proc: proc, Src: src, Msg: err.Error()}
}

// List collects per-procedure failures in source order.
type List []*Error

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes every collected failure to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Err returns nil for an empty list.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
