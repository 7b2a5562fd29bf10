package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a manifest rejected by CUE or by the session schema.
// Field is the dotted manifest path; Pos is zero when CUE has no position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	b.WriteString(e.Field)
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// fromCUE reduces a CUE error list to a single CompileError. The first
// error wins; the rest only show up as a count.
func fromCUE(err error) error {
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}
	head := list[0]

	field := "session"
	if p := head.Path(); len(p) > 0 {
		field = strings.Join(p, ".")
	}
	msg := head.Error()
	if n := len(list); n > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n-1)
	}

	var pos token.Pos
	if ps := errors.Positions(head); len(ps) > 0 {
		pos = ps[0]
	}
	return &CompileError{Field: field, Message: msg, Pos: pos}
}
