package compiler

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds. Use errors.Is against these; CompileError wraps one
// of them with positional context.
var (
	ErrIndent              = errors.New("indentation is not a multiple of the indent unit")
	ErrSyntax              = errors.New("unrecognized statement or malformed expression")
	ErrUndefinedSymbol     = errors.New("use of a name that was never assigned")
	ErrVariableLengthArray = errors.New("array size must be a literal")
	ErrRegisterPressure    = errors.New("expression exceeds available registers")
)

// CompileError is the single diagnostic surfaced at the top level for any
// compile-time failure. Line is the 0-based index of the offending line
// within the block of lines being compiled when the failure arose, with blank
// lines not counted; for a statement inside an indented body it is the index
// within that body, not within the whole source.
type CompileError struct {
	Line int
	Kind error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Kind)
}

func (e *CompileError) Unwrap() error {
	return e.Kind
}

// newCompileError wraps kind with the source line it occurred on so the
// sentinel remains visible to errors.Is while still carrying position.
func newCompileError(line int, kind error, format string, args ...any) error {
	wrapped := kind
	if format != "" {
		wrapped = errors.Wrapf(kind, format, args...)
	}
	return &CompileError{Line: line, Kind: wrapped}
}
