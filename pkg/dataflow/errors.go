package dataflow

import "fmt"

// FormatError reports source that parses but cannot be elaborated
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "format error: " + e.Msg }

// DefinitionError reports an undeclared name or a doubly defined module
type DefinitionError struct {
	Msg string
}

func (e *DefinitionError) Error() string { return "definition error: " + e.Msg }

// ImplementationError reports a broken internal invariant
type ImplementationError struct {
	Msg string
}

func (e *ImplementationError) Error() string { return "implementation error: " + e.Msg }

// Formatf builds a FormatError
func Formatf(format string, args ...any) *FormatError {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// Definitionf builds a DefinitionError
func Definitionf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Msg: fmt.Sprintf(format, args...)}
}

// Implementationf builds an ImplementationError
func Implementationf(format string, args ...any) *ImplementationError {
	return &ImplementationError{Msg: fmt.Sprintf(format, args...)}
}

// failure carries an error through a panic inside the recursive walkers
type failure struct {
	err error
}

// Fail aborts the current pass with err. The pass entry point turns it back
// into an ordinary error with Recover.
func Fail(err error) {
	panic(failure{err})
}

// Recover is deferred by pass entry points: defer dataflow.Recover(&err).
// Panics that did not come from Fail are re-raised.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(failure)
	if !ok {
		panic(r)
	}
	*errp = f.err
}
