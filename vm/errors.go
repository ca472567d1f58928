package vm

import (
	"errors"
	"fmt"
)

// Fatal execution conditions. Every fault aborts the current run; the
// machine has no internal retry policy.
var (
	ErrStackUnderflow    = errors.New("evaluation stack underflow")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrUndefinedFunction = errors.New("undefined function")
	ErrUnknownGate       = errors.New("unknown quantum gate")
	ErrNoQuantumState    = errors.New("no quantum state initialized")
	ErrNoHandler         = errors.New("no handler registered")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrUnbalancedBlocks  = errors.New("unbalanced block markers")
	ErrNotIterable       = errors.New("value is not iterable")
)

// Fault is the error returned by Execute. It records the program counter at
// the faulting instruction so tooling can map it back to source positions.
type Fault struct {
	PC  int
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at pc %d: %v", f.PC, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// faultPanic carries a fatal condition out of stack/operand helpers; the
// machine converts it to a *Fault at the run boundary. It never escapes the
// public API.
type faultPanic struct {
	err error
}
