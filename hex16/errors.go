package hex16

import (
	"errors"
	"fmt"
)

// Fault kinds. A Fault unwraps to exactly one of these.
var (
	ErrAddressing     = errors.New("addressing fault")
	ErrDecode         = errors.New("decode fault")
	ErrInvalidOperand = errors.New("invalid operand fault")
)

// Fault stops a run. It carries enough context to replay the failure from a
// fresh start with the same program image.
type Fault struct {
	Kind        error
	PC          uint16 // address of the faulting instruction
	Instruction uint16
	Detail      error
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%v at pc %#04x (instruction %#04x)", f.Kind, f.PC, f.Instruction)
	if f.Detail != nil {
		msg += ": " + f.Detail.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Kind
}
