package asm

import "fmt"

// DuplicateLabelError is returned by pass 1 when a label is declared twice.
// Line is the line of the second declaration.
type DuplicateLabelError struct {
	Label string
	Line  int
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicate label '%s' on line %d", e.Label, e.Line)
}

// UnknownInstructionError is returned by pass 2 for a mnemonic that is not in
// the opcode table. Mnemonic is upper-cased.
type UnknownInstructionError struct {
	Mnemonic string
	Line     int
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("unknown instruction '%s' on line %d", e.Mnemonic, e.Line)
}

// InvalidOperandError is returned by pass 2 when an operand is neither a
// declared label nor a base-10 int32 literal.
type InvalidOperandError struct {
	Operand string
	Line    int
	Err     error
}

func (e *InvalidOperandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid operand '%s' on line %d: %v", e.Operand, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid operand '%s' on line %d", e.Operand, e.Line)
}

func (e *InvalidOperandError) Unwrap() error {
	return e.Err
}
