package vm

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/pacifier94/ByteCode-VM/pkg/isa"
)

// MemorySize is the number of int32 cells addressable by STORE and LOAD.
const MemorySize = 1024

var (
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrCallStackUnderflow = errors.New("call stack underflow")
	ErrInvalidJump        = errors.New("invalid jump address")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrMemoryBounds       = errors.New("memory access out of bounds")
	ErrPCOutOfBounds      = errors.New("PC out of bounds")
	ErrInvalidOpcode      = errors.New("invalid opcode")
	ErrTruncated          = errors.New("bytecode read out of bounds")
	ErrStepLimit          = errors.New("step limit reached")
)

// RuntimeError records where execution failed.
type RuntimeError struct {
	PC  uint32
	Op  byte
	Err error
}

func (e *RuntimeError) Error() string {
	if errors.Is(e.Err, ErrPCOutOfBounds) || errors.Is(e.Err, ErrStepLimit) {
		return fmt.Sprintf("runtime error at PC %d: %v", e.PC, e.Err)
	}
	name, ok := isa.Mnemonic(e.Op)
	if !ok {
		name = fmt.Sprintf("0x%02X", e.Op)
	}
	return fmt.Sprintf("runtime error at PC %d (%s): %v", e.PC, name, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

type VM struct {
	Code      []byte
	Stack     []int32
	CallStack []uint32
	Memory    [MemorySize]int32

	PC     uint32
	Halted bool
	Steps  int

	// Trace, if set, receives one "PC=<pc> Stack=[...]" line before each step.
	Trace io.Writer
	// MaxSteps stops Run with ErrStepLimit once reached. Zero means no limit.
	MaxSteps int
}

func New(code []byte) *VM {
	return &VM{Code: code}
}

// Reset clears all state except the loaded code.
func (v *VM) Reset() {
	v.Stack = v.Stack[:0]
	v.CallStack = v.CallStack[:0]
	v.Memory = [MemorySize]int32{}
	v.PC = 0
	v.Halted = false
	v.Steps = 0
}

// Result is the value on top of the stack, or 0 when it is empty.
func (v *VM) Result() int32 {
	if len(v.Stack) == 0 {
		return 0
	}
	return v.Stack[len(v.Stack)-1]
}

func (v *VM) Run() error {
	for !v.Halted {
		if v.MaxSteps > 0 && v.Steps >= v.MaxSteps {
			return &RuntimeError{PC: v.PC, Err: ErrStepLimit}
		}
		if err := v.Step(); err != nil {
			v.Halted = true
			return err
		}
	}
	glog.V(1).Infof("halted after %d steps, result %d", v.Steps, v.Result())
	return nil
}

// Step executes one instruction.
func (v *VM) Step() error {
	if v.Halted {
		return nil
	}
	if uint64(v.PC) >= uint64(len(v.Code)) {
		return &RuntimeError{PC: v.PC, Err: ErrPCOutOfBounds}
	}
	if v.Trace != nil {
		v.traceState()
	}

	pc := v.PC
	opcode := v.Code[pc]
	v.PC++
	v.Steps++

	fail := func(err error) error {
		return &RuntimeError{PC: pc, Op: opcode, Err: err}
	}

	var operand int32
	if isa.HasOperand(opcode) {
		val, err := isa.ReadOperand(v.Code, v.PC)
		if err != nil {
			return fail(ErrTruncated)
		}
		operand = val
		v.PC += isa.OperandSize
	}

	switch opcode {
	case isa.OpNOP:
	case isa.OpPUSH:
		v.push(operand)
	case isa.OpPOP:
		if _, err := v.pop(); err != nil {
			return fail(err)
		}
	case isa.OpDUP:
		if len(v.Stack) < 1 {
			return fail(ErrStackUnderflow)
		}
		v.push(v.Stack[len(v.Stack)-1])

	case isa.OpADD, isa.OpSUB, isa.OpMUL, isa.OpDIV, isa.OpCMP:
		if len(v.Stack) < 2 {
			return fail(ErrStackUnderflow)
		}
		b, _ := v.pop()
		a, _ := v.pop()
		res, err := arith(opcode, a, b)
		if err != nil {
			return fail(err)
		}
		v.push(res)

	case isa.OpJMP:
		if !v.validAddr(operand) {
			return fail(ErrInvalidJump)
		}
		v.PC = uint32(operand)
	case isa.OpJZ, isa.OpJNZ:
		val, err := v.pop()
		if err != nil {
			return fail(err)
		}
		if (val == 0) == (opcode == isa.OpJZ) {
			if !v.validAddr(operand) {
				return fail(ErrInvalidJump)
			}
			v.PC = uint32(operand)
		}

	case isa.OpSTORE:
		if len(v.Stack) < 1 {
			return fail(ErrStackUnderflow)
		}
		if uint32(operand) >= MemorySize {
			return fail(ErrMemoryBounds)
		}
		val, _ := v.pop()
		v.Memory[operand] = val
	case isa.OpLOAD:
		if uint32(operand) >= MemorySize {
			return fail(ErrMemoryBounds)
		}
		v.push(v.Memory[operand])

	case isa.OpCALL:
		if !v.validAddr(operand) {
			return fail(ErrInvalidJump)
		}
		v.CallStack = append(v.CallStack, v.PC)
		v.PC = uint32(operand)
	case isa.OpRET:
		if len(v.CallStack) == 0 {
			return fail(ErrCallStackUnderflow)
		}
		v.PC = v.CallStack[len(v.CallStack)-1]
		v.CallStack = v.CallStack[:len(v.CallStack)-1]

	case isa.OpHALT:
		v.Halted = true
	default:
		return fail(ErrInvalidOpcode)
	}
	return nil
}

// arith applies a binary operator; a is the deeper operand.
func arith(opcode byte, a, b int32) (int32, error) {
	switch opcode {
	case isa.OpADD:
		return a + b, nil
	case isa.OpSUB:
		return a - b, nil
	case isa.OpMUL:
		return a * b, nil
	case isa.OpDIV:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	case isa.OpCMP:
		if a < b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, ErrInvalidOpcode
}

func (v *VM) push(val int32) {
	v.Stack = append(v.Stack, val)
}

func (v *VM) pop() (int32, error) {
	if len(v.Stack) == 0 {
		return 0, ErrStackUnderflow
	}
	val := v.Stack[len(v.Stack)-1]
	v.Stack = v.Stack[:len(v.Stack)-1]
	return val, nil
}

func (v *VM) validAddr(addr int32) bool {
	return uint64(uint32(addr)) < uint64(len(v.Code))
}

func (v *VM) traceState() {
	fmt.Fprintf(v.Trace, "PC=%d Stack=[", v.PC)
	for _, s := range v.Stack {
		fmt.Fprintf(v.Trace, "%d ", s)
	}
	fmt.Fprintln(v.Trace, "]")
}
