package isa

import (
	"fmt"
	"strings"
)

// Instruction is one decoded opcode with its optional operand.
type Instruction struct {
	Addr       uint32
	Op         byte
	Operand    int32
	HasOperand bool
}

func (in Instruction) String() string {
	name, ok := Mnemonic(in.Op)
	if !ok {
		name = fmt.Sprintf("DB 0x%02X", in.Op)
	}
	if !in.HasOperand {
		return name
	}
	return fmt.Sprintf("%s %d", name, in.Operand)
}

// Size is the number of bytes the instruction occupies.
func (in Instruction) Size() uint32 {
	if in.HasOperand {
		return 1 + OperandSize
	}
	return 1
}

// DecodeAt fetches the instruction starting at pc.
func DecodeAt(code []byte, pc uint32) (Instruction, error) {
	if uint64(pc) >= uint64(len(code)) {
		return Instruction{}, fmt.Errorf("address 0x%04X out of bounds", pc)
	}
	in := Instruction{Addr: pc, Op: code[pc]}
	if _, ok := Mnemonic(in.Op); !ok {
		return in, fmt.Errorf("invalid opcode 0x%02X at 0x%04X", in.Op, pc)
	}
	if HasOperand(in.Op) {
		v, err := ReadOperand(code, pc+1)
		if err != nil {
			return in, err
		}
		in.Operand = v
		in.HasOperand = true
	}
	return in, nil
}

// Decode splits a whole program into instructions.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pc := uint32(0); uint64(pc) < uint64(len(code)); {
		in, err := DecodeAt(code, pc)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		pc += in.Size()
	}
	return out, nil
}

// Listing renders instructions one per line, prefixed with their address.
// labels, if non-nil, maps addresses to names printed on their own line.
func Listing(ins []Instruction, labels map[uint32][]string) string {
	var sb strings.Builder
	for _, in := range ins {
		for _, name := range labels[in.Addr] {
			fmt.Fprintf(&sb, "%s:\n", name)
		}
		fmt.Fprintf(&sb, "%04X  %s\n", in.Addr, in)
	}
	return sb.String()
}
