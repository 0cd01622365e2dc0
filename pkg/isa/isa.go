package isa

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	OpNOP   byte = 0x00
	OpPUSH  byte = 0x01
	OpPOP   byte = 0x02
	OpDUP   byte = 0x03
	OpADD   byte = 0x10
	OpSUB   byte = 0x11
	OpMUL   byte = 0x12
	OpDIV   byte = 0x13
	OpCMP   byte = 0x14
	OpJMP   byte = 0x20
	OpJZ    byte = 0x21
	OpJNZ   byte = 0x22
	OpSTORE byte = 0x30
	OpLOAD  byte = 0x31
	OpCALL  byte = 0x40
	OpRET   byte = 0x41
	OpHALT  byte = 0xFF
)

// OperandSize is the width in bytes of the big-endian signed operand.
const OperandSize = 4

var opcodes = map[string]byte{
	"NOP":   OpNOP,
	"PUSH":  OpPUSH,
	"POP":   OpPOP,
	"DUP":   OpDUP,
	"ADD":   OpADD,
	"SUB":   OpSUB,
	"MUL":   OpMUL,
	"DIV":   OpDIV,
	"CMP":   OpCMP,
	"JMP":   OpJMP,
	"JZ":    OpJZ,
	"JNZ":   OpJNZ,
	"STORE": OpSTORE,
	"LOAD":  OpLOAD,
	"CALL":  OpCALL,
	"RET":   OpRET,
	"HALT":  OpHALT,
}

var mnemonics = func() map[byte]string {
	m := make(map[byte]string, len(opcodes))
	for name, op := range opcodes {
		m[op] = name
	}
	return m
}()

var operandOps = map[byte]bool{
	OpPUSH:  true,
	OpJMP:   true,
	OpJZ:    true,
	OpJNZ:   true,
	OpSTORE: true,
	OpLOAD:  true,
	OpCALL:  true,
}

// Lookup returns the opcode for a mnemonic, ignoring case.
func Lookup(mnemonic string) (byte, bool) {
	op, ok := opcodes[strings.ToUpper(mnemonic)]
	return op, ok
}

// Mnemonic returns the upper-case name of op.
func Mnemonic(op byte) (string, bool) {
	name, ok := mnemonics[op]
	return name, ok
}

// HasOperand reports whether op is followed by a 4-byte operand in the
// instruction stream.
func HasOperand(op byte) bool {
	return operandOps[op]
}

// Mnemonics returns every mnemonic in opcode order.
func Mnemonics() []string {
	out := make([]string, 0, len(opcodes))
	for op := 0; op <= 0xFF; op++ {
		if name, ok := mnemonics[byte(op)]; ok {
			out = append(out, name)
		}
	}
	return out
}

// PutOperand appends v to buf as a big-endian two's-complement int32.
func PutOperand(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

// ReadOperand reads the big-endian int32 at code[pc:pc+4].
func ReadOperand(code []byte, pc uint32) (int32, error) {
	if uint64(pc)+OperandSize > uint64(len(code)) {
		return 0, fmt.Errorf("operand at 0x%04X runs past end of code (%d bytes)", pc, len(code))
	}
	return int32(binary.BigEndian.Uint32(code[pc:])), nil
}
