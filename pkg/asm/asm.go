package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/pacifier94/ByteCode-VM/pkg/isa"
)

const maxLineLength = 1 << 20

var errAddressRange = errors.New("label address does not fit in a signed 32-bit operand")

// Record is one instruction line kept by pass 1 for pass 2.
type Record struct {
	Line int
	Text string
}

// Program is the output of a successful assembly.
type Program struct {
	Code      []byte
	Labels    *LabelTable
	Records   []Record
	SourceMap map[uint32]int
}

func Assemble(code string) (*Program, error) {
	return AssembleReader(strings.NewReader(code))
}

// AssembleReader runs both passes over r. On error no program is returned.
func AssembleReader(r io.Reader) (*Program, error) {
	labels, records, err := ResolveLabels(r)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("pass 1: %d labels, %d instructions", labels.Len(), len(records))

	prog, err := Encode(records, labels)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("pass 2: %d bytes", len(prog.Code))
	return prog, nil
}

// ResolveLabels is pass 1. It binds every label to the address of the next
// instruction and collects the instruction lines in source order. Mnemonics
// are not checked here; only the token count decides an instruction's size.
func ResolveLabels(r io.Reader) (*LabelTable, []Record, error) {
	labels := newLabelTable()
	var records []Record
	var address uint32

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLength)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := cleanLine(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			name := strings.TrimSpace(strings.TrimSuffix(line, ":"))
			if err := labels.define(name, address, lineNo); err != nil {
				return nil, nil, err
			}
			glog.V(2).Infof("label %q = 0x%04X (line %d)", name, address, lineNo)
			continue
		}

		records = append(records, Record{Line: lineNo, Text: line})
		address += instructionLength(line)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading source near line %d: %w", lineNo+1, err)
	}

	return labels, records, nil
}

// Encode is pass 2. It turns the records from pass 1 into byte code, resolving
// operands against labels.
func Encode(records []Record, labels *LabelTable) (*Program, error) {
	code := make([]byte, 0, len(records)*(1+isa.OperandSize))
	sourceMap := make(map[uint32]int, len(records))

	for _, rec := range records {
		fields := strings.Fields(rec.Text)
		if len(fields) == 0 {
			continue
		}

		mnemonic := strings.ToUpper(fields[0])
		opcode, ok := isa.Lookup(mnemonic)
		if !ok {
			return nil, &UnknownInstructionError{Mnemonic: mnemonic, Line: rec.Line}
		}

		sourceMap[uint32(len(code))] = rec.Line
		code = append(code, opcode)

		if len(fields) < 2 {
			continue
		}

		val, err := resolveOperand(strings.TrimRight(fields[1], ","), labels, rec.Line)
		if err != nil {
			return nil, err
		}
		code = isa.PutOperand(code, val)
	}

	return &Program{Code: code, Labels: labels, Records: records, SourceMap: sourceMap}, nil
}

// resolveOperand tries the label table first, then a base-10 literal.
// Values outside int32 are rejected rather than wrapped.
func resolveOperand(token string, labels *LabelTable, lineNo int) (int32, error) {
	if addr, ok := labels.Lookup(token); ok {
		if addr > math.MaxInt32 {
			return 0, &InvalidOperandError{Operand: token, Line: lineNo, Err: errAddressRange}
		}
		return int32(addr), nil
	}

	value, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, &InvalidOperandError{Operand: token, Line: lineNo, Err: strconv.ErrRange}
		}
		return 0, &InvalidOperandError{Operand: token, Line: lineNo}
	}
	return int32(value), nil
}

// instructionLength is 1 for the opcode plus 4 when a second token is present.
func instructionLength(line string) uint32 {
	if len(strings.Fields(line)) > 1 {
		return 1 + isa.OperandSize
	}
	return 1
}

func cleanLine(raw string) string {
	return strings.TrimSpace(stripComments(raw))
}

func stripComments(line string) string {
	if semicolon := strings.IndexByte(line, ';'); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}
