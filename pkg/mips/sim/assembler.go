// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package sim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/consensys/go-mjc/pkg/mips"
)

const (
	// TextBase is the address of the first instruction.
	TextBase = uint32(0x00400000)
	// DataBase is the address of the first byte of static data.
	DataBase = uint32(0x10010000)
)

// Program is an assembled program, consisting of a list of instructions and
// an initial data segment.
type Program struct {
	text    []instruction
	data    []byte
	symbols map[string]int32
}

// Lookup returns the value of a symbol, which is either a label (i.e. an
// address) or a constant defined by an assignment.
func (p *Program) Lookup(name string) (int32, bool) {
	v, ok := p.symbols[name]
	return v, ok
}

// Len returns the number of instructions in this program.
func (p *Program) Len() uint {
	return uint(len(p.text))
}

// instruction is a single decoded machine instruction.  Immediates and branch
// targets are held as expressions until every symbol is known.
type instruction struct {
	op   string
	regs []mips.Register
	expr string
	imm  int32
	line int
}

// AssemblyError reports a problem with a given line of assembly.
type AssemblyError struct {
	Line    int
	Message string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Operand shapes for each supported instruction, where "r" is a register, "i"
// an immediate (or label) and "m" a memory operand "imm(reg)".
var shapes = map[string]string{
	"li": "ri", "la": "ri", "move": "rr", "mflo": "r", "mfhi": "r",
	"addu": "rrr", "add": "rrr", "subu": "rrr", "sub": "rrr", "mul": "rrr",
	"and": "rrr", "or": "rrr", "xor": "rrr", "nor": "rrr", "slt": "rrr", "sltu": "rrr",
	"sllv": "rrr", "srlv": "rrr", "srav": "rrr",
	"addiu": "rri", "addi": "rri", "andi": "rri", "ori": "rri", "xori": "rri",
	"slti": "rri", "sltiu": "rri", "sll": "rri", "srl": "rri", "sra": "rri",
	"div": "rr", "divu": "rr", "mult": "rr",
	"lw": "rm", "sw": "rm", "lb": "rm", "sb": "rm",
	"beq": "rri", "bne": "rri", "bltz": "ri", "bgez": "ri", "bgtz": "ri", "blez": "ri",
	"b": "i", "j": "i", "jal": "i", "jr": "r", "jalr": "r",
	"syscall": "", "nop": "",
}

// Assemble a given program text.  Assembly proceeds in two passes: the first
// decodes instructions and lays out data, whilst the second resolves symbolic
// operands.
func Assemble(text string) (*Program, error) {
	var (
		prog   = &Program{symbols: make(map[string]int32)}
		inText = true
		equs   = make(map[string]string)
	)
	//
	for i, line := range strings.Split(text, "\n") {
		lineno := i + 1
		line = strings.TrimSpace(stripComment(line))
		// Labels
		for {
			colon := strings.Index(line, ":")
			if colon < 0 || !isSymbol(strings.TrimSpace(line[:colon])) {
				break
			}
			//
			label := strings.TrimSpace(line[:colon])
			if _, ok := prog.symbols[label]; ok {
				return nil, &AssemblyError{lineno, fmt.Sprintf("duplicate label %s", label)}
			} else if inText {
				prog.symbols[label] = int32(TextBase + 4*uint32(len(prog.text)))
			} else {
				prog.symbols[label] = int32(DataBase + uint32(len(prog.data)))
			}
			//
			line = strings.TrimSpace(line[colon+1:])
		}
		//
		if line == "" {
			continue
		} else if eq := strings.Index(line, "="); eq > 0 && isSymbol(strings.TrimSpace(line[:eq])) {
			equs[strings.TrimSpace(line[:eq])] = strings.TrimSpace(line[eq+1:])
			continue
		}
		//
		op, rest := line, ""
		if j := strings.IndexAny(line, " \t"); j >= 0 {
			op, rest = line[:j], strings.TrimSpace(line[j+1:])
		}
		//
		var err error
		//
		switch {
		case op == ".text":
			inText = true
		case op == ".data":
			inText = false
		case op == ".globl":
		case strings.HasPrefix(op, "."):
			prog.data, err = directive(prog.data, op, rest)
		default:
			var instr instruction
			//
			instr, err = decode(op, rest)
			instr.line = lineno
			prog.text = append(prog.text, instr)
		}
		//
		if err != nil {
			return nil, &AssemblyError{lineno, err.Error()}
		}
	}
	// Resolve assignments, which may refer to each other or to labels.
	for name := range equs {
		if _, err := resolveEqu(name, equs, prog.symbols, nil); err != nil {
			return nil, err
		}
	}
	// Resolve operands
	for i := range prog.text {
		instr := &prog.text[i]
		//
		if instr.expr != "" {
			v, err := evaluate(instr.expr, prog.symbols)
			if err != nil {
				return nil, &AssemblyError{instr.line, err.Error()}
			}
			//
			instr.imm = v
		}
	}
	//
	return prog, nil
}

func resolveEqu(name string, equs map[string]string, symbols map[string]int32, visiting []string) (int32, error) {
	if v, ok := symbols[name]; ok {
		return v, nil
	}
	//
	for _, n := range visiting {
		if n == name {
			return 0, fmt.Errorf("cyclic definition of %s", name)
		}
	}
	//
	expr, ok := equs[name]
	if !ok {
		return 0, fmt.Errorf("unknown symbol %s", name)
	}
	// Resolve dependencies first
	for _, term := range terms(expr) {
		if isSymbol(term) {
			if _, err := resolveEqu(term, equs, symbols, append(visiting, name)); err != nil {
				return 0, err
			}
		}
	}
	//
	v, err := evaluate(expr, symbols)
	if err == nil {
		symbols[name] = v
	}
	//
	return v, err
}

func decode(op string, rest string) (instruction, error) {
	shape, ok := shapes[op]
	if !ok {
		return instruction{}, fmt.Errorf("unknown instruction %s", op)
	}
	//
	var (
		instr    = instruction{op: op}
		operands = splitOperands(rest)
	)
	//
	if len(operands) != len(shape) {
		return instr, fmt.Errorf("%s expects %d operands", op, len(shape))
	}
	//
	for i, kind := range shape {
		operand := operands[i]
		//
		switch kind {
		case 'r':
			r, ok := mips.ParseRegister(operand)
			if !ok {
				return instr, fmt.Errorf("unknown register %s", operand)
			}
			//
			instr.regs = append(instr.regs, r)
		case 'i':
			instr.expr = operand
		case 'm':
			open := strings.LastIndex(operand, "(")
			if open < 0 || !strings.HasSuffix(operand, ")") {
				return instr, fmt.Errorf("invalid memory operand %s", operand)
			}
			//
			r, ok := mips.ParseRegister(strings.TrimSpace(operand[open+1 : len(operand)-1]))
			if !ok {
				return instr, fmt.Errorf("invalid memory operand %s", operand)
			}
			//
			instr.regs = append(instr.regs, r)
			instr.expr = strings.TrimSpace(operand[:open])
			//
			if instr.expr == "" {
				instr.expr = "0"
			}
		}
	}
	//
	return instr, nil
}

func directive(data []byte, op string, rest string) ([]byte, error) {
	switch op {
	case ".word":
		data = align(data, 4)
		//
		for _, operand := range splitOperands(rest) {
			v, err := strconv.ParseInt(operand, 0, 64)
			if err != nil {
				return data, fmt.Errorf("invalid word %s", operand)
			}
			//
			data = append(data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		}
	case ".asciiz", ".ascii":
		s, err := strconv.Unquote(rest)
		if err != nil {
			return data, fmt.Errorf("invalid string %s", rest)
		}
		//
		data = append(data, s...)
		//
		if op == ".asciiz" {
			data = append(data, 0)
		}
	case ".align":
		n, err := strconv.ParseUint(rest, 0, 8)
		if err != nil || n > 16 {
			return data, fmt.Errorf("invalid alignment %s", rest)
		}
		//
		data = align(data, 1<<n)
	case ".space":
		n, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return data, fmt.Errorf("invalid space %s", rest)
		}
		//
		data = append(data, make([]byte, n)...)
	default:
		return data, fmt.Errorf("unknown directive %s", op)
	}
	//
	return data, nil
}

func align(data []byte, n int) []byte {
	for len(data)%n != 0 {
		data = append(data, 0)
	}
	//
	return data
}

// Evaluate an expression made from numbers and symbols combined with "+" and
// "-", such as "-8+main_framesize".
func evaluate(expr string, symbols map[string]int32) (int32, error) {
	var (
		total int64
		sign  int64 = 1
		term  strings.Builder
	)
	//
	flush := func() error {
		t := strings.TrimSpace(term.String())
		term.Reset()
		//
		if t == "" {
			return nil
		} else if v, err := strconv.ParseInt(t, 0, 64); err == nil {
			total += sign * v
		} else if v, ok := symbols[t]; ok {
			total += sign * int64(v)
		} else {
			return fmt.Errorf("unknown symbol %s", t)
		}
		//
		return nil
	}
	//
	for i := 0; i < len(expr); i++ {
		if c := expr[i]; c == '+' || c == '-' {
			if err := flush(); err != nil {
				return 0, err
			}
			//
			if c == '-' {
				sign = -1
			} else {
				sign = 1
			}
		} else {
			term.WriteByte(c)
		}
	}
	//
	if err := flush(); err != nil {
		return 0, err
	}
	//
	return int32(total), nil
}

func terms(expr string) []string {
	return strings.FieldsFunc(expr, func(r rune) bool { return r == '+' || r == '-' || r == ' ' })
}

func splitOperands(rest string) []string {
	if strings.TrimSpace(rest) == "" {
		return nil
	}
	//
	operands := strings.Split(rest, ",")
	//
	for i := range operands {
		operands[i] = strings.TrimSpace(operands[i])
	}
	//
	return operands
}

func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	//
	for i, c := range s {
		switch {
		case c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	//
	return true
}

// Remove a trailing comment, ignoring any "#" within a string literal.
func stripComment(line string) string {
	inString := false
	//
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return line[:i]
			}
		}
	}
	//
	return line
}
