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
	"io"
	"math"

	"github.com/consensys/go-mjc/pkg/mips"
)

const (
	// StackTop is the initial value of the stack pointer.
	StackTop = uint32(0x7ffffffc)
	// Return address given to the outermost call.  Returning to it halts the
	// simulation.
	haltAddress = uint32(0xfffffff0)
	// DefaultLimit is the default maximum number of instructions executed by
	// a single call.
	DefaultLimit = uint(10_000_000)
	pageSize     = 4096
)

// RuntimeError reports a problem encountered whilst executing a program.
type RuntimeError struct {
	PC      uint32
	Line    int
	Message string
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (pc=0x%08x, line %d)", e.Message, e.PC, e.Line)
	}
	//
	return fmt.Sprintf("%s (pc=0x%08x)", e.Message, e.PC)
}

// Simulator executes assembled programs over the integer subset of MIPS32.
// Output produced by system calls is written to a given writer.
type Simulator struct {
	prog   *Program
	regs   [mips.NumRegisters]int32
	hi, lo int32
	pc     uint32
	pages  map[uint32]*[pageSize]byte
	heap   uint32
	out    io.Writer
	limit  uint
	steps  uint
	halted bool
}

// New constructs a simulator for a given program, whose static data is loaded
// into memory.
func New(prog *Program, out io.Writer) *Simulator {
	p := &Simulator{prog: prog, pages: make(map[uint32]*[pageSize]byte), out: out, limit: DefaultLimit}
	//
	for i, b := range prog.data {
		p.storeByte(DataBase+uint32(i), b)
	}
	//
	p.heap = (DataBase + uint32(len(prog.data)) + 7) &^ 7
	p.regs[mips.SP] = int32(StackTop)
	p.regs[mips.GP] = int32(DataBase)
	//
	return p
}

// SetLimit sets the maximum number of instructions a single call may execute.
func (p *Simulator) SetLimit(limit uint) {
	p.limit = limit
}

// Reg returns the current value of a register.
func (p *Simulator) Reg(r mips.Register) int32 {
	return p.regs[r]
}

// Steps returns the total number of instructions executed so far.
func (p *Simulator) Steps() uint {
	return p.steps
}

// Halted indicates whether the program terminated via the exit system call.
func (p *Simulator) Halted() bool {
	return p.halted
}

// Call executes the procedure at a given label, passing up to four arguments
// in registers.  Execution stops when the procedure returns, or the program
// exits, and the contents of $v0 is returned.
func (p *Simulator) Call(entry string, args ...int32) (int32, error) {
	addr, ok := p.prog.Lookup(entry)
	if !ok || uint32(addr) < TextBase || uint32(addr) >= TextBase+4*uint32(len(p.prog.text)) {
		return 0, fmt.Errorf("unknown procedure %s", entry)
	} else if len(args) > 4 {
		return 0, fmt.Errorf("too many arguments (%d)", len(args))
	}
	//
	for i, arg := range args {
		p.regs[mips.A0+mips.Register(i)] = arg
	}
	//
	ra := haltAddress
	p.regs[mips.RA] = int32(ra)
	p.pc = uint32(addr)
	p.halted = false
	//
	for start := p.steps; !p.halted && p.pc != haltAddress; {
		if p.steps-start >= p.limit {
			return 0, p.error("instruction limit exceeded")
		} else if err := p.step(); err != nil {
			return 0, err
		}
	}
	//
	return p.regs[mips.V0], nil
}

// Load reads the word at a given (aligned) address.
func (p *Simulator) Load(addr uint32) (int32, error) {
	if addr%4 != 0 {
		return 0, p.error(fmt.Sprintf("unaligned load from 0x%08x", addr))
	}
	//
	var w uint32
	//
	for i := uint32(0); i < 4; i++ {
		w |= uint32(p.loadByte(addr+i)) << (8 * i)
	}
	//
	return int32(w), nil
}

// Store writes the word at a given (aligned) address.
func (p *Simulator) Store(addr uint32, value int32) error {
	if addr%4 != 0 {
		return p.error(fmt.Sprintf("unaligned store to 0x%08x", addr))
	}
	//
	for i := uint32(0); i < 4; i++ {
		p.storeByte(addr+i, byte(uint32(value)>>(8*i)))
	}
	//
	return nil
}

// Execute a single instruction.
func (p *Simulator) step() error {
	index := (p.pc - TextBase) / 4
	//
	if p.pc < TextBase || p.pc%4 != 0 || index >= uint32(len(p.prog.text)) {
		return p.error("invalid program counter")
	}
	//
	var (
		instr = &p.prog.text[index]
		next  = p.pc + 4
		r     = instr.regs
		imm   = instr.imm
	)
	//
	p.steps++
	//
	switch instr.op {
	case "li", "la":
		p.set(r[0], imm)
	case "move":
		p.set(r[0], p.regs[r[1]])
	case "mflo":
		p.set(r[0], p.lo)
	case "mfhi":
		p.set(r[0], p.hi)
	case "addu", "add":
		p.set(r[0], p.regs[r[1]]+p.regs[r[2]])
	case "subu", "sub":
		p.set(r[0], p.regs[r[1]]-p.regs[r[2]])
	case "mul":
		p.set(r[0], p.regs[r[1]]*p.regs[r[2]])
	case "and":
		p.set(r[0], p.regs[r[1]]&p.regs[r[2]])
	case "or":
		p.set(r[0], p.regs[r[1]]|p.regs[r[2]])
	case "xor":
		p.set(r[0], p.regs[r[1]]^p.regs[r[2]])
	case "nor":
		p.set(r[0], ^(p.regs[r[1]] | p.regs[r[2]]))
	case "slt":
		p.set(r[0], flag(p.regs[r[1]] < p.regs[r[2]]))
	case "sltu":
		p.set(r[0], flag(uint32(p.regs[r[1]]) < uint32(p.regs[r[2]])))
	case "sllv":
		p.set(r[0], p.regs[r[1]]<<(uint32(p.regs[r[2]])&31))
	case "srlv":
		p.set(r[0], int32(uint32(p.regs[r[1]])>>(uint32(p.regs[r[2]])&31)))
	case "srav":
		p.set(r[0], p.regs[r[1]]>>(uint32(p.regs[r[2]])&31))
	case "addiu", "addi":
		p.set(r[0], p.regs[r[1]]+imm)
	case "andi":
		p.set(r[0], p.regs[r[1]]&(imm&0xffff))
	case "ori":
		p.set(r[0], p.regs[r[1]]|(imm&0xffff))
	case "xori":
		p.set(r[0], p.regs[r[1]]^(imm&0xffff))
	case "slti":
		p.set(r[0], flag(p.regs[r[1]] < imm))
	case "sltiu":
		p.set(r[0], flag(uint32(p.regs[r[1]]) < uint32(imm)))
	case "sll":
		p.set(r[0], p.regs[r[1]]<<(uint32(imm)&31))
	case "srl":
		p.set(r[0], int32(uint32(p.regs[r[1]])>>(uint32(imm)&31)))
	case "sra":
		p.set(r[0], p.regs[r[1]]>>(uint32(imm)&31))
	case "div":
		if err := p.divide(p.regs[r[0]], p.regs[r[1]]); err != nil {
			return err
		}
	case "divu":
		if p.regs[r[1]] == 0 {
			return p.error("division by zero")
		}
		//
		p.lo = int32(uint32(p.regs[r[0]]) / uint32(p.regs[r[1]]))
		p.hi = int32(uint32(p.regs[r[0]]) % uint32(p.regs[r[1]]))
	case "mult":
		v := int64(p.regs[r[0]]) * int64(p.regs[r[1]])
		p.lo, p.hi = int32(v), int32(v>>32)
	case "lw":
		v, err := p.Load(uint32(p.regs[r[1]] + imm))
		if err != nil {
			return err
		}
		//
		p.set(r[0], v)
	case "sw":
		if err := p.Store(uint32(p.regs[r[1]]+imm), p.regs[r[0]]); err != nil {
			return err
		}
	case "lb":
		p.set(r[0], int32(int8(p.loadByte(uint32(p.regs[r[1]]+imm)))))
	case "sb":
		p.storeByte(uint32(p.regs[r[1]]+imm), byte(p.regs[r[0]]))
	case "beq":
		next = p.branch(p.regs[r[0]] == p.regs[r[1]], next, imm)
	case "bne":
		next = p.branch(p.regs[r[0]] != p.regs[r[1]], next, imm)
	case "bltz":
		next = p.branch(p.regs[r[0]] < 0, next, imm)
	case "bgez":
		next = p.branch(p.regs[r[0]] >= 0, next, imm)
	case "bgtz":
		next = p.branch(p.regs[r[0]] > 0, next, imm)
	case "blez":
		next = p.branch(p.regs[r[0]] <= 0, next, imm)
	case "b", "j":
		next = uint32(imm)
	case "jal":
		p.regs[mips.RA] = int32(next)
		next = uint32(imm)
	case "jr":
		next = uint32(p.regs[r[0]])
	case "jalr":
		target := uint32(p.regs[r[0]])
		p.regs[mips.RA] = int32(next)
		next = target
	case "syscall":
		if err := p.syscall(); err != nil {
			return err
		}
	case "nop":
	default:
		return p.error(fmt.Sprintf("unsupported instruction %s", instr.op))
	}
	//
	p.pc = next
	//
	return nil
}

func (p *Simulator) syscall() error {
	var err error
	//
	switch code := p.regs[mips.V0]; code {
	case 1:
		_, err = fmt.Fprintf(p.out, "%d", p.regs[mips.A0])
	case 4:
		var s []byte
		//
		for addr := uint32(p.regs[mips.A0]); p.loadByte(addr) != 0; addr++ {
			s = append(s, p.loadByte(addr))
		}
		//
		_, err = p.out.Write(s)
	case 9:
		n := (uint32(p.regs[mips.A0]) + 7) &^ 7
		p.regs[mips.V0] = int32(p.heap)
		p.heap += n
	case 10:
		p.halted = true
	case 11:
		_, err = p.out.Write([]byte{byte(p.regs[mips.A0])})
	default:
		return p.error(fmt.Sprintf("unknown system call %d", code))
	}
	//
	return err
}

func (p *Simulator) divide(l, r int32) error {
	if r == 0 {
		return p.error("division by zero")
	} else if l == math.MinInt32 && r == -1 {
		p.lo, p.hi = l, 0
		return nil
	}
	//
	p.lo, p.hi = l/r, l%r
	//
	return nil
}

func (p *Simulator) branch(taken bool, next uint32, target int32) uint32 {
	if taken {
		return uint32(target)
	}
	//
	return next
}

// Write a register, ignoring writes to $zero.
func (p *Simulator) set(r mips.Register, v int32) {
	if r != mips.ZERO {
		p.regs[r] = v
	}
}

func (p *Simulator) loadByte(addr uint32) byte {
	if page, ok := p.pages[addr/pageSize]; ok {
		return page[addr%pageSize]
	}
	//
	return 0
}

func (p *Simulator) storeByte(addr uint32, b byte) {
	page, ok := p.pages[addr/pageSize]
	//
	if !ok {
		page = new([pageSize]byte)
		p.pages[addr/pageSize] = page
	}
	//
	page[addr%pageSize] = b
}

func (p *Simulator) error(msg string) *RuntimeError {
	line := 0
	//
	if index := (p.pc - TextBase) / 4; p.pc >= TextBase && index < uint32(len(p.prog.text)) {
		line = p.prog.text[index].line
	}
	//
	return &RuntimeError{p.pc, line, msg}
}

func flag(b bool) int32 {
	if b {
		return 1
	}
	//
	return 0
}
