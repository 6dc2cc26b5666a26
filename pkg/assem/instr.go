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
package assem

import (
	"github.com/consensys/go-mjc/pkg/temp"
)

// Instr represents a target machine instruction whose operands are abstracted
// as temporaries.  The textual form of an instruction is a template in which
// "`s<i>", "`d<i>" and "`j<i>" refer (respectively) to the ith source, the ith
// destination and the ith jump target, whilst a doubled backtick denotes a
// single backtick.
type Instr interface {
	// Use returns the temporaries read by this instruction.
	Use() []temp.Temp
	// Def returns the temporaries written by this instruction.
	Def() []temp.Temp
	// Jumps returns the labels this instruction may transfer control to, or
	// nil if it always falls through.
	Jumps() []temp.Label
	// Format produces the text of this instruction, substituting the name of
	// each temporary as given by the map.
	Format(m temp.Map) string
	// Rename constructs a copy of this instruction with every temporary
	// replaced according to the given function.
	Rename(fn func(temp.Temp) temp.Temp) Instr
}

// ============================================================================
// Oper
// ============================================================================

// Oper is a general operation, such as arithmetic, a load, store, call or
// branch.
type Oper struct {
	Assem string
	Dst   []temp.Temp
	Src   []temp.Temp
	// Jump holds the possible targets of a control transfer, or nil for an
	// instruction which always falls through.
	Jump []temp.Label
	// Cond indicates a conditional branch, which may also fall through to the
	// next instruction.
	Cond bool
}

// NewOper constructs an operation which always falls through.
func NewOper(assem string, dst []temp.Temp, src []temp.Temp) *Oper {
	return &Oper{Assem: assem, Dst: dst, Src: src}
}

// NewJump constructs an unconditional transfer of control.
func NewJump(assem string, src []temp.Temp, targets ...temp.Label) *Oper {
	return &Oper{Assem: assem, Src: src, Jump: targets}
}

// NewBranch constructs a conditional branch which transfers to one of the
// given targets, or falls through.
func NewBranch(assem string, src []temp.Temp, targets ...temp.Label) *Oper {
	return &Oper{Assem: assem, Src: src, Jump: targets, Cond: true}
}

// Use implementation for Instr interface.
func (p *Oper) Use() []temp.Temp { return p.Src }

// Def implementation for Instr interface.
func (p *Oper) Def() []temp.Temp { return p.Dst }

// Jumps implementation for Instr interface.
func (p *Oper) Jumps() []temp.Label { return p.Jump }

// Format implementation for Instr interface.
func (p *Oper) Format(m temp.Map) string {
	return format(p.Assem, p.Dst, p.Src, p.Jump, m)
}

// Rename implementation for Instr interface.
func (p *Oper) Rename(fn func(temp.Temp) temp.Temp) Instr {
	return &Oper{p.Assem, rename(p.Dst, fn), rename(p.Src, fn), p.Jump, p.Cond}
}

func (p *Oper) String() string { return p.Format(temp.DefaultMap{}) }

// ============================================================================
// Label
// ============================================================================

// Label marks a position in the instruction stream which can be the target of
// a jump.  It has no operands.
type Label struct {
	Assem string
	Label temp.Label
}

// NewLabel constructs a label instruction in the usual textual form.
func NewLabel(label temp.Label) *Label {
	return &Label{label.Name() + ":", label}
}

// Use implementation for Instr interface.
func (p *Label) Use() []temp.Temp { return nil }

// Def implementation for Instr interface.
func (p *Label) Def() []temp.Temp { return nil }

// Jumps implementation for Instr interface.
func (p *Label) Jumps() []temp.Label { return nil }

// Format implementation for Instr interface.
func (p *Label) Format(m temp.Map) string { return p.Assem }

// Rename implementation for Instr interface.
func (p *Label) Rename(fn func(temp.Temp) temp.Temp) Instr { return p }

func (p *Label) String() string { return p.Assem }

// ============================================================================
// Move
// ============================================================================

// Move copies one temporary into another.  Moves are distinguished from other
// operations since the register allocator may coalesce them away.
type Move struct {
	Assem string
	Dst   temp.Temp
	Src   temp.Temp
}

// NewMove constructs a move in the usual textual form.
func NewMove(dst temp.Temp, src temp.Temp) *Move {
	return &Move{"move `d0,`s0", dst, src}
}

// Use implementation for Instr interface.
func (p *Move) Use() []temp.Temp { return []temp.Temp{p.Src} }

// Def implementation for Instr interface.
func (p *Move) Def() []temp.Temp { return []temp.Temp{p.Dst} }

// Jumps implementation for Instr interface.
func (p *Move) Jumps() []temp.Label { return nil }

// Format implementation for Instr interface.
func (p *Move) Format(m temp.Map) string {
	return format(p.Assem, p.Def(), p.Use(), nil, m)
}

// Rename implementation for Instr interface.
func (p *Move) Rename(fn func(temp.Temp) temp.Temp) Instr {
	return &Move{p.Assem, fn(p.Dst), fn(p.Src)}
}

func (p *Move) String() string { return p.Format(temp.DefaultMap{}) }

// ============================================================================
// Helpers
// ============================================================================

// FallsThrough determines whether control can pass from an instruction to the
// one following it.
func FallsThrough(instr Instr) bool {
	if op, ok := instr.(*Oper); ok && op.Jump != nil {
		return op.Cond
	}
	//
	return true
}

func rename(temps []temp.Temp, fn func(temp.Temp) temp.Temp) []temp.Temp {
	if temps == nil {
		return nil
	}
	//
	renamed := make([]temp.Temp, len(temps))
	//
	for i, t := range temps {
		renamed[i] = fn(t)
	}
	//
	return renamed
}
