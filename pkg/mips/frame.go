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
package mips

import (
	"fmt"
	"strings"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
)

// Frame is the stack frame of a single MIPS procedure.  The frame pointer is
// virtual: it equals the stack pointer on entry, and is eliminated during
// instruction selection in favour of the stack pointer plus the frame size.
// Locals are allocated downwards from the frame pointer, whilst the outgoing
// argument area sits at the bottom of the frame.  The ith incoming argument
// lives at 4*i from the frame pointer, although the first four are passed in
// registers.
type Frame struct {
	machine *Machine
	name    temp.Label
	formals []frame.Access
	// Offset of the most recently allocated local.
	offset int32
	// Largest number of outgoing arguments of any call.
	maxArgs int
}

func (p *Machine) newFrame(name string, escapes []bool) *Frame {
	f := &Frame{machine: p, name: p.uniqueName(name)}
	//
	for i, escape := range escapes {
		switch {
		case !escape:
			f.formals = append(f.formals, &frame.InReg{Temp: p.factory.NewTemp()})
		case i < len(argRegs):
			f.formals = append(f.formals, f.AllocLocal(true))
		default:
			f.formals = append(f.formals, &frame.InFrame{Offset: int32(i * WordSize)})
		}
	}
	//
	return f
}

// Name implementation for the frame.Frame interface.
func (p *Frame) Name() temp.Label {
	return p.name
}

// Formals implementation for the frame.Frame interface.
func (p *Frame) Formals() []frame.Access {
	return p.formals
}

// NewFrame implementation for the frame.Frame interface.  The child is named
// after this frame, as in "parent.child".
func (p *Frame) NewFrame(name string, formals []bool) frame.Frame {
	return p.machine.newFrame(fmt.Sprintf("%s.%s", p.name.Name(), name), formals)
}

// AllocLocal implementation for the frame.Frame interface.
func (p *Frame) AllocLocal(escape bool) frame.Access {
	if !escape {
		return &frame.InReg{Temp: p.machine.factory.NewTemp()}
	}
	//
	p.offset -= WordSize
	//
	return &frame.InFrame{Offset: p.offset}
}

// FP implementation for the frame.Frame interface.
func (p *Frame) FP() temp.Temp {
	return p.machine.fp
}

// RV implementation for the frame.Frame interface.
func (p *Frame) RV() temp.Temp {
	return p.machine.regs[V0]
}

// WordSize implementation for the frame.Frame interface.
func (p *Frame) WordSize() int32 {
	return WordSize
}

// TempMap implementation for the temp.Map interface.
func (p *Frame) TempMap(t temp.Temp) (string, bool) {
	return p.machine.TempMap(t)
}

// Registers implementation for the frame.Frame interface.
func (p *Frame) Registers() []temp.Temp {
	return p.machine.Registers()
}

// Size returns the number of bytes in this frame, covering both locals and
// the outgoing argument area.
func (p *Frame) Size() int32 {
	return -p.offset + int32(p.maxArgs*WordSize)
}

// ExternalCall implementation for the frame.Frame interface.  Runtime routines
// are named with a leading underscore (e.g. "_printint").
func (p *Frame) ExternalCall(name string, args []tree.Expr) tree.Expr {
	return &tree.Call{Func: &tree.Name{Label: temp.NamedLabel("_" + name)}, Args: args}
}

// ProcEntryExit1 implementation for the frame.Frame interface.
func (p *Frame) ProcEntryExit1(body tree.Stmt) tree.Stmt {
	var (
		entry []tree.Stmt
		exit  []tree.Stmt
		fp    = &tree.Temp{Temp: p.FP()}
	)
	// Save callee-saved registers in fresh temporaries, leaving the allocator
	// to decide whether or not they need to be spilled.
	for _, r := range calleeSaves {
		reg := &tree.Temp{Temp: p.machine.regs[r]}
		save := &tree.Temp{Temp: p.machine.factory.NewTemp()}
		entry = append(entry, &tree.Move{Dst: save, Src: reg})
		exit = append(exit, &tree.Move{Dst: reg, Src: save})
	}
	// Bring incoming arguments into formal storage.
	for i, formal := range p.formals {
		var incoming tree.Expr
		//
		if i < len(argRegs) {
			incoming = &tree.Temp{Temp: p.machine.regs[argRegs[i]]}
		} else if acc, ok := formal.(*frame.InFrame); ok && acc.Offset == int32(i*WordSize) {
			// Already in place
			continue
		} else {
			incoming = (&frame.InFrame{Offset: int32(i * WordSize)}).Exp(fp)
		}
		//
		entry = append(entry, &tree.Move{Dst: formal.Exp(fp), Src: incoming})
	}
	//
	stmts := append(entry, body)
	//
	return tree.SeqOf(append(stmts, exit...)...)
}

// ProcEntryExit2 implementation for the frame.Frame interface.
func (p *Frame) ProcEntryExit2(body []assem.Instr) []assem.Instr {
	return append(body, assem.NewOper("# sink", nil, p.machine.returnSink()))
}

// ProcEntryExit3 implementation for the frame.Frame interface.
func (p *Frame) ProcEntryExit3(body []assem.Instr) *frame.Proc {
	var (
		prologue strings.Builder
		epilogue strings.Builder
		name     = p.name.Name()
		size     = p.Size()
	)
	//
	prologue.WriteString("\t.text\n")
	prologue.WriteString(fmt.Sprintf("\t.globl %s\n", name))
	prologue.WriteString(fmt.Sprintf("%s:\n", name))
	prologue.WriteString(fmt.Sprintf("%s_framesize=%d\n", name, size))
	//
	if size != 0 {
		prologue.WriteString(fmt.Sprintf("\taddiu $sp,$sp,-%s_framesize\n", name))
		epilogue.WriteString(fmt.Sprintf("\taddiu $sp,$sp,%s_framesize\n", name))
	}
	//
	epilogue.WriteString("\tjr $ra\n")
	//
	return &frame.Proc{Prologue: prologue.String(), Body: body, Epilogue: epilogue.String()}
}

// Codegen implementation for the frame.Frame interface.
func (p *Frame) Codegen(stmts []tree.Stmt) []assem.Instr {
	gen := &codegen{frame: p}
	//
	for _, s := range stmts {
		gen.munchStmt(s)
	}
	//
	return gen.instrs
}

// Spill implementation for the frame.Frame interface.  Every spilled
// temporary is given its own slot in the frame.  Within each instruction, all
// occurrences of a spilled temporary are replaced by a single fresh temporary.
func (p *Frame) Spill(instrs []assem.Instr, spills []temp.Temp) ([]assem.Instr, []temp.Temp) {
	var (
		slots   = make(map[temp.Temp]int32)
		rewrite []assem.Instr
		fresh   []temp.Temp
		sp      = p.machine.regs[SP]
	)
	//
	for _, t := range spills {
		slots[t] = p.AllocLocal(true).(*frame.InFrame).Offset
	}
	//
	for _, instr := range instrs {
		var (
			renames = make(map[temp.Temp]temp.Temp)
			stored  = make(map[temp.Temp]bool)
			stores  []assem.Instr
		)
		//
		rename := func(t temp.Temp) temp.Temp {
			if n, ok := renames[t]; ok {
				return n
			}
			//
			n := p.machine.factory.NewTemp()
			renames[t] = n
			fresh = append(fresh, n)
			//
			return n
		}
		//
		for _, u := range instr.Use() {
			if offset, ok := slots[u]; ok {
				if _, done := renames[u]; !done {
					load := fmt.Sprintf("lw `d0,%s(`s0)", p.fpOffset(offset))
					rewrite = append(rewrite, assem.NewOper(load, []temp.Temp{rename(u)}, []temp.Temp{sp}))
				}
			}
		}
		//
		for _, d := range instr.Def() {
			if offset, ok := slots[d]; ok && !stored[d] {
				store := fmt.Sprintf("sw `s0,%s(`s1)", p.fpOffset(offset))
				stores = append(stores, assem.NewOper(store, nil, []temp.Temp{rename(d), sp}))
				stored[d] = true
			}
		}
		//
		if len(renames) == 0 {
			rewrite = append(rewrite, instr)
			continue
		}
		//
		rewrite = append(rewrite, instr.Rename(func(t temp.Temp) temp.Temp {
			if n, ok := renames[t]; ok {
				return n
			}
			//
			return t
		}))
		rewrite = append(rewrite, stores...)
	}
	//
	return rewrite, fresh
}

func (p *Frame) String() string {
	var formals []string
	//
	for _, f := range p.formals {
		formals = append(formals, f.String())
	}
	//
	return fmt.Sprintf("%s(%s) size=%d", p.name, strings.Join(formals, ","), p.Size())
}

// Render an offset from the (eliminated) frame pointer as an offset from the
// stack pointer.
func (p *Frame) fpOffset(offset int32) string {
	return fmt.Sprintf("%d+%s_framesize", offset, p.name.Name())
}
