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
	"strings"
	"testing"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
	"github.com/consensys/go-mjc/pkg/util/assert"
)

func konst(v int32) tree.Expr {
	return &tree.Const{Value: v}
}

func tmp(t temp.Temp) tree.Expr {
	return &tree.Temp{Temp: t}
}

func plus(l, r tree.Expr) tree.Expr {
	return &tree.Binop{Op: tree.PLUS, Left: l, Right: r}
}

func mem(addr tree.Expr) tree.Expr {
	return &tree.Mem{Addr: addr}
}

// ============================================================================
// Frames
// ============================================================================

func Test_Frame_01(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	f1 := m.NewFrame("f", nil)
	f2 := m.NewFrame("f", nil)
	f3 := m.NewFrame("f", nil)
	g := f1.NewFrame("g", nil)
	g2 := f1.NewFrame("g", nil)
	//
	assert.Equal(t, "f", f1.Name().Name())
	assert.Equal(t, "f.1", f2.Name().Name())
	assert.Equal(t, "f.2", f3.Name().Name())
	assert.Equal(t, "f.g", g.Name().Name())
	assert.Equal(t, "f.g.1", g2.Name().Name())
}

func Test_Frame_02(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	f := m.NewFrame("f", []bool{true, false, true, true, true, false})
	formals := f.Formals()
	//
	check_InFrame(t, formals[0], -4)
	check_InReg(t, formals[1])
	check_InFrame(t, formals[2], -8)
	check_InFrame(t, formals[3], -12)
	check_InFrame(t, formals[4], 16)
	check_InReg(t, formals[5])
	check_InFrame(t, f.AllocLocal(true), -16)
	check_InReg(t, f.AllocLocal(false))
	assert.Equal(t, int32(16), f.(*Frame).Size())
}

// Register set and names.
func Test_Frame_03(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	regs := m.Registers()
	names := make(map[string]bool)
	//
	assert.Equal(t, 26, len(regs))
	//
	for _, r := range regs {
		name, ok := m.TempMap(r)
		assert.True(t, ok)
		assert.False(t, names[name], "duplicate register %s", name)
		names[name] = true
	}
	//
	assert.False(t, names["$sp"])
	assert.False(t, names["$zero"])
	assert.True(t, names["$ra"])
	assert.Equal(t, "$t0", temp.Name(m, regs[0]))
	// Virtual frame pointer is not a register.
	f := m.NewFrame("f", nil)
	_, ok := m.TempMap(f.FP())
	assert.False(t, ok)
	assert.Equal(t, "$v0", temp.Name(f, f.RV()))
}

func Test_Frame_04(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	f := m.NewFrame("f", []bool{false, false, false, false, false, true})
	stmts := tree.Flatten(f.ProcEntryExit1(&tree.Exp{Expr: konst(0)}))
	// Callee saves, formals (except the last), body and then restores.
	assert.Equal(t, len(calleeSaves)+5+1+len(calleeSaves), len(stmts))
	// Fifth formal is loaded from the incoming argument area.
	load := stmts[len(calleeSaves)+4].(*tree.Move)
	assert.Equal(t, mem(plus(tmp(f.FP()), konst(16))).String(), load.Src.String())
}

func Test_Frame_05(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	f := m.NewFrame("main", nil)
	f.AllocLocal(true)
	proc := f.ProcEntryExit3(nil)
	//
	assert.True(t, strings.Contains(proc.Prologue, "main:\nmain_framesize=4\n"))
	assert.True(t, strings.Contains(proc.Prologue, "addiu $sp,$sp,-main_framesize"))
	assert.Equal(t, "\taddiu $sp,$sp,main_framesize\n\tjr $ra\n", proc.Epilogue)
	// Frames with nothing in them do not adjust the stack.
	g := m.NewFrame("g", nil)
	assert.Equal(t, "\tjr $ra\n", g.ProcEntryExit3(nil).Epilogue)
}

func Test_Frame_06(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	f := m.NewFrame("f", nil)
	call := f.ExternalCall("printint", []tree.Expr{konst(1)}).(*tree.Call)
	//
	assert.Equal(t, "_printint", call.Func.(*tree.Name).Label.Name())
	assert.Equal(t, 1, len(call.Args))
}

// Spilling rewrites uses and definitions.
func Test_Frame_07(t *testing.T) {
	var (
		m      = NewMachine(temp.NewFactory())
		f      = m.NewFrame("f", nil)
		t1, t2 = m.Factory().NewTemp(), m.Factory().NewTemp()
		instrs = []assem.Instr{
			assem.NewOper("li `d0,1", []temp.Temp{t1}, nil),
			assem.NewOper("addu `d0,`s0,`s1", []temp.Temp{t2}, []temp.Temp{t1, t1}),
			assem.NewOper("use", nil, []temp.Temp{t2}),
		}
	)
	//
	spilled, fresh := f.Spill(instrs, []temp.Temp{t1})
	//
	assert.Equal(t, 2, len(fresh))
	check_Assem(t, spilled,
		"li `d0,1",
		"sw `s0,-4+f_framesize(`s1)",
		"lw `d0,-4+f_framesize(`s0)",
		"addu `d0,`s0,`s1",
		"use")
	// Both uses in the same instruction share a temporary.
	add := spilled[3].(*assem.Oper)
	assert.Equal(t, add.Src[0], add.Src[1])
	assert.Equal(t, fresh[1], add.Src[0])
	assert.Equal(t, int32(4), f.(*Frame).Size())
}

// A temporary both used and defined by an instruction is loaded and then
// stored.
func Test_Frame_08(t *testing.T) {
	var (
		m      = NewMachine(temp.NewFactory())
		f      = m.NewFrame("f", nil)
		t1     = m.Factory().NewTemp()
		instrs = []assem.Instr{assem.NewOper("addiu `d0,`s0,1", []temp.Temp{t1}, []temp.Temp{t1})}
	)
	//
	spilled, fresh := f.Spill(instrs, []temp.Temp{t1})
	//
	assert.Equal(t, 1, len(fresh))
	check_Assem(t, spilled, "lw `d0,-4+f_framesize(`s0)", "addiu `d0,`s0,1", "sw `s0,-4+f_framesize(`s1)")
}

func Test_Frame_09(t *testing.T) {
	m := NewMachine(temp.NewFactory())
	data := m.StringData(temp.NamedLabel("s0"), "a\"b\\\n\x01")
	//
	assert.Equal(t, "\t.data\n\t.word 6\ns0:\n\t.asciiz \"a\\\"b\\\\\\n\\001\"\n", data)
	assert.True(t, strings.Contains(m.ProgramTail(), "_printint:"))
}

// ============================================================================
// Instruction selection
// ============================================================================

func Test_Codegen_01(t *testing.T) {
	f, m := newFrame()
	t1, t2 := m.Factory().NewTemp(), m.Factory().NewTemp()
	//
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: mem(plus(tmp(t2), konst(8)))},
		"lw `d0,8(`s0)", "move `d0,`s0")
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: mem(plus(konst(8), tmp(t2)))},
		"lw `d0,8(`s0)", "move `d0,`s0")
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: mem(konst(64))},
		"lw `d0,64($zero)", "move `d0,`s0")
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: mem(tmp(t2))},
		"lw `d0,0(`s0)", "move `d0,`s0")
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: konst(5)},
		"li `d0,5")
}

// Stores
func Test_Codegen_02(t *testing.T) {
	f, m := newFrame()
	t1, t2 := m.Factory().NewTemp(), m.Factory().NewTemp()
	//
	check_Codegen(t, f, &tree.Move{Dst: mem(plus(tmp(t2), konst(-4))), Src: tmp(t1)},
		"sw `s0,-4(`s1)")
	check_Codegen(t, f, &tree.Move{Dst: mem(konst(4)), Src: tmp(t1)},
		"sw `s0,4($zero)")
	check_Codegen(t, f, &tree.Move{Dst: mem(plus(tmp(t2), konst(1<<20))), Src: tmp(t1)},
		"li `d0,1048576", "addu `d0,`s0,`s1", "sw `s0,0(`s1)")
}

// Frame pointer elimination.
func Test_Codegen_03(t *testing.T) {
	f, m := newFrame()
	fp := tmp(f.FP())
	t1 := m.Factory().NewTemp()
	//
	instrs := check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: mem(plus(fp, konst(-8)))},
		"lw `d0,-8+f_framesize(`s0)", "move `d0,`s0")
	assert.Equal(t, m.Reg(SP), instrs[0].Use()[0])
	//
	check_Codegen(t, f, &tree.Move{Dst: mem(plus(fp, konst(-4))), Src: tmp(t1)},
		"sw `s0,-4+f_framesize(`s1)")
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: fp},
		"addiu `d0,`s0,0+f_framesize", "move `d0,`s0")
	check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: &tree.Binop{Op: tree.MINUS, Left: fp, Right: konst(12)}},
		"addiu `d0,`s0,-12+f_framesize", "move `d0,`s0")
	assert.Panics(t, func() { f.Codegen([]tree.Stmt{&tree.Move{Dst: fp, Src: konst(0)}}) })
}

// Arithmetic
func Test_Codegen_04(t *testing.T) {
	f, m := newFrame()
	t1, t2 := m.Factory().NewTemp(), m.Factory().NewTemp()
	binop := func(op tree.BinaryOp, l, r tree.Expr) tree.Stmt {
		return &tree.Exp{Expr: &tree.Binop{Op: op, Left: l, Right: r}}
	}
	//
	check_Codegen(t, f, binop(tree.PLUS, tmp(t1), konst(3)), "addiu `d0,`s0,3")
	check_Codegen(t, f, binop(tree.PLUS, konst(3), tmp(t1)), "addiu `d0,`s0,3")
	check_Codegen(t, f, binop(tree.MINUS, tmp(t1), konst(3)), "addiu `d0,`s0,-3")
	check_Codegen(t, f, binop(tree.MINUS, konst(3), tmp(t1)), "li `d0,3", "subu `d0,`s0,`s1")
	check_Codegen(t, f, binop(tree.AND, tmp(t1), konst(255)), "andi `d0,`s0,255")
	check_Codegen(t, f, binop(tree.AND, tmp(t1), konst(-1)), "li `d0,-1", "and `d0,`s0,`s1")
	check_Codegen(t, f, binop(tree.LSHIFT, tmp(t1), konst(2)), "sll `d0,`s0,2")
	check_Codegen(t, f, binop(tree.ARSHIFT, tmp(t1), tmp(t2)), "srav `d0,`s0,`s1")
	check_Codegen(t, f, binop(tree.MUL, tmp(t1), tmp(t2)), "mul `d0,`s0,`s1")
	check_Codegen(t, f, binop(tree.DIV, tmp(t1), tmp(t2)), "div `s0,`s1", "mflo `d0")
	check_Codegen(t, f, &tree.Exp{Expr: &tree.Name{Label: temp.NamedLabel("s")}}, "la `d0,s")
}

// Conditional branches
func Test_Codegen_05(t *testing.T) {
	f, m := newFrame()
	t1, t2 := m.Factory().NewTemp(), m.Factory().NewTemp()
	lt, lf := temp.NamedLabel("yes"), temp.NamedLabel("no")
	cjump := func(op tree.RelOp, r tree.Expr) tree.Stmt {
		return &tree.CJump{Op: op, Left: tmp(t1), Right: r, True: lt, False: lf}
	}
	//
	check_Codegen(t, f, cjump(tree.LT, konst(0)), "bltz `s0,`j0")
	check_Codegen(t, f, cjump(tree.EQ, konst(0)), "beq `s0,$zero,`j0")
	check_Codegen(t, f, cjump(tree.NE, tmp(t2)), "bne `s0,`s1,`j0")
	check_Codegen(t, f, cjump(tree.LT, tmp(t2)), "slt `d0,`s0,`s1", "bne `s0,$zero,`j0")
	check_Codegen(t, f, cjump(tree.LE, tmp(t2)), "slt `d0,`s0,`s1", "beq `s0,$zero,`j0")
	check_Codegen(t, f, cjump(tree.UGE, konst(0)), "li `d0,0", "sltu `d0,`s0,`s1", "beq `s0,$zero,`j0")
	//
	instrs := check_Codegen(t, f, cjump(tree.GT, tmp(t2)), "slt `d0,`s0,`s1", "bne `s0,$zero,`j0")
	// Operands are swapped for greater-than.
	assert.Equal(t, []temp.Temp{t2, t1}, instrs[0].Use())
	assert.Equal(t, []temp.Label{lt, lf}, instrs[1].Jumps())
	assert.True(t, instrs[1].(*assem.Oper).Cond)
}

// Jumps
func Test_Codegen_06(t *testing.T) {
	f, m := newFrame()
	t1 := m.Factory().NewTemp()
	l1, l2 := temp.NamedLabel("a"), temp.NamedLabel("b")
	//
	instrs := check_Codegen(t, f, tree.NewJump(l1), "j `j0")
	assert.False(t, assem.FallsThrough(instrs[0]))
	//
	instrs = check_Codegen(t, f, &tree.Jump{Target: tmp(t1), Targets: []temp.Label{l1, l2}}, "jr `s0")
	assert.Equal(t, []temp.Label{l1, l2}, instrs[0].Jumps())
}

// Calls
func Test_Codegen_07(t *testing.T) {
	f, m := newFrame()
	t1 := m.Factory().NewTemp()
	args := []tree.Expr{konst(1), konst(2), konst(3), konst(4), konst(5), konst(6)}
	call := &tree.Call{Func: &tree.Name{Label: temp.NamedLabel("g")}, Args: args}
	//
	instrs := check_Codegen(t, f, &tree.Move{Dst: tmp(t1), Src: call},
		"li `d0,1", "li `d0,2", "li `d0,3", "li `d0,4", "li `d0,5", "li `d0,6",
		"move `d0,`s0", "move `d0,`s0", "move `d0,`s0", "move `d0,`s0",
		"sw `s0,16(`s1)", "sw `s0,20(`s1)", "jal g", "move `d0,`s0")
	//
	jal := instrs[12]
	assert.Equal(t, m.temps(argRegs), jal.Use())
	assert.Equal(t, m.callDefs(), jal.Def())
	assert.Equal(t, m.Reg(V0), instrs[13].Use()[0])
	assert.Equal(t, int32(24), f.Size())
	// Indirect calls
	check_Codegen(t, f, &tree.Exp{Expr: &tree.Call{Func: tmp(t1)}}, "jalr `s0")
}

// Shapes without a pattern are internal errors.
func Test_Codegen_08(t *testing.T) {
	f, m := newFrame()
	t1 := m.Factory().NewTemp()
	//
	assert.Panics(t, func() {
		f.Codegen([]tree.Stmt{&tree.Exp{Expr: &tree.Eseq{Stmt: &tree.Exp{Expr: konst(0)}, Expr: konst(1)}}})
	})
	assert.Panics(t, func() {
		f.Codegen([]tree.Stmt{&tree.Move{Dst: konst(0), Src: tmp(t1)}})
	})
	assert.Panics(t, func() {
		f.Codegen([]tree.Stmt{&tree.Seq{Left: &tree.Exp{Expr: konst(0)}, Right: &tree.Exp{Expr: konst(0)}}})
	})
}

// ============================================================================
// Helpers
// ============================================================================

func newFrame() (*Frame, *Machine) {
	m := NewMachine(temp.NewFactory())
	return m.newFrame("f", nil), m
}

// Check instruction selection for a statement.  Every template must be
// consistent with the operands of its instruction, which is checked by
// formatting it.
func check_Codegen(t *testing.T, f *Frame, stmt tree.Stmt, expected ...string) []assem.Instr {
	t.Helper()
	//
	instrs := f.Codegen([]tree.Stmt{stmt})
	check_Assem(t, instrs, expected...)
	//
	for _, instr := range instrs {
		instr.Format(temp.NewCombineMap(f, temp.DefaultMap{}))
	}
	//
	return instrs
}

func check_Assem(t *testing.T, instrs []assem.Instr, expected ...string) {
	t.Helper()
	//
	var actual []string
	//
	for _, instr := range instrs {
		switch instr := instr.(type) {
		case *assem.Oper:
			actual = append(actual, instr.Assem)
		case *assem.Move:
			actual = append(actual, instr.Assem)
		case *assem.Label:
			actual = append(actual, instr.Assem)
		}
	}
	//
	assert.Equal(t, expected, actual)
}

func check_InFrame(t *testing.T, access frame.Access, offset int32) {
	t.Helper()
	//
	acc, ok := access.(*frame.InFrame)
	assert.True(t, ok)
	assert.Equal(t, offset, acc.Offset)
}

func check_InReg(t *testing.T, access frame.Access) {
	t.Helper()
	//
	_, ok := access.(*frame.InReg)
	assert.True(t, ok)
}
