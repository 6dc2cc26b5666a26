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
	"math"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
)

// Three-register forms of the binary operators.
var binaryInstrs = map[tree.BinaryOp]string{
	tree.PLUS:    "addu",
	tree.MINUS:   "subu",
	tree.MUL:     "mul",
	tree.AND:     "and",
	tree.OR:      "or",
	tree.XOR:     "xor",
	tree.LSHIFT:  "sllv",
	tree.RSHIFT:  "srlv",
	tree.ARSHIFT: "srav",
}

// Immediate forms of the bitwise operators, whose immediate is zero extended.
var logicalInstrs = map[tree.BinaryOp]string{
	tree.AND: "andi",
	tree.OR:  "ori",
	tree.XOR: "xori",
}

// Immediate forms of the shift operators.
var shiftInstrs = map[tree.BinaryOp]string{
	tree.LSHIFT:  "sll",
	tree.RSHIFT:  "srl",
	tree.ARSHIFT: "sra",
}

// Branches comparing a register against zero, used for signed comparisons
// against a constant zero.
var zeroBranches = map[tree.RelOp]string{
	tree.EQ: "beq `s0,$zero,`j0",
	tree.NE: "bne `s0,$zero,`j0",
	tree.LT: "bltz `s0,`j0",
	tree.GE: "bgez `s0,`j0",
	tree.GT: "bgtz `s0,`j0",
	tree.LE: "blez `s0,`j0",
}

// codegen selects instructions for canonical statements by maximal munch,
// tiling each tree with the largest matching pattern first.
type codegen struct {
	frame  *Frame
	instrs []assem.Instr
}

func (p *codegen) emit(instr assem.Instr) {
	p.instrs = append(p.instrs, instr)
}

func (p *codegen) newTemp() temp.Temp {
	return p.frame.machine.factory.NewTemp()
}

func (p *codegen) reg(r Register) temp.Temp {
	return p.frame.machine.regs[r]
}

// ============================================================================
// Statements
// ============================================================================

func (p *codegen) munchStmt(s tree.Stmt) {
	switch s := s.(type) {
	case *tree.Label:
		p.emit(assem.NewLabel(s.Label))
	case *tree.Move:
		p.munchMove(s)
	case *tree.Exp:
		if call, ok := s.Expr.(*tree.Call); ok {
			p.munchCall(call)
		} else {
			p.munchExpr(s.Expr)
		}
	case *tree.Jump:
		p.munchJump(s)
	case *tree.CJump:
		p.munchCJump(s)
	default:
		panic(fmt.Sprintf("no instruction pattern for %s", s))
	}
}

func (p *codegen) munchMove(s *tree.Move) {
	switch dst := s.Dst.(type) {
	case *tree.Mem:
		p.munchStore(dst.Addr, s.Src)
	case *tree.Temp:
		if dst.Temp == p.frame.FP() {
			panic("assignment to frame pointer")
		}
		//
		switch src := s.Src.(type) {
		case *tree.Call:
			p.munchCall(src)
			p.emit(assem.NewMove(dst.Temp, p.reg(V0)))
		case *tree.Const:
			p.emit(assem.NewOper(fmt.Sprintf("li `d0,%d", src.Value), []temp.Temp{dst.Temp}, nil))
		default:
			p.emit(assem.NewMove(dst.Temp, p.munchExpr(src)))
		}
	default:
		panic(fmt.Sprintf("no instruction pattern for %s", s))
	}
}

func (p *codegen) munchStore(addr tree.Expr, value tree.Expr) {
	offset, base := p.munchAddress(addr)
	src := p.munchExpr(value)
	//
	if base == nil {
		p.emit(assem.NewOper(fmt.Sprintf("sw `s0,%s($zero)", offset), nil, []temp.Temp{src}))
	} else {
		p.emit(assem.NewOper(fmt.Sprintf("sw `s0,%s(`s1)", offset), nil, []temp.Temp{src, *base}))
	}
}

func (p *codegen) munchJump(s *tree.Jump) {
	if name, ok := s.Target.(*tree.Name); ok && len(s.Targets) == 1 && name.Label == s.Targets[0] {
		p.emit(assem.NewJump("j `j0", nil, name.Label))
		return
	}
	//
	target := p.munchExpr(s.Target)
	p.emit(assem.NewJump("jr `s0", []temp.Temp{target}, s.Targets...))
}

func (p *codegen) munchCJump(s *tree.CJump) {
	var (
		targets = []temp.Label{s.True, s.False}
		left    = p.munchExpr(s.Left)
	)
	// Compare directly against zero where possible.
	if c, ok := s.Right.(*tree.Const); ok && c.Value == 0 {
		if branch, ok := zeroBranches[s.Op]; ok {
			p.emit(assem.NewBranch(branch, []temp.Temp{left}, targets...))
			return
		}
	}
	//
	right := p.munchExpr(s.Right)
	//
	switch s.Op {
	case tree.EQ:
		p.emit(assem.NewBranch("beq `s0,`s1,`j0", []temp.Temp{left, right}, targets...))
	case tree.NE:
		p.emit(assem.NewBranch("bne `s0,`s1,`j0", []temp.Temp{left, right}, targets...))
	case tree.LT, tree.GE:
		p.munchCompare("slt", s.Op == tree.LT, left, right, targets)
	case tree.GT, tree.LE:
		p.munchCompare("slt", s.Op == tree.GT, right, left, targets)
	case tree.ULT, tree.UGE:
		p.munchCompare("sltu", s.Op == tree.ULT, left, right, targets)
	case tree.UGT, tree.ULE:
		p.munchCompare("sltu", s.Op == tree.UGT, right, left, targets)
	default:
		panic(fmt.Sprintf("no instruction pattern for %s", s))
	}
}

// Branch on the result of a set-less-than, taking the branch either when the
// comparison holds or when it fails.
func (p *codegen) munchCompare(set string, holds bool, left, right temp.Temp, targets []temp.Label) {
	flag := p.newTemp()
	p.emit(assem.NewOper(set+" `d0,`s0,`s1", []temp.Temp{flag}, []temp.Temp{left, right}))
	//
	if holds {
		p.emit(assem.NewBranch("bne `s0,$zero,`j0", []temp.Temp{flag}, targets...))
	} else {
		p.emit(assem.NewBranch("beq `s0,$zero,`j0", []temp.Temp{flag}, targets...))
	}
}

// Generate a call, leaving its result in $v0.  Arguments are evaluated left
// to right, with the first four passed in registers and the remainder stored
// in the outgoing argument area.
func (p *codegen) munchCall(call *tree.Call) {
	var (
		args = make([]temp.Temp, len(call.Args))
		uses []temp.Temp
		sp   = p.reg(SP)
		fn   temp.Temp
	)
	//
	name, direct := call.Func.(*tree.Name)
	//
	if !direct {
		fn = p.munchExpr(call.Func)
	}
	//
	for i, arg := range call.Args {
		args[i] = p.munchExpr(arg)
	}
	//
	for i, arg := range args {
		if i < len(argRegs) {
			reg := p.reg(argRegs[i])
			p.emit(assem.NewMove(reg, arg))
			uses = append(uses, reg)
		} else {
			store := fmt.Sprintf("sw `s0,%d(`s1)", i*WordSize)
			p.emit(assem.NewOper(store, nil, []temp.Temp{arg, sp}))
		}
	}
	//
	p.frame.maxArgs = max(p.frame.maxArgs, len(args))
	//
	if direct {
		p.emit(assem.NewOper("jal "+name.Label.Name(), p.frame.machine.callDefs(), uses))
	} else {
		p.emit(assem.NewOper("jalr `s0", p.frame.machine.callDefs(), append([]temp.Temp{fn}, uses...)))
	}
}

// ============================================================================
// Expressions
// ============================================================================

func (p *codegen) munchExpr(e tree.Expr) temp.Temp {
	switch e := e.(type) {
	case *tree.Temp:
		if e.Temp == p.frame.FP() {
			return p.munchFrameAddress(0)
		}
		//
		return e.Temp
	case *tree.Const:
		return p.munchOper(fmt.Sprintf("li `d0,%d", e.Value))
	case *tree.Name:
		return p.munchOper("la `d0," + e.Label.Name())
	case *tree.Mem:
		return p.munchLoad(e.Addr)
	case *tree.Binop:
		return p.munchBinop(e)
	default:
		panic(fmt.Sprintf("no instruction pattern for %s", e))
	}
}

func (p *codegen) munchLoad(addr tree.Expr) temp.Temp {
	var (
		r            = p.newTemp()
		offset, base = p.munchAddress(addr)
	)
	//
	if base == nil {
		p.emit(assem.NewOper(fmt.Sprintf("lw `d0,%s($zero)", offset), []temp.Temp{r}, nil))
	} else {
		p.emit(assem.NewOper(fmt.Sprintf("lw `d0,%s(`s0)", offset), []temp.Temp{r}, []temp.Temp{*base}))
	}
	//
	return r
}

func (p *codegen) munchBinop(e *tree.Binop) temp.Temp {
	// Frame addresses
	if k, ok := p.frameOffset(e); ok {
		return p.munchFrameAddress(k)
	}
	// Immediate forms
	if c, ok := e.Right.(*tree.Const); ok {
		if r, ok := p.munchImmediate(e.Op, e.Left, c.Value); ok {
			return r
		}
	} else if c, ok := e.Left.(*tree.Const); ok && commutes(e.Op) {
		if r, ok := p.munchImmediate(e.Op, e.Right, c.Value); ok {
			return r
		}
	}
	//
	left := p.munchExpr(e.Left)
	right := p.munchExpr(e.Right)
	r := p.newTemp()
	//
	if e.Op == tree.DIV {
		p.emit(assem.NewOper("div `s0,`s1", nil, []temp.Temp{left, right}))
		p.emit(assem.NewOper("mflo `d0", []temp.Temp{r}, nil))
	} else if instr, ok := binaryInstrs[e.Op]; ok {
		p.emit(assem.NewOper(instr+" `d0,`s0,`s1", []temp.Temp{r}, []temp.Temp{left, right}))
	} else {
		panic(fmt.Sprintf("no instruction pattern for %s", e))
	}
	//
	return r
}

// Select an immediate form for an operation with a constant operand, if one
// exists and the constant fits.
func (p *codegen) munchImmediate(op tree.BinaryOp, operand tree.Expr, k int32) (temp.Temp, bool) {
	var instr string
	//
	switch {
	case op == tree.PLUS && fitsSigned(int64(k)):
		instr = fmt.Sprintf("addiu `d0,`s0,%d", k)
	case op == tree.MINUS && fitsSigned(-int64(k)):
		instr = fmt.Sprintf("addiu `d0,`s0,%d", -int64(k))
	case logicalInstrs[op] != "" && k >= 0 && k <= math.MaxUint16:
		instr = fmt.Sprintf("%s `d0,`s0,%d", logicalInstrs[op], k)
	case shiftInstrs[op] != "" && k >= 0 && k < 32:
		instr = fmt.Sprintf("%s `d0,`s0,%d", shiftInstrs[op], k)
	default:
		return 0, false
	}
	//
	src := p.munchExpr(operand)
	r := p.newTemp()
	p.emit(assem.NewOper(instr, []temp.Temp{r}, []temp.Temp{src}))
	//
	return r, true
}

// Compute the address at a given offset from the (eliminated) frame pointer.
func (p *codegen) munchFrameAddress(offset int32) temp.Temp {
	r := p.newTemp()
	instr := fmt.Sprintf("addiu `d0,`s0,%s", p.frame.fpOffset(offset))
	p.emit(assem.NewOper(instr, []temp.Temp{r}, []temp.Temp{p.reg(SP)}))
	//
	return r
}

// Split an address into an offset and a base register, where a nil base means
// the offset is absolute.  Offsets from the frame pointer are rewritten as
// offsets from the stack pointer.
func (p *codegen) munchAddress(addr tree.Expr) (string, *temp.Temp) {
	if k, ok := p.frameOffset(addr); ok {
		sp := p.reg(SP)
		return p.frame.fpOffset(k), &sp
	} else if c, ok := addr.(*tree.Const); ok && fitsSigned(int64(c.Value)) {
		return fmt.Sprintf("%d", c.Value), nil
	} else if b, ok := addr.(*tree.Binop); ok {
		if c, ok := b.Right.(*tree.Const); ok && fitsSigned(int64(c.Value)) && b.Op == tree.PLUS {
			base := p.munchExpr(b.Left)
			return fmt.Sprintf("%d", c.Value), &base
		} else if ok && fitsSigned(-int64(c.Value)) && b.Op == tree.MINUS {
			base := p.munchExpr(b.Left)
			return fmt.Sprintf("%d", -int64(c.Value)), &base
		} else if c, ok := b.Left.(*tree.Const); ok && fitsSigned(int64(c.Value)) && b.Op == tree.PLUS {
			base := p.munchExpr(b.Right)
			return fmt.Sprintf("%d", c.Value), &base
		}
	}
	//
	base := p.munchExpr(addr)
	//
	return "0", &base
}

// Match the frame pointer, optionally plus (or minus) a constant offset.
func (p *codegen) frameOffset(e tree.Expr) (int32, bool) {
	switch e := e.(type) {
	case *tree.Temp:
		return 0, e.Temp == p.frame.FP()
	case *tree.Binop:
		fp, fok := e.Left.(*tree.Temp)
		c, cok := e.Right.(*tree.Const)
		//
		if !fok || !cok {
			// Try the other way around
			fp, fok = e.Right.(*tree.Temp)
			c, cok = e.Left.(*tree.Const)
			//
			if !fok || !cok || e.Op != tree.PLUS {
				return 0, false
			}
		}
		//
		if fp.Temp != p.frame.FP() {
			return 0, false
		} else if e.Op == tree.PLUS {
			return c.Value, true
		} else if e.Op == tree.MINUS && c.Value != math.MinInt32 {
			return -c.Value, true
		}
	}
	//
	return 0, false
}

func (p *codegen) munchOper(instr string) temp.Temp {
	r := p.newTemp()
	p.emit(assem.NewOper(instr, []temp.Temp{r}, nil))
	//
	return r
}

func fitsSigned(k int64) bool {
	return k >= math.MinInt16 && k <= math.MaxInt16
}

func commutes(op tree.BinaryOp) bool {
	switch op {
	case tree.PLUS, tree.MUL, tree.AND, tree.OR, tree.XOR:
		return true
	default:
		return false
	}
}
