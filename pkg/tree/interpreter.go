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
package tree

import (
	"fmt"

	"github.com/consensys/go-mjc/pkg/temp"
)

// HostFunction provides the behaviour of a function called from interpreted
// IR.  It may freely read and modify the interpreter's state (e.g. memory).
type HostFunction func(interp *Interpreter, args []int32) int32

// Interpreter is a reference evaluator for IR statements.  It gives IR trees a
// precise meaning, which allows transformations (such as canonicalisation) to
// be checked by comparing the behaviour of a tree before and after.  Memory is
// modelled as a map from (word) addresses to words, and temporaries which have
// not been written read as zero.
type Interpreter struct {
	// Memory maps addresses to words.
	Memory map[int32]int32
	// Temps holds the current value of each temporary.
	Temps map[temp.Temp]int32
	// Functions maps function labels onto their implementations.
	Functions map[temp.Label]HostFunction
	// Limit on the number of statements executed by Run.
	MaxSteps uint
}

// NewInterpreter constructs an interpreter with empty state.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Memory:    make(map[int32]int32),
		Temps:     make(map[temp.Temp]int32),
		Functions: make(map[temp.Label]HostFunction),
		MaxSteps:  1_000_000,
	}
}

// Run executes a statement.  Control transfers are resolved against the labels
// occurring in the top-level sequence of statements; a jump to any other label
// terminates execution (this is how the "done" label of a trace is reached).
func (p *Interpreter) Run(stmts ...Stmt) {
	var (
		code   = Flatten(stmts...)
		labels = make(map[temp.Label]int)
		steps  uint
	)
	//
	for i, s := range code {
		if l, ok := s.(*Label); ok {
			labels[l.Label] = i
		}
	}
	//
	for pc := 0; pc < len(code); {
		var target temp.Label
		//
		if steps++; steps > p.MaxSteps {
			panic("interpreter step limit exceeded")
		}
		//
		switch s := code[pc].(type) {
		case *Jump:
			target = p.jumpTarget(s)
		case *CJump:
			l, r := p.Eval(s.Left), p.Eval(s.Right)
			//
			if EvalRel(s.Op, l, r) {
				target = s.True
			} else {
				target = s.False
			}
		default:
			p.exec(s)
			pc++
			//
			continue
		}
		// Resolve target
		if next, ok := labels[target]; ok {
			pc = next
		} else {
			return
		}
	}
}

// Flatten removes every (nested) Seq from the given statements, producing the
// equivalent list of statements in execution order.
func Flatten(stmts ...Stmt) []Stmt {
	var code []Stmt
	//
	for _, s := range stmts {
		code = flatten(s, code)
	}
	//
	return code
}

func flatten(s Stmt, code []Stmt) []Stmt {
	if seq, ok := s.(*Seq); ok {
		return flatten(seq.Right, flatten(seq.Left, code))
	}
	//
	return append(code, s)
}

// Eval evaluates an expression, performing any side effects it has.
func (p *Interpreter) Eval(e Expr) int32 {
	switch e := e.(type) {
	case *Const:
		return e.Value
	case *Name:
		panic(fmt.Sprintf("cannot evaluate address of %s", e.Label))
	case *Temp:
		return p.Temps[e.Temp]
	case *Binop:
		l := p.Eval(e.Left)
		r := p.Eval(e.Right)
		//
		return EvalBinary(e.Op, l, r)
	case *Mem:
		return p.Memory[p.Eval(e.Addr)]
	case *Call:
		return p.call(e)
	case *Eseq:
		p.exec(e.Stmt)
		return p.Eval(e.Expr)
	}
	//
	panic(fmt.Sprintf("unknown expression %s", e))
}

func (p *Interpreter) call(e *Call) int32 {
	name, ok := e.Func.(*Name)
	if !ok {
		panic(fmt.Sprintf("indirect call not supported %s", e))
	}
	//
	fn, ok := p.Functions[name.Label]
	if !ok {
		panic(fmt.Sprintf("unknown function %s", name.Label))
	}
	//
	args := make([]int32, len(e.Args))
	for i, arg := range e.Args {
		args[i] = p.Eval(arg)
	}
	//
	return fn(p, args)
}

// Execute a statement which does not transfer control.
func (p *Interpreter) exec(s Stmt) {
	switch s := s.(type) {
	case *Move:
		switch dst := s.Dst.(type) {
		case *Temp:
			p.Temps[dst.Temp] = p.Eval(s.Src)
		case *Mem:
			addr := p.Eval(dst.Addr)
			p.Memory[addr] = p.Eval(s.Src)
		case *Eseq:
			p.exec(dst.Stmt)
			p.exec(&Move{dst.Expr, s.Src})
		default:
			panic(fmt.Sprintf("invalid move destination %s", s.Dst))
		}
	case *Exp:
		p.Eval(s.Expr)
	case *Seq:
		p.exec(s.Left)
		p.exec(s.Right)
	case *Label:
		// nothing to do
	default:
		panic(fmt.Sprintf("control transfer not permitted here %s", s))
	}
}

func (p *Interpreter) jumpTarget(s *Jump) temp.Label {
	if name, ok := s.Target.(*Name); ok {
		return name.Label
	}
	//
	panic(fmt.Sprintf("computed jump not supported %s", s))
}
