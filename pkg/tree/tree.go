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
	"strings"

	"github.com/consensys/go-mjc/pkg/temp"
)

// Expr represents an expression in the intermediate representation.  Every
// expression (except Eseq) can be decomposed into its immediate
// subexpressions, and rebuilt from a new set of them.  Canonicalisation relies
// upon this uniform decomposition.
type Expr interface {
	// Kids returns the immediate subexpressions of this expression, in
	// evaluation order.
	Kids() []Expr
	// Build constructs an equivalent expression using the given kids in place
	// of the originals.
	Build(kids []Expr) Expr
	// String returns an S-expression representation of this expression.
	String() string
}

// Stmt represents a statement in the intermediate representation.  As for
// expressions, every statement (except Seq) can be decomposed into its
// immediate subexpressions, and rebuilt from a new set of them.
type Stmt interface {
	// Kids returns the immediate subexpressions of this statement, in
	// evaluation order.
	Kids() []Expr
	// Build constructs an equivalent statement using the given kids in place
	// of the originals.
	Build(kids []Expr) Stmt
	// String returns an S-expression representation of this statement.
	String() string
}

// ============================================================================
// Expressions
// ============================================================================

// Const is an integer constant.
type Const struct {
	Value int32
}

// Kids implementation for the Expr interface.
func (e *Const) Kids() []Expr { return nil }

// Build implementation for the Expr interface.
func (e *Const) Build(kids []Expr) Expr { return e }

func (e *Const) String() string { return fmt.Sprintf("(CONST %d)", e.Value) }

// Name is the address of a symbolic label.
type Name struct {
	Label temp.Label
}

// Kids implementation for the Expr interface.
func (e *Name) Kids() []Expr { return nil }

// Build implementation for the Expr interface.
func (e *Name) Build(kids []Expr) Expr { return e }

func (e *Name) String() string { return fmt.Sprintf("(NAME %s)", e.Label) }

// Temp reads a temporary.
type Temp struct {
	Temp temp.Temp
}

// Kids implementation for the Expr interface.
func (e *Temp) Kids() []Expr { return nil }

// Build implementation for the Expr interface.
func (e *Temp) Build(kids []Expr) Expr { return e }

func (e *Temp) String() string { return fmt.Sprintf("(TEMP %s)", e.Temp) }

// Binop applies a binary operator to two operands, evaluated left to right.
type Binop struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Kids implementation for the Expr interface.
func (e *Binop) Kids() []Expr { return []Expr{e.Left, e.Right} }

// Build implementation for the Expr interface.
func (e *Binop) Build(kids []Expr) Expr { return &Binop{e.Op, kids[0], kids[1]} }

func (e *Binop) String() string {
	return fmt.Sprintf("(BINOP %s %s %s)", e.Op, e.Left, e.Right)
}

// Mem reads one machine word from memory at a given address.  When used as the
// destination of a Move, it instead denotes a store to that address.
type Mem struct {
	Addr Expr
}

// Kids implementation for the Expr interface.
func (e *Mem) Kids() []Expr { return []Expr{e.Addr} }

// Build implementation for the Expr interface.
func (e *Mem) Build(kids []Expr) Expr { return &Mem{kids[0]} }

func (e *Mem) String() string { return fmt.Sprintf("(MEM %s)", e.Addr) }

// Call invokes a function with zero or more arguments.  The function
// expression is evaluated first, followed by the arguments from left to right.
type Call struct {
	Func Expr
	Args []Expr
}

// Kids implementation for the Expr interface.
func (e *Call) Kids() []Expr {
	kids := make([]Expr, 0, len(e.Args)+1)
	kids = append(kids, e.Func)
	//
	return append(kids, e.Args...)
}

// Build implementation for the Expr interface.
func (e *Call) Build(kids []Expr) Expr {
	args := make([]Expr, len(kids)-1)
	copy(args, kids[1:])
	//
	return &Call{kids[0], args}
}

func (e *Call) String() string {
	var builder strings.Builder
	//
	builder.WriteString("(CALL ")
	builder.WriteString(e.Func.String())
	//
	for _, arg := range e.Args {
		builder.WriteString(" ")
		builder.WriteString(arg.String())
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// Eseq evaluates a statement for its side effects and then yields the value of
// an expression.  Canonicalisation eliminates every Eseq.
type Eseq struct {
	Stmt Stmt
	Expr Expr
}

// Kids is not applicable to Eseq.
func (e *Eseq) Kids() []Expr { panic("Kids() not applicable to ESEQ") }

// Build is not applicable to Eseq.
func (e *Eseq) Build(kids []Expr) Expr { panic("Build() not applicable to ESEQ") }

func (e *Eseq) String() string { return fmt.Sprintf("(ESEQ %s %s)", e.Stmt, e.Expr) }

// ============================================================================
// Statements
// ============================================================================

// Move writes the value of Src into Dst, which is either a Temp or a Mem.
type Move struct {
	Dst Expr
	Src Expr
}

// Kids implementation for the Stmt interface.  When storing to memory, the
// address is a kid (since it must be evaluated) whilst a temporary destination
// is not.
func (s *Move) Kids() []Expr {
	if m, ok := s.Dst.(*Mem); ok {
		return []Expr{m.Addr, s.Src}
	}
	//
	return []Expr{s.Src}
}

// Build implementation for the Stmt interface.
func (s *Move) Build(kids []Expr) Stmt {
	if _, ok := s.Dst.(*Mem); ok {
		return &Move{&Mem{kids[0]}, kids[1]}
	}
	//
	return &Move{s.Dst, kids[0]}
}

func (s *Move) String() string { return fmt.Sprintf("(MOVE %s %s)", s.Dst, s.Src) }

// Exp evaluates an expression and discards its result.
type Exp struct {
	Expr Expr
}

// Kids implementation for the Stmt interface.
func (s *Exp) Kids() []Expr { return []Expr{s.Expr} }

// Build implementation for the Stmt interface.
func (s *Exp) Build(kids []Expr) Stmt { return &Exp{kids[0]} }

func (s *Exp) String() string { return fmt.Sprintf("(EXP %s)", s.Expr) }

// Jump transfers control to the address computed by Target, which must be one
// of the given labels.
type Jump struct {
	Target  Expr
	Targets []temp.Label
}

// NewJump constructs a jump to a single known label.
func NewJump(label temp.Label) *Jump {
	return &Jump{&Name{label}, []temp.Label{label}}
}

// Kids implementation for the Stmt interface.
func (s *Jump) Kids() []Expr { return []Expr{s.Target} }

// Build implementation for the Stmt interface.
func (s *Jump) Build(kids []Expr) Stmt { return &Jump{kids[0], s.Targets} }

func (s *Jump) String() string {
	var builder strings.Builder
	//
	builder.WriteString("(JUMP ")
	builder.WriteString(s.Target.String())
	//
	for _, l := range s.Targets {
		builder.WriteString(" ")
		builder.WriteString(l.String())
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// CJump compares two expressions and transfers control to True if the
// comparison holds, or to False otherwise.
type CJump struct {
	Op    RelOp
	Left  Expr
	Right Expr
	True  temp.Label
	False temp.Label
}

// Kids implementation for the Stmt interface.
func (s *CJump) Kids() []Expr { return []Expr{s.Left, s.Right} }

// Build implementation for the Stmt interface.
func (s *CJump) Build(kids []Expr) Stmt {
	return &CJump{s.Op, kids[0], kids[1], s.True, s.False}
}

func (s *CJump) String() string {
	return fmt.Sprintf("(CJUMP %s %s %s %s %s)", s.Op, s.Left, s.Right, s.True, s.False)
}

// Seq executes two statements in sequence.  Canonicalisation flattens every
// Seq away.
type Seq struct {
	Left  Stmt
	Right Stmt
}

// SeqOf combines zero or more statements into a right-nested sequence.  The
// empty sequence is represented as a no-op.
func SeqOf(stmts ...Stmt) Stmt {
	switch len(stmts) {
	case 0:
		return &Exp{&Const{0}}
	case 1:
		return stmts[0]
	}
	//
	return &Seq{stmts[0], SeqOf(stmts[1:]...)}
}

// Kids is not applicable to Seq.
func (s *Seq) Kids() []Expr { panic("Kids() not applicable to SEQ") }

// Build is not applicable to Seq.
func (s *Seq) Build(kids []Expr) Stmt { panic("Build() not applicable to SEQ") }

func (s *Seq) String() string { return fmt.Sprintf("(SEQ %s %s)", s.Left, s.Right) }

// Label marks the current position in the code with a label.
type Label struct {
	Label temp.Label
}

// Kids implementation for the Stmt interface.
func (s *Label) Kids() []Expr { return nil }

// Build implementation for the Stmt interface.
func (s *Label) Build(kids []Expr) Stmt { return s }

func (s *Label) String() string { return fmt.Sprintf("(LABEL %s)", s.Label) }
