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
package canon

import (
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
)

// Canon rewrites IR trees into canonical form.  In canonical form there are no
// Seq or Eseq nodes, and every Call occurs either as the immediate child of an
// Exp statement, or as the source of a Move into a temporary.  The order in
// which side effects occur is preserved.
type Canon struct {
	factory *temp.Factory
}

// New constructs a canonicaliser which allocates fresh temporaries and labels
// from the given factory.
func New(factory *temp.Factory) *Canon {
	return &Canon{factory}
}

// Linearize converts a statement into an equivalent list of canonical
// statements.
func (p *Canon) Linearize(s tree.Stmt) []tree.Stmt {
	return linear(p.doStmt(s), nil)
}

// ============================================================================
// Statements
// ============================================================================

// moveCall represents a move of a call's result directly into a temporary.
// Treating this as a single statement means the call is not pulled out into a
// separate temporary first.
type moveCall struct {
	dst *tree.Temp
	src *tree.Call
}

func (s *moveCall) Kids() []tree.Expr { return s.src.Kids() }

func (s *moveCall) Build(kids []tree.Expr) tree.Stmt {
	return &tree.Move{Dst: s.dst, Src: s.src.Build(kids)}
}

func (s *moveCall) String() string { return (&tree.Move{Dst: s.dst, Src: s.src}).String() }

// expCall represents a call whose result is discarded.
type expCall struct {
	call *tree.Call
}

func (s *expCall) Kids() []tree.Expr { return s.call.Kids() }

func (s *expCall) Build(kids []tree.Expr) tree.Stmt {
	return &tree.Exp{Expr: s.call.Build(kids)}
}

func (s *expCall) String() string { return (&tree.Exp{Expr: s.call}).String() }

func (p *Canon) doStmt(s tree.Stmt) tree.Stmt {
	switch s := s.(type) {
	case *tree.Seq:
		return seq(p.doStmt(s.Left), p.doStmt(s.Right))
	case *tree.Move:
		return p.doMove(s)
	case *tree.Exp:
		if call, ok := s.Expr.(*tree.Call); ok {
			return p.reorderStmt(&expCall{call})
		}
		//
		return p.reorderStmt(s)
	default:
		return p.reorderStmt(s)
	}
}

func (p *Canon) doMove(s *tree.Move) tree.Stmt {
	dst, isTemp := s.Dst.(*tree.Temp)
	call, isCall := s.Src.(*tree.Call)
	//
	if isTemp && isCall {
		return p.reorderStmt(&moveCall{dst, call})
	} else if eseq, ok := s.Dst.(*tree.Eseq); ok {
		return p.doStmt(&tree.Seq{Left: eseq.Stmt, Right: &tree.Move{Dst: eseq.Expr, Src: s.Src}})
	}
	//
	return p.reorderStmt(s)
}

func (p *Canon) reorderStmt(s tree.Stmt) tree.Stmt {
	stmt, exprs := p.reorder(s.Kids())
	return seq(stmt, s.Build(exprs))
}

// ============================================================================
// Expressions
// ============================================================================

// doExpr canonicalises an expression, producing a statement which must be
// executed first and a side-effect free expression yielding the value.
func (p *Canon) doExpr(e tree.Expr) (tree.Stmt, tree.Expr) {
	if eseq, ok := e.(*tree.Eseq); ok {
		stmts := p.doStmt(eseq.Stmt)
		s, expr := p.doExpr(eseq.Expr)
		//
		return seq(stmts, s), expr
	}
	//
	stmt, exprs := p.reorder(e.Kids())
	//
	return stmt, e.Build(exprs)
}

// reorder canonicalises a list of expressions, producing a single statement
// which must be executed first and a list of side-effect free expressions
// which then yield the values of the originals.  Any expression whose value
// could be changed by a later side effect is first saved in a fresh
// temporary.
func (p *Canon) reorder(exprs []tree.Expr) (tree.Stmt, []tree.Expr) {
	if len(exprs) == 0 {
		return nop(), nil
	}
	//
	head := exprs[0]
	//
	if call, ok := head.(*tree.Call); ok {
		// Calls may clobber any temporary, hence their results are saved
		// immediately.
		t := &tree.Temp{Temp: p.factory.NewTemp()}
		eseq := &tree.Eseq{Stmt: &tree.Move{Dst: t, Src: call}, Expr: t}
		//
		return p.reorder(append([]tree.Expr{eseq}, exprs[1:]...))
	}
	//
	headStmt, headExpr := p.doExpr(head)
	// The value of an Eseq may itself be a call.
	if call, ok := headExpr.(*tree.Call); ok {
		t := &tree.Temp{Temp: p.factory.NewTemp()}
		headStmt, headExpr = seq(headStmt, &tree.Move{Dst: t, Src: call}), t
	}
	//
	restStmt, restExprs := p.reorder(exprs[1:])
	//
	if commute(restStmt, headExpr) {
		return seq(headStmt, restStmt), append([]tree.Expr{headExpr}, restExprs...)
	}
	// Freeze value before later side effects can change it.
	t := &tree.Temp{Temp: p.factory.NewTemp()}
	stmt := seq(headStmt, seq(&tree.Move{Dst: t, Src: headExpr}, restStmt))
	//
	return stmt, append([]tree.Expr{t}, restExprs...)
}

// ============================================================================
// Helpers
// ============================================================================

func nop() tree.Stmt {
	return &tree.Exp{Expr: &tree.Const{Value: 0}}
}

// IsNop checks whether a statement has no effect, which is the case for an Exp
// of a constant.
func IsNop(s tree.Stmt) bool {
	if e, ok := s.(*tree.Exp); ok {
		_, ok = e.Expr.(*tree.Const)
		return ok
	}
	//
	return false
}

// seq composes two statements, eliding either if it is a no-op.
func seq(a, b tree.Stmt) tree.Stmt {
	if IsNop(a) {
		return b
	} else if IsNop(b) {
		return a
	}
	//
	return &tree.Seq{Left: a, Right: b}
}

// commute checks whether executing a statement could change the value of an
// expression.  This is conservative: it only holds when the statement does
// nothing, or the expression is a constant (or address).
func commute(s tree.Stmt, e tree.Expr) bool {
	if IsNop(s) {
		return true
	}
	//
	switch e.(type) {
	case *tree.Const, *tree.Name:
		return true
	default:
		return false
	}
}

// linear flattens nested sequences into a list, left-then-right.
func linear(s tree.Stmt, stmts []tree.Stmt) []tree.Stmt {
	if seq, ok := s.(*tree.Seq); ok {
		return linear(seq.Right, linear(seq.Left, stmts))
	}
	//
	return append(stmts, s)
}
