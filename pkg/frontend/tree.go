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
package frontend

import (
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
	"github.com/consensys/go-mjc/pkg/util/source"
	"github.com/consensys/go-mjc/pkg/util/source/sexp"
)

// ============================================================================
// Statements
// ============================================================================

func (p *Reader) readStmt(env *procEnv, term sexp.SExp) (tree.Stmt, *source.SyntaxError) {
	l := term.AsList()
	//
	if l == nil {
		return nil, p.srcmap.SyntaxError(term, "expected statement")
	}
	//
	switch l.Head() {
	case "MOVE":
		return p.readMove(env, l)
	case "EXP":
		if l.Len() != 2 {
			return nil, p.srcmap.SyntaxError(l, "malformed EXP")
		}
		//
		e, err := p.readExpr(env, l.Get(1))
		//
		return &tree.Exp{Expr: e}, err
	case "JUMP":
		return p.readJump(env, l)
	case "CJUMP":
		return p.readCJump(env, l)
	case "SEQ":
		stmts := make([]tree.Stmt, l.Len()-1)
		//
		for i, e := range l.Elements[1:] {
			s, err := p.readStmt(env, e)
			if err != nil {
				return nil, err
			}
			//
			stmts[i] = s
		}
		//
		return tree.SeqOf(stmts...), nil
	case "LABEL":
		if l.Len() != 2 {
			return nil, p.srcmap.SyntaxError(l, "malformed LABEL")
		}
		//
		label, err := p.defineLabel(l.Get(1))
		//
		return &tree.Label{Label: label}, err
	}
	//
	return nil, p.srcmap.SyntaxError(term, "unknown statement")
}

func (p *Reader) readMove(env *procEnv, l *sexp.List) (tree.Stmt, *source.SyntaxError) {
	if l.Len() != 3 {
		return nil, p.srcmap.SyntaxError(l, "malformed MOVE")
	}
	//
	dst, err := p.readExpr(env, l.Get(1))
	if err != nil {
		return nil, err
	}
	//
	switch d := dst.(type) {
	case *tree.Temp:
		if d.Temp == env.frame.FP() {
			return nil, p.srcmap.SyntaxError(l.Get(1), "assignment to frame pointer")
		}
	case *tree.Mem, *tree.Eseq:
	default:
		return nil, p.srcmap.SyntaxError(l.Get(1), "invalid move destination")
	}
	//
	src, err := p.readExpr(env, l.Get(2))
	if err != nil {
		return nil, err
	}
	//
	return &tree.Move{Dst: dst, Src: src}, nil
}

// readJump reads either (JUMP LABEL) or (JUMP EXPR LABEL...).
func (p *Reader) readJump(env *procEnv, l *sexp.List) (tree.Stmt, *source.SyntaxError) {
	if l.Len() < 2 {
		return nil, p.srcmap.SyntaxError(l, "malformed JUMP")
	} else if l.Len() == 2 && l.Get(1).AsSymbol() != nil {
		label, err := p.readLabel(l.Get(1))
		if err != nil {
			return nil, err
		}
		//
		return tree.NewJump(label), nil
	}
	//
	target, err := p.readExpr(env, l.Get(1))
	if err != nil {
		return nil, err
	}
	//
	targets := make([]temp.Label, l.Len()-2)
	//
	for i, e := range l.Elements[2:] {
		if targets[i], err = p.readLabel(e); err != nil {
			return nil, err
		}
	}
	//
	if len(targets) == 0 {
		return nil, p.srcmap.SyntaxError(l, "jump has no targets")
	}
	//
	return &tree.Jump{Target: target, Targets: targets}, nil
}

func (p *Reader) readCJump(env *procEnv, l *sexp.List) (tree.Stmt, *source.SyntaxError) {
	if l.Len() != 6 || l.Get(1).AsSymbol() == nil {
		return nil, p.srcmap.SyntaxError(l, "malformed CJUMP")
	}
	//
	op, ok := tree.ParseRelOp(l.Get(1).AsSymbol().Value)
	if !ok {
		return nil, p.srcmap.SyntaxError(l.Get(1), "unknown comparison")
	}
	//
	left, err := p.readExpr(env, l.Get(2))
	if err != nil {
		return nil, err
	}
	//
	right, err := p.readExpr(env, l.Get(3))
	if err != nil {
		return nil, err
	}
	//
	t, err := p.readLabel(l.Get(4))
	if err != nil {
		return nil, err
	}
	//
	f, err := p.readLabel(l.Get(5))
	if err != nil {
		return nil, err
	}
	//
	return &tree.CJump{Op: op, Left: left, Right: right, True: t, False: f}, nil
}

// ============================================================================
// Expressions
// ============================================================================

func (p *Reader) readExpr(env *procEnv, term sexp.SExp) (tree.Expr, *source.SyntaxError) {
	l := term.AsList()
	//
	if l == nil || l.Len() < 2 {
		return nil, p.srcmap.SyntaxError(term, "expected expression")
	}
	//
	switch l.Head() {
	case "CONST":
		v, err := p.readArity(l, 2, "CONST")
		if err == nil {
			var n int64
			n, err = p.readInt(v[0])
			//
			return &tree.Const{Value: int32(n)}, err
		}
		//
		return nil, err
	case "NAME":
		v, err := p.readArity(l, 2, "NAME")
		if err == nil {
			var label temp.Label
			label, err = p.readLabel(v[0])
			//
			return &tree.Name{Label: label}, err
		}
		//
		return nil, err
	case "TEMP":
		return p.readTemp(env, l)
	case "BINOP":
		return p.readBinop(env, l)
	case "MEM":
		v, err := p.readArity(l, 2, "MEM")
		if err == nil {
			var addr tree.Expr
			addr, err = p.readExpr(env, v[0])
			//
			return &tree.Mem{Addr: addr}, err
		}
		//
		return nil, err
	case "CALL":
		fn, err := p.readExpr(env, l.Get(1))
		if err != nil {
			return nil, err
		}
		//
		args, err := p.readExprs(env, l.Elements[2:])
		//
		return &tree.Call{Func: fn, Args: args}, err
	case "ESEQ":
		v, err := p.readArity(l, 3, "ESEQ")
		if err != nil {
			return nil, err
		}
		//
		s, err := p.readStmt(env, v[0])
		if err != nil {
			return nil, err
		}
		//
		e, err := p.readExpr(env, v[1])
		//
		return &tree.Eseq{Stmt: s, Expr: e}, err
	case "FORMAL":
		return p.readFormal(env, l)
	case "VAR":
		v, err := p.readArity(l, 2, "VAR")
		if err != nil {
			return nil, err
		} else if v[0].AsSymbol() == nil {
			return nil, p.srcmap.SyntaxError(v[0], "invalid local")
		} else if access, ok := env.locals[v[0].AsSymbol().Value]; ok {
			return access.Exp(env.fp()), nil
		}
		//
		return nil, p.srcmap.SyntaxError(v[0], "unknown local")
	case "EXTERN":
		if !isIdentifier(l.Get(1)) {
			return nil, p.srcmap.SyntaxError(l.Get(1), "invalid runtime function")
		}
		//
		args, err := p.readExprs(env, l.Elements[2:])
		if err != nil {
			return nil, err
		}
		//
		return env.frame.ExternalCall(l.Get(1).AsSymbol().Value, args), nil
	}
	//
	return nil, p.srcmap.SyntaxError(term, "unknown expression")
}

func (p *Reader) readExprs(env *procEnv, terms []sexp.SExp) ([]tree.Expr, *source.SyntaxError) {
	exprs := make([]tree.Expr, len(terms))
	//
	for i, e := range terms {
		expr, err := p.readExpr(env, e)
		if err != nil {
			return nil, err
		}
		//
		exprs[i] = expr
	}
	//
	return exprs, nil
}

// readTemp reads a named temporary.  The names fp and rv denote the frame
// pointer and return value register, whilst any other name is mapped to a
// fresh temporary on first use.
func (p *Reader) readTemp(env *procEnv, l *sexp.List) (tree.Expr, *source.SyntaxError) {
	v, err := p.readArity(l, 2, "TEMP")
	if err != nil {
		return nil, err
	} else if !isIdentifier(v[0]) {
		return nil, p.srcmap.SyntaxError(v[0], "invalid temporary")
	}
	//
	switch name := v[0].AsSymbol().Value; name {
	case "fp":
		return env.fp(), nil
	case "rv":
		return &tree.Temp{Temp: env.frame.RV()}, nil
	default:
		t, ok := env.temps[name]
		//
		if !ok {
			t = p.factory.NewTemp()
			env.temps[name] = t
		}
		//
		return &tree.Temp{Temp: t}, nil
	}
}

func (p *Reader) readBinop(env *procEnv, l *sexp.List) (tree.Expr, *source.SyntaxError) {
	v, err := p.readArity(l, 4, "BINOP")
	if err != nil {
		return nil, err
	} else if v[0].AsSymbol() == nil {
		return nil, p.srcmap.SyntaxError(v[0], "expected operator")
	}
	//
	op, ok := tree.ParseBinaryOp(v[0].AsSymbol().Value)
	if !ok {
		return nil, p.srcmap.SyntaxError(v[0], "unknown operator")
	}
	//
	left, err := p.readExpr(env, v[1])
	if err != nil {
		return nil, err
	}
	//
	right, err := p.readExpr(env, v[2])
	if err != nil {
		return nil, err
	}
	//
	return &tree.Binop{Op: op, Left: left, Right: right}, nil
}

func (p *Reader) readFormal(env *procEnv, l *sexp.List) (tree.Expr, *source.SyntaxError) {
	v, err := p.readArity(l, 2, "FORMAL")
	if err != nil {
		return nil, err
	}
	//
	i, err := p.readInt(v[0])
	if err != nil {
		return nil, err
	}
	//
	formals := env.frame.Formals()
	if i < 0 || i >= int64(len(formals)) {
		return nil, p.srcmap.SyntaxError(v[0], "formal index out of bounds")
	}
	//
	return formals[i].Exp(env.fp()), nil
}

// readArity checks a list has exactly n elements, returning those after the
// head.
func (p *Reader) readArity(l *sexp.List, n int, what string) ([]sexp.SExp, *source.SyntaxError) {
	if l.Len() != n {
		return nil, p.srcmap.SyntaxError(l, "malformed "+what)
	}
	//
	return l.Elements[1:], nil
}
