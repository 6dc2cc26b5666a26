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
	"strconv"
	"unicode"

	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
	"github.com/consensys/go-mjc/pkg/util/source"
	"github.com/consensys/go-mjc/pkg/util/source/sexp"
)

// Read parses a source file of IR fragments written as S-expressions.  Each
// top-level term is either a procedure or a string literal:
//
//	(proc NAME (formals BOOL...) [(locals (ID BOOL)...)] STMT)
//	(data LABEL "text")
//
// Procedure frames are created by the given machine, and temporaries named in
// the text are allocated from the given factory.  Every error found is
// reported, rather than stopping at the first.
func Read(srcfile *source.File, machine frame.Machine, factory *temp.Factory) ([]frame.Fragment,
	[]source.SyntaxError) {
	//
	terms, srcmap, err := sexp.ParseAll(srcfile)
	if err != nil {
		return nil, []source.SyntaxError{*err}
	}
	//
	var (
		reader    = NewReader(srcmap, machine, factory)
		fragments []frame.Fragment
		errors    []source.SyntaxError
	)
	//
	for _, term := range terms {
		fragment, err := reader.ReadFragment(term)
		//
		if err != nil {
			errors = append(errors, *err)
		} else {
			fragments = append(fragments, fragment)
		}
	}
	//
	return fragments, errors
}

// Reader translates S-expressions into IR fragments.  A reader remembers every
// global label it has seen, so that procedures and data items cannot collide.
type Reader struct {
	srcmap  *source.Map[sexp.SExp]
	machine frame.Machine
	factory *temp.Factory
	// Labels defined so far, including procedure names and data labels.
	labels map[string]bool
}

// NewReader constructs a reader which reports errors against a given source
// map.
func NewReader(srcmap *source.Map[sexp.SExp], machine frame.Machine, factory *temp.Factory) *Reader {
	return &Reader{srcmap, machine, factory, make(map[string]bool)}
}

// ReadFragment translates a single top-level term.
func (p *Reader) ReadFragment(term sexp.SExp) (frame.Fragment, *source.SyntaxError) {
	l := term.AsList()
	//
	switch {
	case l == nil:
		return nil, p.srcmap.SyntaxError(term, "expected proc or data declaration")
	case l.Head() == "proc":
		return p.readProc(l)
	case l.Head() == "data":
		return p.readData(l)
	default:
		return nil, p.srcmap.SyntaxError(term, "unknown declaration")
	}
}

func (p *Reader) readData(l *sexp.List) (frame.Fragment, *source.SyntaxError) {
	if l.Len() != 3 || l.Get(2).AsString() == nil {
		return nil, p.srcmap.SyntaxError(l, "malformed data declaration")
	}
	//
	label, err := p.defineLabel(l.Get(1))
	if err != nil {
		return nil, err
	}
	//
	return &frame.DataFragment{Label: label, Data: l.Get(2).AsString().Value}, nil
}

func (p *Reader) readProc(l *sexp.List) (frame.Fragment, *source.SyntaxError) {
	var locals *sexp.List
	//
	if l.Len() == 5 {
		locals = l.Get(3).AsList()
		//
		if locals == nil || locals.Head() != "locals" {
			return nil, p.srcmap.SyntaxError(l.Get(3), "malformed locals declaration")
		}
	} else if l.Len() != 4 {
		return nil, p.srcmap.SyntaxError(l, "malformed proc declaration")
	}
	//
	name, err := p.defineLabel(l.Get(1))
	if err != nil {
		return nil, err
	}
	//
	escapes, err := p.readFormals(l.Get(2))
	if err != nil {
		return nil, err
	}
	//
	env := &procEnv{
		frame:  p.machine.NewFrame(name.Name(), escapes),
		temps:  make(map[string]temp.Temp),
		locals: make(map[string]frame.Access),
	}
	//
	if locals != nil {
		if err = p.readLocals(env, locals); err != nil {
			return nil, err
		}
	}
	//
	body, err := p.readStmt(env, l.Get(l.Len()-1))
	if err != nil {
		return nil, err
	}
	//
	return &frame.ProcFragment{Body: body, Frame: env.frame}, nil
}

func (p *Reader) readFormals(term sexp.SExp) ([]bool, *source.SyntaxError) {
	l := term.AsList()
	//
	if l == nil || l.Head() != "formals" {
		return nil, p.srcmap.SyntaxError(term, "malformed formals declaration")
	}
	//
	escapes := make([]bool, l.Len()-1)
	//
	for i, e := range l.Elements[1:] {
		b, err := p.readBool(e)
		if err != nil {
			return nil, err
		}
		//
		escapes[i] = b
	}
	//
	return escapes, nil
}

func (p *Reader) readLocals(env *procEnv, l *sexp.List) *source.SyntaxError {
	for _, e := range l.Elements[1:] {
		local := e.AsList()
		//
		if local == nil || local.Len() != 2 || !isIdentifier(local.Get(0)) {
			return p.srcmap.SyntaxError(e, "malformed local declaration")
		}
		//
		id := local.Get(0).AsSymbol().Value
		if _, ok := env.locals[id]; ok {
			return p.srcmap.SyntaxError(local.Get(0), "duplicate local")
		}
		//
		escape, err := p.readBool(local.Get(1))
		if err != nil {
			return err
		}
		//
		env.locals[id] = env.frame.AllocLocal(escape)
	}
	//
	return nil
}

func (p *Reader) readBool(term sexp.SExp) (bool, *source.SyntaxError) {
	if s := term.AsSymbol(); s != nil {
		switch s.Value {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	//
	return false, p.srcmap.SyntaxError(term, "expected true or false")
}

// ============================================================================
// Labels
// ============================================================================

// defineLabel reads a label which is being defined, reporting an error if it
// was already defined.
func (p *Reader) defineLabel(term sexp.SExp) (temp.Label, *source.SyntaxError) {
	label, err := p.readLabel(term)
	//
	if err != nil {
		return label, err
	} else if p.labels[label.Name()] {
		return label, p.srcmap.SyntaxError(term, "duplicate label")
	}
	//
	p.labels[label.Name()] = true
	//
	return label, nil
}

func (p *Reader) readLabel(term sexp.SExp) (temp.Label, *source.SyntaxError) {
	if !isIdentifier(term) {
		return temp.Label{}, p.srcmap.SyntaxError(term, "invalid label")
	}
	//
	name := term.AsSymbol().Value
	// Labels of the form L<n> are allocated by the factory.
	if isGeneratedLabel(name) {
		return temp.Label{}, p.srcmap.SyntaxError(term, "reserved label")
	}
	//
	return p.factory.NamedLabel(name), nil
}

func isGeneratedLabel(name string) bool {
	if len(name) < 2 || name[0] != 'L' {
		return false
	}
	//
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	//
	return true
}

func isIdentifier(term sexp.SExp) bool {
	s := term.AsSymbol()
	if s == nil || s.Value == "" {
		return false
	}
	//
	for i, c := range s.Value {
		switch {
		case unicode.IsLetter(c), c == '_':
		case i > 0 && (unicode.IsDigit(c) || c == '.' || c == '$'):
		default:
			return false
		}
	}
	//
	return true
}

// ============================================================================
// Helpers
// ============================================================================

// procEnv holds the names visible within a procedure body.
type procEnv struct {
	frame frame.Frame
	// Temporaries named in the text, each mapped to a fresh temporary.
	temps  map[string]temp.Temp
	locals map[string]frame.Access
}

func (p *procEnv) fp() tree.Expr {
	return &tree.Temp{Temp: p.frame.FP()}
}

func (p *Reader) readInt(term sexp.SExp) (int64, *source.SyntaxError) {
	if s := term.AsSymbol(); s != nil {
		if v, err := strconv.ParseInt(s.Value, 0, 32); err == nil {
			return v, nil
		}
	}
	//
	return 0, p.srcmap.SyntaxError(term, "expected 32-bit integer")
}
