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
	"testing"

	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/mips"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
	"github.com/consensys/go-mjc/pkg/util/assert"
	"github.com/consensys/go-mjc/pkg/util/source"
)

func Test_Read_01(t *testing.T) {
	procs, _ := check_Read(t, `(proc main (formals)
		(MOVE (TEMP rv) (BINOP MUL (BINOP PLUS (CONST 2) (CONST 3)) (CONST 4))))`, 1)
	//
	assert.Equal(t, "main", procs[0].Frame.Name().Name())
	check_Result(t, procs[0], nil, 20)
}

func Test_Read_02(t *testing.T) {
	_, data := check_Read(t, `(data msg "hi\n") (data empty "")`, 0)
	//
	assert.Equal(t, 2, len(data))
	assert.Equal(t, "msg", data[0].Label.Name())
	assert.Equal(t, "hi\n", data[0].Data)
	assert.Equal(t, "", data[1].Data)
}

func Test_Read_03(t *testing.T) {
	procs, _ := check_Read(t, `(proc f (formals false true) (locals (x true) (y false))
		(SEQ
			(MOVE (VAR x) (FORMAL 0))
			(MOVE (VAR y) (FORMAL 1))
			(MOVE (TEMP rv) (BINOP PLUS (VAR x) (VAR y)))))`, 1)
	//
	var (
		f       = procs[0].Frame
		formals = f.Formals()
	)
	// Second formal escapes, so lives at the first slot, and x at the next.
	assert.Equal(t, "-4", formals[1].String())
	assert.Equal(t, "(MEM (BINOP PLUS (TEMP "+f.FP().String()+") (CONST -8)))",
		tree.Flatten(procs[0].Body)[0].(*tree.Move).Dst.String())
	//
	check_Result(t, procs[0], func(interp *tree.Interpreter) {
		interp.Temps[f.FP()] = 1000
		interp.Temps[formals[0].(*frame.InReg).Temp] = 3
		interp.Memory[996] = 4
	}, 7)
}

func Test_Read_04(t *testing.T) {
	procs, _ := check_Read(t, `(proc f (formals)
		(SEQ (MOVE (TEMP a) (CONST 1)) (MOVE (TEMP b) (CONST 2)) (MOVE (TEMP rv) (TEMP a))))`, 1)
	//
	check_Result(t, procs[0], nil, 1)
}

func Test_Read_05(t *testing.T) {
	procs, _ := check_Read(t, `(proc sum (formals)
		(SEQ
			(MOVE (TEMP i) (CONST 10))
			(MOVE (TEMP s) (CONST 0))
			(LABEL test)
			(CJUMP GT (TEMP i) (CONST 0) body done)
			(LABEL body)
			(MOVE (TEMP s) (BINOP PLUS (TEMP s) (TEMP i)))
			(MOVE (TEMP i) (BINOP MINUS (TEMP i) (CONST 1)))
			(JUMP test)
			(LABEL done)
			(MOVE (TEMP rv) (TEMP s))))`, 1)
	//
	check_Result(t, procs[0], nil, 55)
}

func Test_Read_06(t *testing.T) {
	procs, _ := check_Read(t, `(proc f (formals) (EXP (EXTERN printint (CONST 5))))`, 1)
	//
	assert.Equal(t, "(EXP (CALL (NAME _printint) (CONST 5)))", procs[0].Body.String())
}

func Test_Read_07(t *testing.T) {
	procs, _ := check_Read(t, `(proc f (formals)
		(SEQ (JUMP (NAME a) a b) (LABEL a) (LABEL b) (MOVE (TEMP rv) (CONST 0x10))))`, 1)
	//
	check_Result(t, procs[0], nil, 16)
}

func Test_Read_08(t *testing.T) {
	// Procedures, data and calls between them.
	procs, data := check_Read(t, `
		; a comment
		(proc g (formals false) (MOVE (TEMP rv) (BINOP MUL (FORMAL 0) (CONST 2))))
		(data s "abc")
		(proc f (formals) (MOVE (TEMP rv) (CALL (NAME g) (CONST -21))))`, 2)
	//
	assert.Equal(t, 1, len(data))
	assert.Equal(t, "f", procs[1].Frame.Name().Name())
	//
	check_Result(t, procs[1], func(interp *tree.Interpreter) {
		interp.Functions[temp.NamedLabel("g")] = func(_ *tree.Interpreter, args []int32) int32 {
			return args[0] * 2
		}
	}, -42)
}

// ============================================================================
// Errors
// ============================================================================

func Test_ReadError_01(t *testing.T) {
	check_ReadError(t, `(proc L1 (formals) (EXP (CONST 0)))`, "reserved label")
}

func Test_ReadError_02(t *testing.T) {
	check_ReadError(t, `(proc f (formals maybe) (EXP (CONST 0)))`, "expected true or false")
}

func Test_ReadError_03(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (MOVE (CONST 1) (CONST 2)))`, "invalid move destination")
}

func Test_ReadError_04(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (MOVE (TEMP fp) (CONST 2)))`, "assignment to frame pointer")
}

func Test_ReadError_05(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (EXP (VAR x)))`, "unknown local")
}

func Test_ReadError_06(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (EXP (FORMAL 0)))`, "formal index out of bounds")
}

func Test_ReadError_07(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (EXP (BINOP POW (CONST 1) (CONST 2))))`, "unknown operator")
}

func Test_ReadError_08(t *testing.T) {
	check_ReadError(t, `(data s "a") (data s "b")`, "duplicate label")
}

func Test_ReadError_09(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (EXP (CONST 99999999999)))`, "expected 32-bit integer")
}

func Test_ReadError_10(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (CJUMP XX (CONST 1) (CONST 2) a b))`, "unknown comparison")
}

func Test_ReadError_11(t *testing.T) {
	check_ReadError(t, `(foo)`, "unknown declaration")
}

func Test_ReadError_12(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (EXP (CONST 0))`, "unexpected end-of-file")
}

func Test_ReadError_13(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (SEQ (LABEL a) (LABEL a)))`, "duplicate label")
}

func Test_ReadError_14(t *testing.T) {
	check_ReadError(t, `(proc f (formals) (locals (x true) (x false)) (EXP (CONST 0)))`, "duplicate local")
}

func Test_ReadError_15(t *testing.T) {
	// Errors in separate declarations are all reported.
	_, errs := read(`(proc f (formals) (EXP (VAR x))) (proc g (formals) (EXP (VAR y))) (data s "ok")`)
	//
	assert.Equal(t, 2, len(errs))
	assert.Equal(t, "x", errorText(errs[0]))
	assert.Equal(t, "y", errorText(errs[1]))
}

// ============================================================================
// Helpers
// ============================================================================

func read(text string) ([]frame.Fragment, []source.SyntaxError) {
	var (
		factory = temp.NewFactory()
		machine = mips.NewMachine(factory)
		srcfile = source.NewSourceFile("test.ir", []byte(text))
	)
	//
	return Read(srcfile, machine, factory)
}

func check_Read(t *testing.T, text string, nProcs int) ([]*frame.ProcFragment, []*frame.DataFragment) {
	var (
		procs []*frame.ProcFragment
		data  []*frame.DataFragment
	)
	//
	fragments, errs := read(text)
	//
	for _, err := range errs {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	//
	for _, f := range fragments {
		switch f := f.(type) {
		case *frame.ProcFragment:
			procs = append(procs, f)
		case *frame.DataFragment:
			data = append(data, f)
		}
	}
	//
	assert.Equal(t, nProcs, len(procs))
	//
	return procs, data
}

func check_ReadError(t *testing.T, text string, msg string) {
	fragments, errs := read(text)
	//
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %d", len(errs))
	}
	//
	assert.Equal(t, msg, errs[0].Message())
	assert.True(t, len(fragments) < 2)
}

// errorText returns the text on which an error is reported.
func errorText(err source.SyntaxError) string {
	span := err.Span()
	//
	return string(err.SourceFile().Contents()[span.Start():span.End()])
}

// check_Result runs a procedure body with the reference interpreter and checks
// the value left in the return value register.
func check_Result(t *testing.T, proc *frame.ProcFragment, setup func(*tree.Interpreter), expected int32) {
	interp := tree.NewInterpreter()
	//
	if setup != nil {
		setup(interp)
	}
	//
	interp.Run(proc.Body)
	//
	assert.Equal(t, expected, interp.Temps[proc.Frame.RV()])
}
