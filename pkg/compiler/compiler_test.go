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
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/frontend"
	"github.com/consensys/go-mjc/pkg/mips"
	"github.com/consensys/go-mjc/pkg/mips/sim"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
	"github.com/consensys/go-mjc/pkg/util/assert"
	"github.com/consensys/go-mjc/pkg/util/source"
)

const factorial = `
(proc fact (formals false)
	(SEQ
		(CJUMP LE (FORMAL 0) (CONST 1) base recurse)
		(LABEL base)
		(MOVE (TEMP rv) (CONST 1))
		(JUMP done)
		(LABEL recurse)
		(MOVE (TEMP rv) (BINOP MUL (FORMAL 0) (CALL (NAME fact) (BINOP MINUS (FORMAL 0) (CONST 1)))))
		(LABEL done)))
(proc main (formals) (MOVE (TEMP rv) (CALL (NAME fact) (CONST 5))))`

func Test_Compile_01(t *testing.T) {
	check_Run(t, `(proc main (formals)
		(MOVE (TEMP rv) (BINOP MUL (BINOP PLUS (CONST 2) (CONST 3)) (CONST 4))))`, 20, "")
}

func Test_Compile_02(t *testing.T) {
	check_Run(t, `(proc main (formals)
		(SEQ
			(MOVE (TEMP i) (CONST 10))
			(MOVE (TEMP s) (CONST 0))
			(LABEL test)
			(CJUMP GT (TEMP i) (CONST 0) body exit)
			(LABEL body)
			(MOVE (TEMP s) (BINOP PLUS (TEMP s) (TEMP i)))
			(MOVE (TEMP i) (BINOP MINUS (TEMP i) (CONST 1)))
			(JUMP test)
			(LABEL exit)
			(MOVE (TEMP rv) (TEMP s))))`, 55, "")
}

func Test_Compile_03(t *testing.T) {
	check_Run(t, factorial, 120, "")
}

func Test_Compile_04(t *testing.T) {
	// More than four arguments, some passed on the stack.
	check_Run(t, `
		(proc sum6 (formals false false false false false false)
			(MOVE (TEMP rv) (BINOP PLUS (FORMAL 0) (BINOP PLUS (FORMAL 1) (BINOP PLUS (FORMAL 2)
				(BINOP PLUS (FORMAL 3) (BINOP PLUS (FORMAL 4) (BINOP MUL (FORMAL 5) (CONST 10)))))))))
		(proc main (formals)
			(MOVE (TEMP rv) (CALL (NAME sum6) (CONST 1) (CONST 2) (CONST 3) (CONST 4) (CONST 5) (CONST 6))))`,
		75, "")
}

func Test_Compile_05(t *testing.T) {
	// Escaping formals and locals live in the frame.
	check_Run(t, `
		(proc f (formals true false true true true true) (locals (x true))
			(SEQ
				(MOVE (VAR x) (BINOP MINUS (FORMAL 5) (FORMAL 0)))
				(MOVE (TEMP rv) (BINOP PLUS (VAR x) (BINOP MUL (FORMAL 4) (FORMAL 2))))))
		(proc main (formals)
			(MOVE (TEMP rv) (CALL (NAME f) (CONST 1) (CONST 2) (CONST 3) (CONST 4) (CONST 5) (CONST 6))))`,
		20, "")
}

func Test_Compile_06(t *testing.T) {
	check_Run(t, `(proc main (formals)
		(SEQ (EXP (EXTERN printint (CONST 42))) (EXP (EXTERN printint (CONST -7))) (MOVE (TEMP rv) (CONST 0))))`,
		0, "42\n-7\n")
}

func Test_Compile_07(t *testing.T) {
	// Evaluation order is preserved.
	check_Run(t, `(proc main (formals)
		(MOVE (TEMP rv) (BINOP MINUS
			(ESEQ (MOVE (TEMP x) (CONST 10)) (TEMP x))
			(ESEQ (MOVE (TEMP x) (CONST 3)) (TEMP x)))))`, 7, "")
}

func Test_Compile_08(t *testing.T) {
	check_Run(t, `(proc main (formals)
		(SEQ
			(MOVE (TEMP p) (EXTERN halloc (CONST 8)))
			(MOVE (MEM (TEMP p)) (CONST 5))
			(MOVE (MEM (BINOP PLUS (TEMP p) (CONST 4))) (CONST 6))
			(MOVE (TEMP rv) (BINOP MUL (MEM (TEMP p)) (MEM (BINOP PLUS (TEMP p) (CONST 4)))))))`, 30, "")
}

func Test_Compile_09(t *testing.T) {
	// String literals are preceded by their length.
	program, text := check_Compile(t, `(data msg "hello") (proc main (formals) (MOVE (TEMP rv) (NAME msg)))`,
		DefaultConfig())
	//
	assert.Equal(t, 1, len(program.Data))
	assert.True(t, strings.Contains(text, "\t.asciiz \"hello\"\n"))
	//
	simulator, addr := check_Simulate(t, text, "main", "")
	length, err := simulator.Load(uint32(addr) - 4)
	//
	assert.NoError(t, err)
	assert.Equal(t, 5, length)
}

func Test_Compile_10(t *testing.T) {
	// Without coalescing, every move is kept.
	config := DefaultConfig()
	config.Coalesce = false
	//
	check_RunConfig(t, factorial, config, 120, "")
}

func Test_Compile_11(t *testing.T) {
	// More live values than registers forces spilling.
	text, expected := spillProgram(40)
	program, _ := check_Run(t, text, expected, "")
	//
	alloc := program.Method("main").Allocation
	assert.True(t, alloc.Rounds > 1)
	assert.True(t, len(alloc.Spilled) > 0)
}

func Test_Compile_12(t *testing.T) {
	text, expected := spillProgram(60)
	config := DefaultConfig()
	config.Coalesce = false
	//
	check_RunConfig(t, text, config, expected, "")
}

// Calls which are the value of an ESEQ, both as an operand and an argument.
func Test_Compile_13(t *testing.T) {
	check_Run(t, `
(proc g (formals false) (MOVE (TEMP rv) (BINOP MUL (FORMAL 0) (CONST 10))))
(proc main (formals)
	(MOVE (TEMP rv)
		(BINOP PLUS
			(ESEQ (MOVE (TEMP x) (CONST 1)) (CALL (NAME g) (CONST 2)))
			(CALL (NAME g) (ESEQ (MOVE (TEMP x) (BINOP PLUS (TEMP x) (CONST 2))) (CALL (NAME g) (TEMP x)))))))`,
		320, "")
}

// ============================================================================
// Test programs
// ============================================================================

// TestDir determines the (relative) location of the test programs.
const TestDir = "../../testdata/ir"

func Test_Valid_Args(t *testing.T) {
	check_Valid(t, "args")
}

func Test_Valid_Array(t *testing.T) {
	check_Valid(t, "array")
}

func Test_Valid_Bits(t *testing.T) {
	check_Valid(t, "bits")
}

func Test_Valid_Error(t *testing.T) {
	check_Valid(t, "error")
}

func Test_Valid_Fact(t *testing.T) {
	check_Valid(t, "fact")
}

func Test_Valid_Fib(t *testing.T) {
	check_Valid(t, "fib")
}

func Test_Valid_Gcd(t *testing.T) {
	check_Valid(t, "gcd")
}

func Test_Valid_Strings(t *testing.T) {
	check_Valid(t, "strings")
}

// ============================================================================
// Errors
// ============================================================================

func Test_CompileError_01(t *testing.T) {
	var (
		factory = temp.NewFactory()
		machine = mips.NewMachine(factory)
		f       = machine.NewFrame("f", nil)
		body    = &tree.Move{Dst: &tree.Const{Value: 1}, Src: &tree.Const{Value: 2}}
		ierr    *InternalError
	)
	//
	_, err := New(machine, factory, DefaultConfig()).Compile([]frame.Fragment{&frame.ProcFragment{Body: body, Frame: f}})
	//
	assert.True(t, errors.As(err, &ierr))
	assert.Equal(t, "f", ierr.Method)
	assert.Equal(t, StageSelection, ierr.Stage)
}

func Test_CompileError_02(t *testing.T) {
	text, _ := spillProgram(40)
	config := DefaultConfig()
	config.MaxSpillRounds = 1
	//
	_, err := compile(text, config)
	//
	assert.True(t, err != nil)
	assert.True(t, strings.Contains(err.Error(), "failed after 1 rounds"))
}

func Test_CompileError_03(t *testing.T) {
	var (
		factory = temp.NewFactory()
		machine = mips.NewMachine(factory)
		bad     = &tree.Move{Dst: &tree.Name{Label: temp.NamedLabel("x")}, Src: &tree.Const{Value: 1}}
		good    = &tree.Move{Dst: &tree.Temp{Temp: machine.Reg(mips.V0)}, Src: &tree.Const{Value: 1}}
		frags   = []frame.Fragment{
			&frame.ProcFragment{Body: bad, Frame: machine.NewFrame("f", nil)},
			&frame.ProcFragment{Body: good, Frame: machine.NewFrame("g", nil)},
			&frame.ProcFragment{Body: bad, Frame: machine.NewFrame("h", nil)},
		}
	)
	// Both bad methods are reported.
	_, err := New(machine, factory, DefaultConfig()).Compile(frags)
	//
	assert.True(t, err != nil)
	assert.True(t, strings.Contains(err.Error(), "compiling f"))
	assert.False(t, strings.Contains(err.Error(), "compiling g"))
	assert.True(t, strings.Contains(err.Error(), "compiling h"))
}

// ============================================================================
// Helpers
// ============================================================================

// spillProgram constructs a method which holds n values live at once, then sums
// them.
func spillProgram(n int) (string, int32) {
	var (
		builder  strings.Builder
		expected int32
		sum      = "(CONST 0)"
	)
	//
	builder.WriteString("(proc main (formals) (SEQ\n")
	//
	for i := 1; i <= n; i++ {
		builder.WriteString(fmt.Sprintf("\t(MOVE (TEMP a%d) (CONST %d))\n", i, i*i))
		sum = fmt.Sprintf("(BINOP PLUS (TEMP a%d) %s)", i, sum)
		expected += int32(i * i)
	}
	//
	builder.WriteString(fmt.Sprintf("\t(MOVE (TEMP rv) %s)))\n", sum))
	//
	return builder.String(), expected
}

func compile(text string, config Config) (*Program, error) {
	var (
		factory = temp.NewFactory()
		machine = mips.NewMachine(factory)
		srcfile = source.NewSourceFile("test.ir", []byte(text))
	)
	//
	fragments, errs := frontend.Read(srcfile, machine, factory)
	if len(errs) > 0 {
		return nil, &errs[0]
	}
	//
	return New(machine, factory, config).Compile(fragments)
}

func check_Compile(t *testing.T, text string, config Config) (*Program, string) {
	var buf bytes.Buffer
	//
	program, err := compile(text, config)
	if err != nil {
		t.Fatal(err.Error())
	}
	//
	assert.NoError(t, program.Emit(&buf))
	//
	return program, buf.String()
}

func check_Run(t *testing.T, text string, expected int32, output string) (*Program, string) {
	return check_RunConfig(t, text, DefaultConfig(), expected, output)
}

func check_RunConfig(t *testing.T, text string, config Config, expected int32, output string) (*Program,
	string) {
	program, asm := check_Compile(t, text, config)
	_, result := check_Simulate(t, asm, "main", output)
	//
	if result != expected {
		t.Fatalf("expected %d, got %d\n%s", expected, result, asm)
	}
	//
	return program, asm
}

// check_Valid compiles and runs a program from the test directory, both with
// and without coalescing, comparing its output against the expected output.
func check_Valid(t *testing.T, name string) {
	text, err := os.ReadFile(filepath.Join(TestDir, name+".ir"))
	if err != nil {
		t.Fatal(err)
	}
	//
	expected, err := os.ReadFile(filepath.Join(TestDir, name+".out"))
	if err != nil {
		t.Fatal(err)
	}
	//
	for _, coalesce := range []bool{true, false} {
		config := DefaultConfig()
		config.Coalesce = coalesce
		_, asm := check_Compile(t, string(text), config)
		//
		check_Simulate(t, asm, "main", string(expected))
	}
}

// check_Simulate assembles and runs a program, checking its output and that the
// stack pointer is restored.
func check_Simulate(t *testing.T, text string, entry string, output string) (*sim.Simulator, int32) {
	var out bytes.Buffer
	//
	prog, err := sim.Assemble(text)
	if err != nil {
		t.Fatalf("%s\n%s", err.Error(), text)
	}
	//
	simulator := sim.New(prog, &out)
	result, err := simulator.Call(entry)
	//
	if err != nil {
		t.Fatalf("%s\n%s", err.Error(), text)
	}
	//
	assert.Equal(t, output, out.String())
	// A program which exits early leaves its frames on the stack.
	if !simulator.Halted() {
		assert.Equal(t, int32(sim.StackTop), simulator.Reg(mips.SP))
	}
	//
	return simulator, result
}
