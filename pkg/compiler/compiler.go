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
	"errors"
	"fmt"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/canon"
	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/regalloc"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
	"github.com/consensys/go-mjc/pkg/util"
	log "github.com/sirupsen/logrus"
)

// Config controls how methods are compiled.
type Config struct {
	// MaxSpillRounds bounds the number of register allocation attempts made
	// for any one method.
	MaxSpillRounds uint
	// Coalesce enables move coalescing during register allocation.
	Coalesce bool
}

// DefaultConfig returns the default compiler configuration.
func DefaultConfig() Config {
	alloc := regalloc.DefaultConfig()
	//
	return Config{MaxSpillRounds: alloc.MaxRounds, Coalesce: alloc.Coalesce}
}

// Stages of the pipeline, as reported by InternalError.
const (
	StageEntryExit    = "entry/exit"
	StageCanonical    = "canonicalisation"
	StageBlocks       = "basic blocks"
	StageSchedule     = "trace scheduling"
	StageSelection    = "instruction selection"
	StageAllocation   = "register allocation"
	StageFinalisation = "prologue/epilogue"
)

// InternalError reports a failure inside the pipeline whilst compiling a given
// method.  Such failures indicate either malformed input trees, or a bug.
type InternalError struct {
	Method string
	Stage  string
	Cause  any
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error compiling %s (%s): %v", e.Method, e.Stage, e.Cause)
}

// Method is a single compiled procedure, retaining the intermediate forms
// produced along the way.
type Method struct {
	Frame frame.Frame
	// Stmts holds the canonical statements in scheduled order.
	Stmts []tree.Stmt
	// Instrs holds the selected instructions before register allocation.
	Instrs []assem.Instr
	// Allocation holds the register assignment, and the final instructions.
	Allocation *regalloc.Allocation
	// Proc is the finished procedure, ready for emission.
	Proc *frame.Proc
}

// Compiler drives fragments through the back end, one method at a time.
type Compiler struct {
	config  Config
	machine frame.Machine
	canon   *canon.Canon
}

// New constructs a compiler for a given machine.  The factory must be the one
// from which the machine (and the fragments being compiled) allocate
// temporaries and labels.
func New(machine frame.Machine, factory *temp.Factory, config Config) *Compiler {
	return &Compiler{config, machine, canon.New(factory)}
}

// Compile translates a list of fragments into a program.  Every method is
// compiled even if an earlier one fails, and all errors are returned together.
func (p *Compiler) Compile(fragments []frame.Fragment) (*Program, error) {
	var (
		program = &Program{machine: p.machine}
		errs    []error
		stats   = util.NewPerfStats()
	)
	//
	for _, fragment := range fragments {
		switch f := fragment.(type) {
		case *frame.ProcFragment:
			method, err := p.CompileMethod(f)
			//
			if err != nil {
				errs = append(errs, err)
			} else {
				program.Methods = append(program.Methods, method)
			}
		case *frame.DataFragment:
			program.Data = append(program.Data, f)
		default:
			panic(fmt.Sprintf("unknown fragment %T", fragment))
		}
	}
	//
	stats.Log(fmt.Sprintf("Compiling %d method(s)", len(program.Methods)))
	//
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	//
	return program, nil
}

// CompileMethod runs a single procedure through the pipeline.  Any panic raised
// along the way is reported as an InternalError.
func (p *Compiler) CompileMethod(proc *frame.ProcFragment) (method *Method, err error) {
	var (
		f     = proc.Frame
		name  = f.Name().Name()
		stage = StageEntryExit
		stats = util.NewPerfStats()
	)
	//
	defer func() {
		if r := recover(); r != nil {
			method, err = nil, &InternalError{name, stage, r}
		}
	}()
	//
	method = &Method{Frame: f}
	body := f.ProcEntryExit1(proc.Body)
	//
	stage = StageCanonical
	stmts := p.canon.Linearize(body)
	//
	stage = StageBlocks
	blocks := p.canon.BasicBlocks(stmts)
	blocks.Check()
	//
	stage = StageSchedule
	method.Stmts = p.canon.TraceSchedule(blocks).Stmts
	log.Debugf("%s: %d canonical statements in %d blocks", name, len(stmts), len(blocks.Blocks))
	//
	stage = StageSelection
	method.Instrs = f.ProcEntryExit2(f.Codegen(method.Stmts))
	log.Debugf("%s: %d instructions selected", name, len(method.Instrs))
	//
	stage = StageAllocation
	alloc := regalloc.Config{MaxRounds: p.config.MaxSpillRounds, Coalesce: p.config.Coalesce}
	//
	if method.Allocation, err = alloc.Allocate(f, method.Instrs); err != nil {
		return nil, err
	}
	//
	stage = StageFinalisation
	method.Proc = f.ProcEntryExit3(method.Allocation.Instrs)
	//
	stats.Log(fmt.Sprintf("Compiling %s", name))
	//
	return method, nil
}
