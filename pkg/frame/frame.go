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
package frame

import (
	"fmt"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
)

// Access describes where a formal parameter or local variable is stored.
type Access interface {
	// Exp returns an expression which reads (or, as the destination of a
	// move, writes) the given storage, where fp is the frame pointer of the
	// frame holding it.
	Exp(fp tree.Expr) tree.Expr
	String() string
}

// InFrame is storage at a fixed offset from the frame pointer.
type InFrame struct {
	Offset int32
}

// Exp implementation for the Access interface.
func (p *InFrame) Exp(fp tree.Expr) tree.Expr {
	return &tree.Mem{Addr: &tree.Binop{Op: tree.PLUS, Left: fp, Right: &tree.Const{Value: p.Offset}}}
}

func (p *InFrame) String() string {
	return fmt.Sprintf("%d", p.Offset)
}

// InReg is storage in a temporary.
type InReg struct {
	Temp temp.Temp
}

// Exp implementation for the Access interface.
func (p *InReg) Exp(fp tree.Expr) tree.Expr {
	return &tree.Temp{Temp: p.Temp}
}

func (p *InReg) String() string {
	return p.Temp.String()
}

// Proc is the final form of a procedure, ready for emission.
type Proc struct {
	Prologue string
	Body     []assem.Instr
	Epilogue string
}

// Frame captures the calling convention and stack layout of a single
// procedure on some target machine.  A frame also acts as the map from
// precoloured temporaries (i.e. machine registers) to their names.
type Frame interface {
	temp.Map
	// Name returns the (globally unique) label of this procedure.
	Name() temp.Label
	// Formals returns the storage of each formal parameter, as seen from
	// inside the procedure.
	Formals() []Access
	// NewFrame creates a child frame whose name is derived from this one.
	NewFrame(name string, formals []bool) Frame
	// AllocLocal allocates storage for a local.  Locals which escape (i.e.
	// whose address may be taken) live in the frame, others in a fresh
	// temporary.
	AllocLocal(escape bool) Access
	// FP returns the frame pointer.
	FP() temp.Temp
	// RV returns the register holding the return value.
	RV() temp.Temp
	// WordSize returns the number of bytes in a machine word.
	WordSize() int32
	// ExternalCall constructs a call to a runtime support routine.
	ExternalCall(name string, args []tree.Expr) tree.Expr
	// ProcEntryExit1 wraps a procedure body with the moves which bring
	// incoming arguments into formal storage and save (then restore) the
	// callee-saved registers.
	ProcEntryExit1(body tree.Stmt) tree.Stmt
	// ProcEntryExit2 appends a sink instruction marking registers live on
	// exit.
	ProcEntryExit2(body []assem.Instr) []assem.Instr
	// ProcEntryExit3 adds the prologue and epilogue, once the frame size is
	// known.
	ProcEntryExit3(body []assem.Instr) *Proc
	// Codegen selects instructions for a list of canonical statements.
	Codegen(stmts []tree.Stmt) []assem.Instr
	// Spill rewrites a list of instructions so that each given temporary
	// lives in a fresh frame slot.  Every use is preceded by a load into a
	// new temporary, and every definition followed by a store from one.  The
	// rewritten instructions are returned along with the new temporaries.
	Spill(instrs []assem.Instr, spills []temp.Temp) ([]assem.Instr, []temp.Temp)
	// Registers returns the registers available for allocation, in order of
	// preference.
	Registers() []temp.Temp
	String() string
}

// Machine describes a target machine, and acts as a factory for its frames.
type Machine interface {
	temp.Map
	// NewFrame creates a top-level frame with a given name, and one formal
	// for each escape flag.
	NewFrame(name string, formals []bool) Frame
	// Registers returns the registers available for allocation.
	Registers() []temp.Temp
	// StringData returns the assembly text for a string literal.
	StringData(label temp.Label, value string) string
	// ProgramTail returns the assembly text of the runtime support routines.
	ProgramTail() string
}

// Fragment is a unit of output, being either a procedure or some data.
type Fragment interface {
	isFragment()
}

// ProcFragment is a procedure body, together with its frame.  The body
// already includes the final move into the return value register.
type ProcFragment struct {
	Body  tree.Stmt
	Frame Frame
}

func (*ProcFragment) isFragment() {}

// DataFragment is a string literal.
type DataFragment struct {
	Label temp.Label
	Data  string
}

func (*DataFragment) isFragment() {}
