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
	"sync"

	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/temp"
)

// WordSize is the number of bytes in a MIPS word.
const WordSize = 4

// Register identifies one of the 32 general purpose MIPS registers by number.
type Register uint8

// Register numbers, following the standard MIPS naming conventions.
const (
	ZERO Register = iota
	AT
	V0
	V1
	A0
	A1
	A2
	A3
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	T7
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	T8
	T9
	K0
	K1
	GP
	SP
	FP
	RA
	// NumRegisters is the number of general purpose registers.
	NumRegisters
)

var registerNames = [NumRegisters]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

func (r Register) String() string {
	return registerNames[r]
}

// ParseRegister returns the register with a given name, which may be either
// symbolic (e.g. "$sp") or numeric (e.g. "$29").
func ParseRegister(name string) (Register, bool) {
	for i, n := range registerNames {
		if n == name || fmt.Sprintf("$%d", i) == name {
			return Register(i), true
		}
	}
	//
	return 0, false
}

var (
	// Registers dedicated to special purposes.
	specialRegs = []Register{ZERO, AT, K0, K1, GP, SP}
	// Registers used to pass outgoing arguments.
	argRegs = []Register{A0, A1, A2, A3}
	// Registers which a callee must preserve for its caller.
	calleeSaves = []Register{RA, S0, S1, S2, S3, S4, S5, S6, S7, FP}
	// Registers which a callee may use without preserving.
	callerSaves = []Register{T0, T1, T2, T3, T4, T5, T6, T7, T8, T9, V0, V1}
)

// Machine is the MIPS target.  Each machine register is represented by a
// precoloured temporary allocated when the machine is created, such that
// temporaries allocated later from the same factory never clash with them.
type Machine struct {
	factory *temp.Factory
	regs    [NumRegisters]temp.Temp
	// Virtual frame pointer, which is eliminated during instruction selection.
	fp    temp.Temp
	names map[temp.Temp]string
	// Identifies the number of frames created for each name.
	mux    sync.Mutex
	frames map[string]uint
}

// NewMachine constructs a MIPS machine whose registers are allocated from the
// given factory.
func NewMachine(factory *temp.Factory) *Machine {
	p := &Machine{factory: factory, names: make(map[temp.Temp]string), frames: make(map[string]uint)}
	//
	for i := range p.regs {
		p.regs[i] = factory.NewTemp()
		p.names[p.regs[i]] = registerNames[i]
	}
	//
	p.fp = factory.NewTemp()
	//
	return p
}

// Factory returns the factory from which temporaries and labels are allocated.
func (p *Machine) Factory() *temp.Factory {
	return p.factory
}

// Reg returns the precoloured temporary of a given register.
func (p *Machine) Reg(r Register) temp.Temp {
	return p.regs[r]
}

// TempMap implementation for the temp.Map interface.  Only machine registers
// are mapped.
func (p *Machine) TempMap(t temp.Temp) (string, bool) {
	name, ok := p.names[t]
	return name, ok
}

// Registers implementation for the frame.Machine interface.  Caller-saved
// registers are preferred, followed by callee-saved and argument registers.
func (p *Machine) Registers() []temp.Temp {
	var regs []temp.Temp
	//
	regs = append(regs, p.temps(callerSaves)...)
	regs = append(regs, p.temps(calleeSaves)...)
	//
	return append(regs, p.temps(argRegs)...)
}

// NewFrame implementation for the frame.Machine interface.
func (p *Machine) NewFrame(name string, formals []bool) frame.Frame {
	return p.newFrame(name, formals)
}

// Allocate a unique name for a frame.  The first frame with a given name uses
// that name, whilst subsequent ones are numbered (e.g. "f.1", "f.2").
func (p *Machine) uniqueName(name string) temp.Label {
	p.mux.Lock()
	defer p.mux.Unlock()
	//
	count, ok := p.frames[name]
	p.frames[name] = count + 1
	//
	if !ok {
		return temp.NamedLabel(name)
	}
	//
	return temp.NamedLabel(fmt.Sprintf("%s.%d", name, count))
}

func (p *Machine) temps(regs []Register) []temp.Temp {
	temps := make([]temp.Temp, len(regs))
	//
	for i, r := range regs {
		temps[i] = p.regs[r]
	}
	//
	return temps
}

// Registers defined by a call instruction.
func (p *Machine) callDefs() []temp.Temp {
	defs := []temp.Temp{p.regs[RA]}
	defs = append(defs, p.temps(argRegs)...)
	//
	return append(defs, p.temps(callerSaves)...)
}

// Registers live on exit from a procedure.
func (p *Machine) returnSink() []temp.Temp {
	sink := []temp.Temp{p.regs[V0]}
	sink = append(sink, p.temps(specialRegs)...)
	//
	return append(sink, p.temps(calleeSaves)...)
}
