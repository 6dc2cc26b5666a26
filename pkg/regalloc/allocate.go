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
package regalloc

import (
	"fmt"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/flowgraph"
	"github.com/consensys/go-mjc/pkg/frame"
	"github.com/consensys/go-mjc/pkg/liveness"
	"github.com/consensys/go-mjc/pkg/temp"
	log "github.com/sirupsen/logrus"
)

// Config controls register allocation.
type Config struct {
	// MaxRounds bounds the number of times allocation is attempted.  Each
	// round which spills rewrites the instructions and tries again.
	MaxRounds uint
	// Coalesce enables move coalescing.
	Coalesce bool
}

// DefaultConfig returns the default allocation configuration.
func DefaultConfig() Config {
	return Config{MaxRounds: 8, Coalesce: true}
}

// Allocation is the result of register allocation for a single procedure.
type Allocation struct {
	// Instrs holds the final instructions, including any spill code but
	// excluding moves between temporaries sharing a register.
	Instrs []assem.Instr
	// Rounds records the number of attempts made.
	Rounds uint
	// Spilled holds every temporary spilled along the way.
	Spilled  []temp.Temp
	coloring *Coloring
}

// TempMap implementation for the temp.Map interface, giving the register
// assigned to each temporary.
func (p *Allocation) TempMap(t temp.Temp) (string, bool) {
	return p.coloring.TempMap(t)
}

// Coloring returns the colouring from the final round.
func (p *Allocation) Coloring() *Coloring {
	return p.coloring
}

// Allocate assigns registers to the temporaries of a procedure body.  When
// temporaries must be spilled, the frame rewrites the body with loads and
// stores, and allocation is repeated from the flow graph onwards.  Temporaries
// introduced by spilling are never themselves spilled.  An error is returned
// if allocation has not succeeded after the configured number of rounds.
func (p Config) Allocate(f frame.Frame, instrs []assem.Instr) (*Allocation, error) {
	var (
		unspillable = make(map[temp.Temp]bool)
		spilled     []temp.Temp
		opts        = Options{Coalesce: p.Coalesce, Unspillable: unspillable}
	)
	//
	for round := uint(1); round <= p.MaxRounds; round++ {
		fg := flowgraph.New(instrs)
		live := liveness.Analyse(fg)
		ig := live.Interference()
		coloring := NewColor(ig, f, f.Registers(), opts)
		spills := coloring.Spills()
		//
		log.Debugf("%s: allocation round %d (%d instructions, %d temporaries, %d spills)",
			f.Name(), round, len(instrs), ig.Len(), len(spills))
		//
		if len(spills) == 0 {
			return &Allocation{removeMoves(instrs, coloring), round, spilled, coloring}, nil
		}
		//
		var fresh []temp.Temp
		//
		instrs, fresh = f.Spill(instrs, spills)
		spilled = append(spilled, spills...)
		//
		for _, t := range fresh {
			unspillable[t] = true
		}
	}
	//
	return nil, fmt.Errorf("register allocation for %s failed after %d rounds", f.Name(), p.MaxRounds)
}

// Allocate assigns registers using the default configuration.
func Allocate(f frame.Frame, instrs []assem.Instr) (*Allocation, error) {
	return DefaultConfig().Allocate(f, instrs)
}

// Drop moves whose source and destination were assigned the same register.
func removeMoves(instrs []assem.Instr, coloring *Coloring) []assem.Instr {
	var nInstrs []assem.Instr
	//
	for _, instr := range instrs {
		if m, ok := instr.(*assem.Move); ok && coloring.Coalesced(m.Src, m.Dst) {
			continue
		}
		//
		nInstrs = append(nInstrs, instr)
	}
	//
	return nInstrs
}
