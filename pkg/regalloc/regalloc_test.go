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
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/flowgraph"
	"github.com/consensys/go-mjc/pkg/liveness"
	"github.com/consensys/go-mjc/pkg/mips"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/util/assert"
)

// Number of registers used by the synthetic tests.  Temporaries below this
// are precoloured as r0, r1, etc.
const nRegs = 4

var registerMap = temp.MapFunc(func(t temp.Temp) (string, bool) {
	if t < nRegs {
		return fmt.Sprintf("r%d", t), true
	}
	//
	return "", false
})

func registers(k uint) []temp.Temp {
	regs := make([]temp.Temp, k)
	//
	for i := range regs {
		regs[i] = temp.Temp(i)
	}
	//
	return regs
}

func oper(assem_ string, dst []temp.Temp, src ...temp.Temp) *assem.Oper {
	return assem.NewOper(assem_, dst, src)
}

func ts(temps ...temp.Temp) []temp.Temp {
	return temps
}

func interference(instrs []assem.Instr) *liveness.InterferenceGraph {
	return liveness.Analyse(flowgraph.New(instrs)).Interference()
}

// Define temporaries from..to-1 and then use them all together, such that
// they form a clique in the interference graph.
func clique(from, to temp.Temp) []assem.Instr {
	var (
		instrs []assem.Instr
		all    []temp.Temp
	)
	//
	for t := from; t < to; t++ {
		instrs = append(instrs, oper("li `d0,0", ts(t)))
		all = append(all, t)
	}
	//
	return append(instrs, oper("use", nil, all...))
}

// ============================================================================
// Colouring
// ============================================================================

func Test_Color_01(t *testing.T) {
	ig := interference(clique(nRegs, nRegs+nRegs))
	col := NewColor(ig, registerMap, registers(nRegs), Options{Coalesce: true})
	//
	assert.Equal(t, 0, len(col.Spills()))
	check_ValidColoring(t, ig, col)
	//
	for i := temp.Temp(nRegs); i < 2*nRegs; i++ {
		_, ok := col.TempMap(i)
		assert.True(t, ok)
	}
}

// Overfull clique forces spills.
func Test_Color_02(t *testing.T) {
	ig := interference(clique(nRegs, 3*nRegs))
	col := NewColor(ig, registerMap, registers(nRegs), Options{Coalesce: true})
	//
	assert.Equal(t, nRegs, len(col.Spills()))
	check_ValidColoring(t, ig, col)
	//
	for _, s := range col.Spills() {
		_, ok := col.TempMap(s)
		assert.False(t, ok)
	}
}

// Precoloured nodes keep their colour.
func Test_Color_03(t *testing.T) {
	instrs := []assem.Instr{
		oper("li `d0,1", ts(0)),
		oper("li `d0,2", ts(1)),
		oper("li `d0,3", ts(5)),
		oper("add `d0,`s0,`s1", ts(6), 0, 5),
		oper("use", nil, 6, 1),
	}
	//
	ig := interference(instrs)
	col := NewColor(ig, registerMap, registers(nRegs), Options{Coalesce: true})
	//
	check_ValidColoring(t, ig, col)
	//
	for r := temp.Temp(0); r < 2; r++ {
		c, ok := col.Colour(r)
		assert.True(t, ok)
		assert.Equal(t, r, c)
	}
	// t5 interferes with r0 and r1, so must take r2.
	name, _ := col.TempMap(5)
	assert.Equal(t, "r2", name)
}

// Registers outside of the usable set remain precoloured.
func Test_Color_04(t *testing.T) {
	instrs := []assem.Instr{
		oper("li `d0,1", ts(4)),
		oper("use", nil, 3, 4),
	}
	//
	ig := interference(instrs)
	col := NewColor(ig, registerMap, registers(2), Options{Coalesce: true})
	name, ok := col.TempMap(3)
	//
	assert.True(t, ok)
	assert.Equal(t, "r3", name)
	check_ValidColoring(t, ig, col)
}

// Move related temporaries are coalesced.
func Test_Color_05(t *testing.T) {
	instrs := []assem.Instr{
		oper("li `d0,1", ts(4)),
		&assem.Move{Assem: "move `d0,`s0", Dst: 5, Src: 4},
		oper("li `d0,2", ts(6)),
		oper("use", nil, 5, 6),
	}
	//
	ig := interference(instrs)
	col := NewColor(ig, registerMap, registers(nRegs), Options{Coalesce: true})
	//
	assert.True(t, col.Coalesced(4, 5))
	assert.False(t, col.Coalesced(5, 6))
	check_ValidColoring(t, ig, col)
}

// Moves into a precoloured register are coalesced.
func Test_Color_06(t *testing.T) {
	instrs := []assem.Instr{
		oper("li `d0,1", ts(4)),
		&assem.Move{Assem: "move `d0,`s0", Dst: 2, Src: 4},
		oper("use", nil, 2),
	}
	//
	ig := interference(instrs)
	col := NewColor(ig, registerMap, registers(nRegs), Options{Coalesce: true})
	name, _ := col.TempMap(4)
	//
	assert.Equal(t, "r2", name)
	assert.True(t, col.Coalesced(4, 2))
}

// Interfering move related temporaries are not coalesced.
func Test_Color_07(t *testing.T) {
	instrs := []assem.Instr{
		oper("li `d0,1", ts(4)),
		&assem.Move{Assem: "move `d0,`s0", Dst: 5, Src: 4},
		oper("addi `d0,`s0,1", ts(4), 4),
		oper("use", nil, 4, 5),
	}
	//
	ig := interference(instrs)
	col := NewColor(ig, registerMap, registers(nRegs), Options{Coalesce: true})
	//
	assert.False(t, col.Coalesced(4, 5))
	check_ValidColoring(t, ig, col)
}

// Unspillable temporaries which cannot be coloured are fatal.
func Test_Color_08(t *testing.T) {
	ig := interference(clique(nRegs, nRegs+3))
	unspillable := map[temp.Temp]bool{4: true, 5: true, 6: true}
	//
	assert.Panics(t, func() {
		NewColor(ig, registerMap, registers(2), Options{Unspillable: unspillable})
	})
}

// Spills prefer spillable temporaries.
func Test_Color_09(t *testing.T) {
	ig := interference(clique(nRegs, nRegs+3))
	unspillable := map[temp.Temp]bool{4: true, 5: true}
	col := NewColor(ig, registerMap, registers(2), Options{Unspillable: unspillable})
	//
	assert.Equal(t, ts(6), col.Spills())
}

func Test_Color_10(t *testing.T) {
	check_RandomColoring(t, 10, 20, 4, true)
}

func Test_Color_11(t *testing.T) {
	check_RandomColoring(t, 20, 40, 4, true)
}

func Test_Color_12(t *testing.T) {
	check_RandomColoring(t, 30, 60, 3, false)
}

func Test_Color_13(t *testing.T) {
	check_RandomColoring(t, 50, 100, 2, true)
}

// ============================================================================
// Allocation
// ============================================================================

// Moves into the return register are coalesced away.
func Test_Allocate_01(t *testing.T) {
	var (
		machine = mips.NewMachine(temp.NewFactory())
		frame   = machine.NewFrame("f", nil)
		factory = machine.Factory()
		t1, t2  = factory.NewTemp(), factory.NewTemp()
		instrs  = []assem.Instr{
			oper("li `d0,7", ts(t1)),
			assem.NewMove(t2, t1),
			assem.NewMove(frame.RV(), t2),
		}
	)
	//
	alloc, err := Allocate(frame, frame.ProcEntryExit2(instrs))
	assert.NoError(t, err)
	assert.Equal(t, uint(1), alloc.Rounds)
	assert.Equal(t, 2, len(alloc.Instrs))
	assert.Equal(t, "li $v0,7", alloc.Instrs[0].Format(alloc))
	check_ValidAllocation(t, alloc)
}

// Too many simultaneously live temporaries forces spilling.
func Test_Allocate_02(t *testing.T) {
	var (
		machine = mips.NewMachine(temp.NewFactory())
		frame   = machine.NewFrame("f", nil)
		factory = machine.Factory()
		temps   = factory.NewTemps(40)
		acc     = factory.NewTemp()
		instrs  []assem.Instr
	)
	//
	for i, t := range temps {
		instrs = append(instrs, oper(fmt.Sprintf("li `d0,%d", i), ts(t)))
	}
	//
	instrs = append(instrs, oper("li `d0,0", ts(acc)))
	//
	for _, t := range temps {
		instrs = append(instrs, oper("addu `d0,`s0,`s1", ts(acc), acc, t))
	}
	//
	instrs = append(instrs, assem.NewMove(frame.RV(), acc))
	//
	alloc, err := Allocate(frame, frame.ProcEntryExit2(instrs))
	assert.NoError(t, err)
	assert.True(t, alloc.Rounds > 1)
	assert.True(t, len(alloc.Spilled) > 0)
	check_ValidAllocation(t, alloc)
}

// Bounded number of rounds.
func Test_Allocate_03(t *testing.T) {
	var (
		machine = mips.NewMachine(temp.NewFactory())
		frame   = machine.NewFrame("f", nil)
		temps   = machine.Factory().NewTemps(40)
		instrs  []assem.Instr
	)
	//
	for _, t := range temps {
		instrs = append(instrs, oper("li `d0,0", ts(t)))
	}
	//
	instrs = append(instrs, oper("use", nil, temps...))
	//
	_, err := Config{MaxRounds: 1, Coalesce: true}.Allocate(frame, instrs)
	assert.True(t, err != nil)
}

// Allocation without coalescing keeps every move.
func Test_Allocate_04(t *testing.T) {
	var (
		machine = mips.NewMachine(temp.NewFactory())
		frame   = machine.NewFrame("f", nil)
		t1      = machine.Factory().NewTemp()
		instrs  = []assem.Instr{
			oper("li `d0,7", ts(t1)),
			assem.NewMove(frame.RV(), t1),
		}
	)
	//
	alloc, err := Config{MaxRounds: 4, Coalesce: false}.Allocate(frame, instrs)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(alloc.Instrs))
	assert.Equal(t, "move $v0,$t0", alloc.Instrs[1].Format(alloc))
	check_ValidAllocation(t, alloc)
}

// ============================================================================
// Helpers
// ============================================================================

// Generate random straight-line code over a given number of temporaries, and
// check the resulting colouring.
func check_RandomColoring(t *testing.T, nTemps uint, nInstrs uint, k uint, coalesce bool) {
	t.Parallel()
	//
	for seed := uint64(0); seed < 10; seed++ {
		var (
			rng    = rand.New(rand.NewPCG(seed, uint64(nTemps)))
			instrs []assem.Instr
			pick   = func() temp.Temp { return temp.Temp(nRegs + rng.UintN(nTemps)) }
		)
		//
		for i := uint(0); i < nInstrs; i++ {
			switch rng.UintN(3) {
			case 0:
				instrs = append(instrs, oper("li `d0,0", ts(pick())))
			case 1:
				instrs = append(instrs, &assem.Move{Assem: "move `d0,`s0", Dst: pick(), Src: pick()})
			default:
				instrs = append(instrs, oper("add `d0,`s0,`s1", ts(pick()), pick(), pick()))
			}
		}
		//
		var live []temp.Temp
		//
		for i := uint(0); i < nTemps; i++ {
			if rng.UintN(2) == 0 {
				live = append(live, temp.Temp(nRegs+i))
			}
		}
		//
		instrs = append(instrs, oper("use", nil, live...))
		//
		ig := interference(instrs)
		col := NewColor(ig, registerMap, registers(k), Options{Coalesce: coalesce})
		check_ValidColoring(t, ig, col)
	}
}

// Check no two interfering temporaries are assigned the same register, and
// that every temporary is either coloured or spilled.
func check_ValidColoring(t *testing.T, ig *liveness.InterferenceGraph, col *Coloring) {
	t.Helper()
	//
	spilled := make(map[temp.Temp]bool)
	//
	for _, s := range col.Spills() {
		spilled[s] = true
	}
	//
	for _, n := range ig.Nodes() {
		u := ig.GTemp(n)
		cu, uok := col.Colour(u)
		//
		if !uok && !spilled[u] {
			// Coalesced with a spilled node
			continue
		}
		//
		for _, m := range ig.Adj(n) {
			v := ig.GTemp(m)
			cv, vok := col.Colour(v)
			//
			if uok && vok && cu == cv {
				t.Errorf("interfering temporaries %s and %s both assigned %s", u, v, cu)
			}
		}
	}
}

// Check every temporary of the final instructions was assigned a register,
// and that the final round's colouring is valid.  Interference is taken from
// that round since coalesced moves are missing from the final instructions.
func check_ValidAllocation(t *testing.T, alloc *Allocation) {
	t.Helper()
	//
	for _, instr := range alloc.Instrs {
		for _, u := range slices.Concat(instr.Def(), instr.Use()) {
			if _, ok := alloc.TempMap(u); !ok {
				t.Errorf("temporary %s not allocated", u)
			}
		}
	}
	//
	check_ValidColoring(t, alloc.coloring.ig, alloc.coloring)
}
