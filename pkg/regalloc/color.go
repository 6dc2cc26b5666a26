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
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/go-mjc/pkg/liveness"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/util/collection/set"
	"github.com/consensys/go-mjc/pkg/util/collection/stack"
)

type node = liveness.Node

// Degree given to precoloured nodes, which can never be simplified.
const infiniteDegree = math.MaxUint / 2

// Identifies the worklist (or final set) which a node currently belongs to.
type nodeState uint8

const (
	precolored nodeState = iota
	initial
	simplifyWorklist
	freezeWorklist
	spillWorklist
	spilledNode
	coalescedNode
	coloredNode
	onStack
)

// Identifies the set which a move currently belongs to.
type moveState uint8

const (
	worklistMove moveState = iota
	activeMove
	coalescedMove
	constrainedMove
	frozenMove
)

// Options control the behaviour of the colouring.
type Options struct {
	// Coalesce enables coalescing of move related nodes.  When disabled every
	// move is treated as constrained.
	Coalesce bool
	// Unspillable identifies temporaries which must not be spilled, such as
	// those introduced by spilling itself.
	Unspillable map[temp.Temp]bool
}

// Coloring assigns registers to the nodes of an interference graph using the
// iterated register coalescing algorithm.  Colours are indices into the list
// of usable registers, with lower indices preferred.  Nodes which are already
// registers (i.e. mapped by the initial map) are precoloured, and are never
// simplified, spilled or recoloured.
type Coloring struct {
	ig        *liveness.InterferenceGraph
	initial   temp.Map
	registers []temp.Temp
	opts      Options
	k         uint
	// Node information
	state    []nodeState
	degree   []uint
	adjList  [][]node
	adjSet   *bitset.BitSet
	moveList []set.SortedSet[uint]
	alias    []node
	color    []int
	// Worklists
	simplifyWL set.SortedSet[node]
	freezeWL   set.SortedSet[node]
	spillWL    set.SortedSet[node]
	selectSt   *stack.Stack[node]
	spilled    []node
	// Move information
	moves       []liveness.Move
	moveStates  []moveState
	worklistMvs set.SortedSet[uint]
	activeMvs   set.SortedSet[uint]
}

// NewColor colours a given interference graph, where registers identifies the
// usable registers in order of preference.  Any temporaries which cannot be
// coloured are reported as spills.
func NewColor(ig *liveness.InterferenceGraph, initial temp.Map, registers []temp.Temp, opts Options) *Coloring {
	n := ig.Len()
	p := &Coloring{
		ig:        ig,
		initial:   initial,
		registers: registers,
		opts:      opts,
		k:         uint(len(registers)),
		state:     make([]nodeState, n),
		degree:    make([]uint, n),
		adjList:   make([][]node, n),
		adjSet:    bitset.New(n * n),
		moveList:  make([]set.SortedSet[uint], n),
		alias:     make([]node, n),
		color:     make([]int, n),
		selectSt:  stack.NewStack[node](),
	}
	//
	p.build()
	p.makeWorklist()
	//
	for {
		if !p.simplifyWL.IsEmpty() {
			p.simplify()
		} else if !p.worklistMvs.IsEmpty() {
			p.coalesce()
		} else if !p.freezeWL.IsEmpty() {
			p.freeze()
		} else if !p.spillWL.IsEmpty() {
			p.selectSpill()
		} else {
			break
		}
	}
	//
	p.assignColors()
	//
	return p
}

// TempMap returns the name of the register assigned to a given temporary.
// Spilled temporaries, and those not in the graph, have no mapping.
func (p *Coloring) TempMap(t temp.Temp) (string, bool) {
	if r, ok := p.Colour(t); ok {
		return p.initial.TempMap(r)
	}
	//
	return "", false
}

// Colour returns the register assigned to a given temporary, if any.
func (p *Coloring) Colour(t temp.Temp) (temp.Temp, bool) {
	if !p.ig.HasTemp(t) {
		return 0, false
	}
	//
	n := p.ig.TNode(t)
	//
	switch p.state[n] {
	case precolored:
		return t, true
	case coloredNode, coalescedNode:
		if c := p.color[n]; c >= 0 {
			return p.registers[c], true
		} else if a := p.getAlias(n); p.state[a] == precolored {
			return p.ig.GTemp(a), true
		}
	}
	//
	return 0, false
}

// Spills returns the temporaries which could not be coloured, in the order
// they were discovered.
func (p *Coloring) Spills() []temp.Temp {
	spills := make([]temp.Temp, len(p.spilled))
	//
	for i, n := range p.spilled {
		spills[i] = p.ig.GTemp(n)
	}
	//
	return spills
}

// Coalesced checks whether a given move was coalesced, in which case its
// source and destination share a register.
func (p *Coloring) Coalesced(src temp.Temp, dst temp.Temp) bool {
	s, sok := p.Colour(src)
	d, dok := p.Colour(dst)
	//
	return sok && dok && s == d
}

// ============================================================================
// Initialisation
// ============================================================================

func (p *Coloring) build() {
	// Determine precoloured nodes
	for _, n := range p.ig.Nodes() {
		p.alias[n] = n
		p.color[n] = -1
		//
		if _, ok := p.initial.TempMap(p.ig.GTemp(n)); ok {
			p.state[n] = precolored
			p.degree[n] = infiniteDegree
		} else {
			p.state[n] = initial
		}
	}
	// Assign precoloured colours.  Registers which are not usable (e.g. the
	// stack pointer) are given distinct colours beyond the usable range.
	next := len(p.registers)
	//
	for _, n := range p.ig.Nodes() {
		if p.state[n] == precolored {
			if c := p.registerIndex(p.ig.GTemp(n)); c >= 0 {
				p.color[n] = c
			} else {
				p.color[n] = next
				next++
			}
		}
	}
	// Copy edges
	for _, n := range p.ig.Nodes() {
		for _, m := range p.ig.Succ(n) {
			p.addEdge(n, m)
		}
	}
	// Record moves
	if p.opts.Coalesce {
		for _, m := range p.ig.Moves() {
			i := uint(len(p.moves))
			p.moves = append(p.moves, m)
			p.moveStates = append(p.moveStates, worklistMove)
			p.moveList[m.Src].Insert(i)
			p.moveList[m.Dst].Insert(i)
			p.worklistMvs.Insert(i)
		}
	}
}

func (p *Coloring) makeWorklist() {
	for _, n := range p.ig.Nodes() {
		if p.state[n] != initial {
			continue
		} else if p.degree[n] >= p.k {
			p.setState(n, spillWorklist)
		} else if p.moveRelated(n) {
			p.setState(n, freezeWorklist)
		} else {
			p.setState(n, simplifyWorklist)
		}
	}
}

// ============================================================================
// Phases
// ============================================================================

func (p *Coloring) simplify() {
	n := p.simplifyWL.First()
	//
	p.setState(n, onStack)
	p.selectSt.Push(n)
	//
	for _, m := range p.adjacent(n) {
		p.decrementDegree(m)
	}
}

func (p *Coloring) coalesce() {
	i := p.worklistMvs.First()
	m := p.moves[i]
	x, y := p.getAlias(m.Src), p.getAlias(m.Dst)
	//
	var u, v node
	//
	if p.state[y] == precolored {
		u, v = y, x
	} else {
		u, v = x, y
	}
	// Prefer a representative which can be spilled.
	if p.state[u] != precolored && p.unspillable(u) && !p.unspillable(v) {
		u, v = v, u
	}
	//
	switch {
	case u == v:
		p.setMoveState(i, coalescedMove)
		p.addWorklist(u)
	case p.state[v] == precolored || p.interferes(u, v) || p.unusable(u):
		p.setMoveState(i, constrainedMove)
		p.addWorklist(u)
		p.addWorklist(v)
	case p.state[u] == precolored && p.george(u, v), p.state[u] != precolored && p.briggs(u, v):
		p.setMoveState(i, coalescedMove)
		p.combine(u, v)
		p.addWorklist(u)
	default:
		p.setMoveState(i, activeMove)
	}
}

func (p *Coloring) freeze() {
	u := p.freezeWL.First()
	//
	p.setState(u, simplifyWorklist)
	p.freezeMoves(u)
}

// Select a node to spill, minimising cost per unit of degree.  Unspillable
// nodes are chosen only as a last resort.
func (p *Coloring) selectSpill() {
	var (
		best  node
		found = false
		fixed = true
	)
	//
	for _, n := range p.spillWL {
		unspillable := p.unspillable(n)
		//
		if !found || (fixed && !unspillable) || (fixed == unspillable && p.cheaper(n, best)) {
			best, found, fixed = n, true, unspillable
		}
	}
	//
	p.setState(best, simplifyWorklist)
	p.freezeMoves(best)
}

func (p *Coloring) assignColors() {
	for !p.selectSt.IsEmpty() {
		n := p.selectSt.Pop()
		used := make(map[int]bool)
		//
		for _, w := range p.adjList[n] {
			a := p.getAlias(w)
			//
			if s := p.state[a]; s == coloredNode || s == precolored {
				used[p.color[a]] = true
			}
		}
		//
		c := 0
		for ; c < len(p.registers) && used[c]; c++ {
		}
		//
		if c < len(p.registers) {
			p.setState(n, coloredNode)
			p.color[n] = c
		} else if p.unspillable(n) {
			panic(fmt.Sprintf("cannot spill temporary %s", p.ig.GTemp(n)))
		} else {
			p.setState(n, spilledNode)
			p.spilled = append(p.spilled, n)
		}
	}
	// Coalesced nodes take the colour of their representative.
	for _, n := range p.ig.Nodes() {
		if p.state[n] == coalescedNode {
			a := p.getAlias(n)
			//
			if p.state[a] == coloredNode || p.state[a] == precolored {
				p.color[n] = p.color[a]
			}
		}
	}
}

// ============================================================================
// Helpers
// ============================================================================

func (p *Coloring) addEdge(u, v node) {
	if u == v || p.interferes(u, v) {
		return
	}
	//
	n := p.ig.Len()
	p.adjSet.Set(uint(u)*n + uint(v))
	p.adjSet.Set(uint(v)*n + uint(u))
	//
	if p.state[u] != precolored {
		p.adjList[u] = append(p.adjList[u], v)
		p.degree[u]++
	}
	//
	if p.state[v] != precolored {
		p.adjList[v] = append(p.adjList[v], u)
		p.degree[v]++
	}
}

func (p *Coloring) interferes(u, v node) bool {
	return p.adjSet.Test(uint(u)*p.ig.Len() + uint(v))
}

// Neighbours of a node which remain in the graph.
func (p *Coloring) adjacent(n node) []node {
	var adj []node
	//
	for _, m := range p.adjList[n] {
		if s := p.state[m]; s != onStack && s != coalescedNode {
			adj = append(adj, m)
		}
	}
	//
	return adj
}

// Moves of a node which are still candidates for coalescing.
func (p *Coloring) nodeMoves(n node) []uint {
	var moves []uint
	//
	for _, i := range p.moveList[n] {
		if s := p.moveStates[i]; s == worklistMove || s == activeMove {
			moves = append(moves, i)
		}
	}
	//
	return moves
}

func (p *Coloring) moveRelated(n node) bool {
	return len(p.nodeMoves(n)) > 0
}

func (p *Coloring) decrementDegree(m node) {
	d := p.degree[m]
	p.degree[m] = d - 1
	//
	if d == p.k && p.state[m] == spillWorklist {
		p.enableMoves(m)
		//
		for _, n := range p.adjacent(m) {
			p.enableMoves(n)
		}
		//
		if p.moveRelated(m) {
			p.setState(m, freezeWorklist)
		} else {
			p.setState(m, simplifyWorklist)
		}
	}
}

func (p *Coloring) enableMoves(n node) {
	for _, i := range p.nodeMoves(n) {
		if p.moveStates[i] == activeMove {
			p.setMoveState(i, worklistMove)
		}
	}
}

func (p *Coloring) addWorklist(u node) {
	if p.state[u] == freezeWorklist && !p.moveRelated(u) && p.degree[u] < p.k {
		p.setState(u, simplifyWorklist)
	}
}

// George's test for coalescing with a precoloured node: every neighbour of v
// either has insignificant degree, is precoloured, or already interferes with
// u.
func (p *Coloring) george(u, v node) bool {
	for _, t := range p.adjacent(v) {
		if p.degree[t] >= p.k && p.state[t] != precolored && !p.interferes(t, u) {
			return false
		}
	}
	//
	return true
}

// Briggs' conservative test: the combined node has fewer than k neighbours of
// significant degree.
func (p *Coloring) briggs(u, v node) bool {
	var (
		seen  = make(map[node]bool)
		count = uint(0)
	)
	//
	for _, n := range append(p.adjacent(u), p.adjacent(v)...) {
		if !seen[n] {
			seen[n] = true
			//
			if p.degree[n] >= p.k {
				count++
			}
		}
	}
	//
	return count < p.k
}

func (p *Coloring) combine(u, v node) {
	p.setState(v, coalescedNode)
	p.alias[v] = u
	p.moveList[u].InsertSorted(&p.moveList[v])
	p.enableMoves(v)
	//
	for _, t := range p.adjacent(v) {
		p.addEdge(t, u)
		p.decrementDegree(t)
	}
	//
	if p.degree[u] >= p.k && p.state[u] == freezeWorklist {
		p.setState(u, spillWorklist)
	}
}

func (p *Coloring) freezeMoves(u node) {
	for _, i := range p.nodeMoves(u) {
		var (
			m = p.moves[i]
			v node
		)
		//
		if p.getAlias(m.Dst) == p.getAlias(u) {
			v = p.getAlias(m.Src)
		} else {
			v = p.getAlias(m.Dst)
		}
		//
		p.setMoveState(i, frozenMove)
		//
		if p.state[v] == freezeWorklist && !p.moveRelated(v) && p.degree[v] < p.k {
			p.setState(v, simplifyWorklist)
		}
	}
}

func (p *Coloring) getAlias(n node) node {
	for p.state[n] == coalescedNode {
		n = p.alias[n]
	}
	//
	return n
}

// Compare spill priority, where a lower cost per unit degree is cheaper.  Ties
// are broken by node order.
func (p *Coloring) cheaper(a, b node) bool {
	lhs := p.ig.SpillCost(a) * p.degree[b]
	rhs := p.ig.SpillCost(b) * p.degree[a]
	//
	return lhs < rhs || (lhs == rhs && a < b)
}

func (p *Coloring) unspillable(n node) bool {
	return p.opts.Unspillable[p.ig.GTemp(n)]
}

// Precoloured nodes outside the usable registers cannot absorb other nodes.
func (p *Coloring) unusable(n node) bool {
	return p.state[n] == precolored && p.color[n] >= len(p.registers)
}

func (p *Coloring) registerIndex(t temp.Temp) int {
	for i, r := range p.registers {
		if r == t {
			return i
		}
	}
	//
	return -1
}

// Move a node between worklists.
func (p *Coloring) setState(n node, state nodeState) {
	switch p.state[n] {
	case simplifyWorklist:
		p.simplifyWL.Remove(n)
	case freezeWorklist:
		p.freezeWL.Remove(n)
	case spillWorklist:
		p.spillWL.Remove(n)
	}
	//
	switch state {
	case simplifyWorklist:
		p.simplifyWL.Insert(n)
	case freezeWorklist:
		p.freezeWL.Insert(n)
	case spillWorklist:
		p.spillWL.Insert(n)
	}
	//
	p.state[n] = state
}

func (p *Coloring) setMoveState(i uint, state moveState) {
	switch p.moveStates[i] {
	case worklistMove:
		p.worklistMvs.Remove(i)
	case activeMove:
		p.activeMvs.Remove(i)
	}
	//
	switch state {
	case worklistMove:
		p.worklistMvs.Insert(i)
	case activeMove:
		p.activeMvs.Insert(i)
	}
	//
	p.moveStates[i] = state
}
