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
package liveness

import (
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/graph"
	"github.com/consensys/go-mjc/pkg/temp"
)

// Node is a node of an interference graph, which corresponds to a single
// temporary.
type Node = graph.Node[temp.Temp]

// Move records a move instruction between two temporaries, which the register
// allocator may try to eliminate by assigning both the same register.
type Move struct {
	Src Node
	Dst Node
}

// InterferenceGraph has one node per temporary, with an edge between two
// temporaries which must not be assigned the same register.  Although edges
// are stored in one direction only, interference is symmetric and adjacency
// should be determined with Adj().
type InterferenceGraph struct {
	graph.Graph[temp.Temp]
	nodes map[temp.Temp]Node
	// Square adjacency matrix, giving constant time interference checks.
	matrix *bitset.BitSet
	moves  []Move
	costs  []uint
}

// Interference builds the interference graph from the result of liveness
// analysis.  For every temporary defined at a node, an edge is added to every
// temporary live on exit from that node.  The exception is a move, whose
// destination does not interfere with its source on account of the move
// itself.
func (p *Liveness) Interference() *InterferenceGraph {
	var (
		n  = uint(len(p.temps))
		ig = &InterferenceGraph{
			nodes:  make(map[temp.Temp]Node),
			matrix: bitset.New(n * n),
			costs:  make([]uint, n),
		}
	)
	// Nodes are created in ascending order of temporary, hence node i
	// corresponds to dense index i.
	for _, t := range p.temps {
		ig.nodes[t] = ig.NewNode(t)
	}
	//
	for _, fn := range p.fg.Nodes() {
		var src, dst Node
		//
		mv, isMove := p.fg.Instr(fn).(*assem.Move)
		//
		if isMove {
			src, dst = ig.nodes[mv.Src], ig.nodes[mv.Dst]
			ig.moves = append(ig.moves, Move{src, dst})
		}
		//
		for _, d := range p.def[fn].Elements() {
			dn := Node(d)
			//
			for _, t := range p.out[fn].Elements() {
				tn := Node(t)
				//
				if !(isMove && dn == dst && tn == src) {
					ig.addInterference(dn, tn)
				}
			}
		}
		// Spill costs
		for _, t := range p.fg.Use(fn) {
			ig.costs[ig.nodes[t]]++
		}
		//
		for _, t := range p.fg.Def(fn) {
			ig.costs[ig.nodes[t]]++
		}
	}
	//
	return ig
}

// TNode returns the node for a given temporary, which must be in the graph.
func (p *InterferenceGraph) TNode(t temp.Temp) Node {
	if n, ok := p.nodes[t]; ok {
		return n
	}
	//
	panic(fmt.Sprintf("temporary %s not in interference graph", t))
}

// HasTemp checks whether a given temporary occurs in the graph.
func (p *InterferenceGraph) HasTemp(t temp.Temp) bool {
	_, ok := p.nodes[t]
	return ok
}

// GTemp returns the temporary for a given node.
func (p *InterferenceGraph) GTemp(n Node) temp.Temp {
	return p.Value(n)
}

// Moves returns the move instructions between temporaries of this graph.
func (p *InterferenceGraph) Moves() []Move {
	return p.moves
}

// SpillCost returns the number of times a given temporary is defined or used.
func (p *InterferenceGraph) SpillCost(n Node) uint {
	return p.costs[n]
}

// Interferes checks whether two nodes interfere.
func (p *InterferenceGraph) Interferes(a Node, b Node) bool {
	return p.matrix.Test(uint(a)*p.Len() + uint(b))
}

// Show writes one line per temporary listing those it interferes with.
func (p *InterferenceGraph) Show(out io.Writer) error {
	for _, n := range p.Nodes() {
		if _, err := fmt.Fprintf(out, "%s:", p.GTemp(n)); err != nil {
			return err
		}
		//
		for _, m := range p.Adj(n) {
			fmt.Fprintf(out, " %s", p.GTemp(m))
		}
		//
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}
	//
	return nil
}

// Add an edge between two distinct nodes, unless one already exists.
func (p *InterferenceGraph) addInterference(a Node, b Node) {
	if a == b || p.Interferes(a, b) {
		return
	}
	//
	n := p.Len()
	p.matrix.Set(uint(a)*n + uint(b))
	p.matrix.Set(uint(b)*n + uint(a))
	p.AddEdge(a, b)
}
