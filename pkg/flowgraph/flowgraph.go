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
package flowgraph

import (
	"fmt"
	"io"
	"strings"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/graph"
	"github.com/consensys/go-mjc/pkg/temp"
)

// Node is a node of a flow graph, which corresponds to a single (non-label)
// instruction.
type Node = graph.Node[assem.Instr]

// FlowGraph is the control-flow graph of a sequence of instructions.  There is
// one node for every instruction other than a label, and an edge from each node
// to every node which can execute immediately after it.
type FlowGraph struct {
	graph.Graph[assem.Instr]
	// Maps each label onto the node of the first instruction following it.
	labels map[temp.Label]Node
}

// New constructs the flow graph for a given sequence of instructions.  Labels
// attach to the next real instruction.  Every node is connected to its
// successor in the sequence, unless it is an unconditional transfer of control.
// A jump to a label which does not attach to any instruction goes to the final
// node.
func New(instrs []assem.Instr) *FlowGraph {
	var (
		fg      = &FlowGraph{labels: make(map[temp.Label]Node)}
		pending []temp.Label
		last    Node
		first   = true
	)
	//
	for _, instr := range instrs {
		if l, ok := instr.(*assem.Label); ok {
			pending = append(pending, l.Label)
			continue
		}
		//
		node := fg.NewNode(instr)
		// Attach pending labels
		for _, l := range pending {
			fg.labels[l] = node
		}
		//
		pending = pending[:0]
		// Fall through from previous instruction
		if !first && assem.FallsThrough(fg.Value(last)) {
			fg.AddEdge(last, node)
		}
		//
		last, first = node, false
	}
	// Connect jumps to their targets
	for _, n := range fg.Nodes() {
		for _, l := range fg.Value(n).Jumps() {
			if target, ok := fg.labels[l]; ok {
				fg.AddEdge(n, target)
			} else {
				fg.AddEdge(n, last)
			}
		}
	}
	//
	return fg
}

// Instr returns the instruction for a given node.
func (p *FlowGraph) Instr(n Node) assem.Instr {
	return p.Value(n)
}

// Def returns the temporaries defined at a given node.
func (p *FlowGraph) Def(n Node) []temp.Temp {
	return p.Value(n).Def()
}

// Use returns the temporaries used at a given node.
func (p *FlowGraph) Use(n Node) []temp.Temp {
	return p.Value(n).Use()
}

// IsMove determines whether a given node is a move instruction, which the
// register allocator may be able to eliminate.
func (p *FlowGraph) IsMove(n Node) bool {
	_, ok := p.Value(n).(*assem.Move)
	return ok
}

// LabelNode returns the node to which a given label is attached, if any.
func (p *FlowGraph) LabelNode(l temp.Label) (Node, bool) {
	n, ok := p.labels[l]
	return n, ok
}

// Show writes one line per node giving its definitions, uses and successors.
// Moves are written with "<=" rather than "<-".
func (p *FlowGraph) Show(out io.Writer) error {
	return p.Graph.Show(out, func(instr assem.Instr) string {
		arrow := "<-"
		if _, ok := instr.(*assem.Move); ok {
			arrow = "<="
		}
		//
		return fmt.Sprintf("%s %s %s ;", temps(instr.Def()), arrow, temps(instr.Use()))
	})
}

func temps(ts []temp.Temp) string {
	names := make([]string, len(ts))
	//
	for i, t := range ts {
		names[i] = t.String()
	}
	//
	return strings.Join(names, " ")
}
