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
	"slices"

	"github.com/consensys/go-mjc/pkg/flowgraph"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/util/collection/bit"
	"github.com/consensys/go-mjc/pkg/util/collection/stack"
	log "github.com/sirupsen/logrus"
)

// Liveness holds the temporaries live on entry to, and exit from, every node
// of a flow graph.  Temporaries are numbered densely (in ascending order) so
// that live sets can be held as bitsets.
type Liveness struct {
	fg *flowgraph.FlowGraph
	// Temporaries in ascending order, giving the dense index of each.
	temps []temp.Temp
	index map[temp.Temp]uint
	// Dense use and def sets for each node.
	use, def []bit.Set
	// Live sets for each node.
	in, out []bit.Set
	// Number of nodes visited before reaching the fixpoint.
	iterations uint
}

// Analyse computes the live-in and live-out sets of every node in a given flow
// graph, using a backwards worklist algorithm which iterates until a fixpoint
// is reached.
func Analyse(fg *flowgraph.FlowGraph) *Liveness {
	var (
		n = fg.Len()
		p = &Liveness{
			fg:    fg,
			index: make(map[temp.Temp]uint),
			use:   make([]bit.Set, n),
			def:   make([]bit.Set, n),
			in:    make([]bit.Set, n),
			out:   make([]bit.Set, n),
		}
	)
	//
	p.number()
	p.solve()
	//
	log.Debugf("liveness reached fixpoint for %d nodes and %d temporaries after %d iterations",
		n, len(p.temps), p.iterations)
	//
	return p
}

// FlowGraph returns the flow graph over which liveness was computed.
func (p *Liveness) FlowGraph() *flowgraph.FlowGraph {
	return p.fg
}

// Temps returns every temporary occurring in the flow graph, in ascending
// order.
func (p *Liveness) Temps() []temp.Temp {
	return p.temps
}

// LiveIn returns the temporaries live on entry to a given node, in ascending
// order.
func (p *Liveness) LiveIn(n flowgraph.Node) []temp.Temp {
	return p.toTemps(p.in[n])
}

// LiveOut returns the temporaries live on exit from a given node, in ascending
// order.
func (p *Liveness) LiveOut(n flowgraph.Node) []temp.Temp {
	return p.toTemps(p.out[n])
}

// Iterations returns the number of node visits needed to reach the fixpoint.
func (p *Liveness) Iterations() uint {
	return p.iterations
}

// Assign a dense index to every temporary, and determine use / def sets.
func (p *Liveness) number() {
	seen := make(map[temp.Temp]bool)
	//
	for _, n := range p.fg.Nodes() {
		for _, t := range p.fg.Use(n) {
			seen[t] = true
		}
		//
		for _, t := range p.fg.Def(n) {
			seen[t] = true
		}
	}
	//
	for t := range seen {
		p.temps = append(p.temps, t)
	}
	//
	slices.Sort(p.temps)
	//
	for i, t := range p.temps {
		p.index[t] = uint(i)
	}
	//
	for _, n := range p.fg.Nodes() {
		for _, t := range p.fg.Use(n) {
			p.use[n].Insert(p.index[t])
		}
		//
		for _, t := range p.fg.Def(n) {
			p.def[n].Insert(p.index[t])
		}
	}
}

// Iterate to a fixpoint.  Nodes are initially visited in reverse order, since
// liveness flows backwards, and a node is revisited whenever the live-in set
// of one of its successors grows.
func (p *Liveness) solve() {
	var (
		worklist = stack.NewStack[flowgraph.Node]()
		pending  = make([]bool, p.fg.Len())
	)
	//
	for _, n := range p.fg.Nodes() {
		worklist.Push(n)
		pending[n] = true
	}
	//
	for !worklist.IsEmpty() {
		n := worklist.Pop()
		pending[n] = false
		p.iterations++
		// out(n) = U in(s) for s in succ(n)
		var out bit.Set
		for _, s := range p.fg.Succ(n) {
			out.Union(p.in[s])
		}
		// in(n) = use(n) U (out(n) - def(n))
		in := out.Clone()
		in.Subtract(p.def[n])
		in.Union(p.use[n])
		//
		p.out[n] = out
		//
		if !in.Equals(p.in[n]) {
			p.in[n] = in
			//
			for _, pred := range p.fg.Pred(n) {
				if !pending[pred] {
					worklist.Push(pred)
					pending[pred] = true
				}
			}
		}
	}
}

func (p *Liveness) toTemps(set bit.Set) []temp.Temp {
	elems := set.Elements()
	temps := make([]temp.Temp, len(elems))
	//
	for i, e := range elems {
		temps[i] = p.temps[e]
	}
	//
	return temps
}
