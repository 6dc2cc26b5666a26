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
package graph

import (
	"fmt"
	"io"

	"github.com/consensys/go-mjc/pkg/util/collection/set"
)

// Node identifies a node within a graph holding values of type T.  Nodes are
// numbered consecutively from zero in order of creation.  The type parameter
// prevents a node of one kind of graph being used with another.  However, two
// graphs of the same kind share a numbering, so a node is only meaningful for
// the graph which created it.  Operations given a node beyond the end of a
// graph panic.
type Node[T any] uint

// Graph is a directed graph whose nodes carry values of type T.  There is at
// most one edge between any ordered pair of nodes.  Successors and
// predecessors are held in ascending order, so iteration is deterministic.
type Graph[T any] struct {
	values []T
	succs  []set.SortedSet[Node[T]]
	preds  []set.SortedSet[Node[T]]
}

// NewGraph constructs an empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{}
}

// NewNode adds a new node carrying a given value into this graph.
func (p *Graph[T]) NewNode(value T) Node[T] {
	n := Node[T](len(p.values))
	//
	p.values = append(p.values, value)
	p.succs = append(p.succs, nil)
	p.preds = append(p.preds, nil)
	//
	return n
}

// Len returns the number of nodes in this graph.
func (p *Graph[T]) Len() uint {
	return uint(len(p.values))
}

// Nodes returns every node of this graph in order of creation.
func (p *Graph[T]) Nodes() []Node[T] {
	nodes := make([]Node[T], len(p.values))
	//
	for i := range nodes {
		nodes[i] = Node[T](i)
	}
	//
	return nodes
}

// Value returns the value carried by a given node.
func (p *Graph[T]) Value(n Node[T]) T {
	return p.values[p.check(n)]
}

// Succ returns the successors of a given node.
func (p *Graph[T]) Succ(n Node[T]) []Node[T] {
	return p.succs[p.check(n)]
}

// Pred returns the predecessors of a given node.
func (p *Graph[T]) Pred(n Node[T]) []Node[T] {
	return p.preds[p.check(n)]
}

// Adj returns the union of the successors and predecessors of a given node.
func (p *Graph[T]) Adj(n Node[T]) []Node[T] {
	adj := set.NewSortedSet(p.Succ(n)...)
	adj.InsertSorted(&p.preds[n])
	//
	return *adj
}

// AddEdge adds an edge from one node to another.  Adding an edge which
// already exists has no effect.
func (p *Graph[T]) AddEdge(from Node[T], to Node[T]) {
	p.check(to)
	p.succs[p.check(from)].Insert(to)
	p.preds[to].Insert(from)
}

// RmEdge removes the edge from one node to another, which must exist.
func (p *Graph[T]) RmEdge(from Node[T], to Node[T]) {
	if !p.succs[p.check(from)].Remove(to) {
		panic(fmt.Sprintf("no edge from %d to %d", from, to))
	}
	//
	p.preds[to].Remove(from)
}

// GoesTo checks whether there is an edge from one node to another.
func (p *Graph[T]) GoesTo(from Node[T], to Node[T]) bool {
	return p.succs[p.check(from)].Contains(to)
}

// ComesFrom checks whether there is an edge into one node from another.
func (p *Graph[T]) ComesFrom(to Node[T], from Node[T]) bool {
	return p.preds[p.check(to)].Contains(from)
}

// InDegree returns the number of predecessors of a given node.
func (p *Graph[T]) InDegree(n Node[T]) uint {
	return uint(len(p.preds[p.check(n)]))
}

// OutDegree returns the number of successors of a given node.
func (p *Graph[T]) OutDegree(n Node[T]) uint {
	return uint(len(p.succs[p.check(n)]))
}

// Degree returns the total number of edges incident on a given node.
func (p *Graph[T]) Degree(n Node[T]) uint {
	return p.InDegree(n) + p.OutDegree(n)
}

// Show writes a textual description of this graph, with one line per node
// giving its value (as rendered by the given function) and its successors.
func (p *Graph[T]) Show(out io.Writer, show func(T) string) error {
	for i, v := range p.values {
		if _, err := fmt.Fprintf(out, "%d: %s ->", i, show(v)); err != nil {
			return err
		}
		//
		for _, s := range p.succs[i] {
			fmt.Fprintf(out, " %d", s)
		}
		//
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}
	//
	return nil
}

func (p *Graph[T]) check(n Node[T]) Node[T] {
	if uint(n) >= uint(len(p.values)) {
		panic(fmt.Sprintf("node %d not in graph", n))
	}
	//
	return n
}
