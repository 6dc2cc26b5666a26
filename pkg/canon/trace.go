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
package canon

import (
	"fmt"

	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/tree"
)

// Schedule is the result of trace scheduling a set of basic blocks.
type Schedule struct {
	// Stmts holds the scheduled statements, ending with the label for the
	// done block.
	Stmts []tree.Stmt
	// Order identifies the position (in the original list of blocks) of each
	// block in the order they were scheduled.
	Order []int
}

// TraceSchedule orders basic blocks such that every CJump is immediately
// followed by its false label, whenever possible.  Blocks connected by an
// unconditional jump are placed next to each other, in which case the jump is
// dropped.
func (p *Canon) TraceSchedule(blocks *Blocks) *Schedule {
	var (
		sched = &Schedule{}
		// Identifies blocks not yet scheduled.
		table = make(map[temp.Label]int)
	)
	//
	for i, b := range blocks.Blocks {
		table[blockLabel(b)] = i
	}
	//
	for i, b := range blocks.Blocks {
		if _, ok := table[blockLabel(b)]; ok {
			p.trace(i, blocks, table, sched)
		}
	}
	//
	sched.Stmts = append(sched.Stmts, &tree.Label{Label: blocks.Done})
	//
	return sched
}

// Schedule a trace starting from the given block.
func (p *Canon) trace(index int, blocks *Blocks, table map[temp.Label]int, sched *Schedule) {
	for {
		block := blocks.Blocks[index]
		n := len(block) - 1
		// Mark as scheduled
		delete(table, blockLabel(block))
		//
		sched.Order = append(sched.Order, index)
		//
		switch last := block[n].(type) {
		case *tree.Jump:
			if next, ok := lookup(table, last.Targets); ok {
				// Drop jump, since target falls through.
				sched.Stmts = append(sched.Stmts, block[:n]...)
				index = next
				//
				continue
			}
			//
			sched.Stmts = append(sched.Stmts, block...)
			//
			return
		case *tree.CJump:
			sched.Stmts = append(sched.Stmts, block[:n]...)
			//
			if next, ok := table[last.False]; ok {
				sched.Stmts = append(sched.Stmts, last)
				index = next
			} else if next, ok := table[last.True]; ok {
				// Negate so that true block falls through.
				neg := &tree.CJump{Op: tree.NotRel(last.Op), Left: last.Left, Right: last.Right,
					True: last.False, False: last.True}
				sched.Stmts = append(sched.Stmts, neg)
				index = next
			} else {
				// Neither block is available, so introduce a new false block.
				ff := p.factory.NewLabel()
				cjmp := &tree.CJump{Op: last.Op, Left: last.Left, Right: last.Right, True: last.True, False: ff}
				sched.Stmts = append(sched.Stmts, cjmp, &tree.Label{Label: ff}, tree.NewJump(last.False))
				//
				return
			}
		default:
			panic(fmt.Sprintf("bad basic block in trace schedule (%s)", block[n]))
		}
	}
}

// Lookup the block for a jump with exactly one possible target.
func lookup(table map[temp.Label]int, targets []temp.Label) (int, bool) {
	if len(targets) == 1 {
		index, ok := table[targets[0]]
		return index, ok
	}
	//
	return 0, false
}

func blockLabel(block []tree.Stmt) temp.Label {
	if l, ok := block[0].(*tree.Label); ok {
		return l.Label
	}
	//
	panic(fmt.Sprintf("bad basic block in trace schedule (%s)", block[0]))
}
