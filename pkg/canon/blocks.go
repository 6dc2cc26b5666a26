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

// Blocks is a list of basic blocks.  Every block begins with a Label, ends
// with a Jump or CJump, and contains no other labels or control transfers.
// Control leaves the final block by jumping to Done.
type Blocks struct {
	Blocks [][]tree.Stmt
	Done   temp.Label
}

// BasicBlocks partitions a list of canonical statements into basic blocks.  A
// fresh label is inserted at the start of any block which lacks one, and a
// jump is inserted at the end of any block which falls into the next.
func (p *Canon) BasicBlocks(stmts []tree.Stmt) *Blocks {
	var (
		blocks [][]tree.Stmt
		block  []tree.Stmt
		done   = p.factory.NewLabel()
	)
	//
	for _, s := range stmts {
		if block == nil {
			// Start a new block
			if _, ok := s.(*tree.Label); !ok {
				block = []tree.Stmt{&tree.Label{Label: p.factory.NewLabel()}}
			}
		}
		//
		switch s := s.(type) {
		case *tree.Label:
			if block != nil {
				// Fall through into this label
				blocks = append(blocks, append(block, tree.NewJump(s.Label)))
			}
			//
			block = []tree.Stmt{s}
		case *tree.Jump, *tree.CJump:
			blocks = append(blocks, append(block, s))
			block = nil
		default:
			block = append(block, s)
		}
	}
	// Close final block
	if block != nil {
		blocks = append(blocks, append(block, tree.NewJump(done)))
	}
	//
	return &Blocks{blocks, done}
}

// Check that every block is well formed, or panic.
func (p *Blocks) Check() {
	for i, b := range p.Blocks {
		if len(b) < 2 {
			panic(fmt.Sprintf("basic block %d is too short", i))
		} else if _, ok := b[0].(*tree.Label); !ok {
			panic(fmt.Sprintf("basic block %d does not start with label", i))
		} else if !isTransfer(b[len(b)-1]) {
			panic(fmt.Sprintf("basic block %d does not end with jump", i))
		}
		//
		for _, s := range b[1 : len(b)-1] {
			if _, ok := s.(*tree.Label); ok || isTransfer(s) {
				panic(fmt.Sprintf("basic block %d has control statement %s", i, s))
			}
		}
	}
}

func isTransfer(s tree.Stmt) bool {
	switch s.(type) {
	case *tree.Jump, *tree.CJump:
		return true
	default:
		return false
	}
}
