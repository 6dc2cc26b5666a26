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
package bit

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"
)

// Set is a set of small (unsigned) integers implemented as an array of bits.
// The zero value is an empty set, and the set grows as needed.
type Set struct {
	words []uint64
}

// NewSet creates an empty set with space for values below n.
func NewSet(n uint) Set {
	return Set{make([]uint64, 0, (n+63)/64)}
}

// Clone creates a copy of this set, ensuring no aliasing between them.
func (p *Set) Clone() Set {
	return Set{slices.Clone(p.words)}
}

// Insert a given value into this set.
func (p *Set) Insert(val uint) {
	word := val / 64
	//
	for uint(len(p.words)) <= word {
		p.words = append(p.words, 0)
	}
	//
	p.words[word] |= uint64(1) << (val % 64)
}

// InsertAll inserts zero or more elements into this set.
func (p *Set) InsertAll(vals ...uint) {
	for _, v := range vals {
		p.Insert(v)
	}
}

// Remove a given value from this set.
func (p *Set) Remove(val uint) {
	if word := val / 64; uint(len(p.words)) > word {
		p.words[word] &^= uint64(1) << (val % 64)
	}
}

// Union inserts all elements of a given set into this set, returning true if
// this set was changed.
func (p *Set) Union(other Set) bool {
	changed := false
	//
	for len(p.words) < len(other.words) {
		p.words = append(p.words, 0)
	}
	//
	for w := range other.words {
		tmp := p.words[w] | other.words[w]
		changed = changed || tmp != p.words[w]
		p.words[w] = tmp
	}
	//
	return changed
}

// Subtract removes all elements of a given set from this set.
func (p *Set) Subtract(other Set) {
	n := min(len(p.words), len(other.words))
	//
	for w := 0; w < n; w++ {
		p.words[w] &^= other.words[w]
	}
}

// Contains checks whether a given value is contained, or not.
func (p *Set) Contains(val uint) bool {
	word := val / 64
	//
	if uint(len(p.words)) <= word {
		return false
	}
	//
	return p.words[word]&(uint64(1)<<(val%64)) != 0
}

// Equals checks whether two sets hold exactly the same elements.  Trailing
// empty words are ignored.
func (p *Set) Equals(other Set) bool {
	n := max(len(p.words), len(other.words))
	//
	for w := 0; w < n; w++ {
		if wordAt(p.words, w) != wordAt(other.words, w) {
			return false
		}
	}
	//
	return true
}

// Count returns the number of elements in this set.
func (p *Set) Count() uint {
	count := 0
	//
	for _, w := range p.words {
		count += bits.OnesCount64(w)
	}
	//
	return uint(count)
}

// IsEmpty checks whether this set has no elements.
func (p *Set) IsEmpty() bool {
	for _, w := range p.words {
		if w != 0 {
			return false
		}
	}
	//
	return true
}

// Elements returns the elements of this set in ascending order.
func (p *Set) Elements() []uint {
	elems := make([]uint, 0, p.Count())
	//
	for i, w := range p.words {
		for w != 0 {
			bit := uint(bits.TrailingZeros64(w))
			elems = append(elems, uint(i)*64+bit)
			w &= w - 1
		}
	}
	//
	return elems
}

func (p *Set) String() string {
	var builder strings.Builder
	//
	builder.WriteString("[")
	//
	for i, v := range p.Elements() {
		if i != 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(fmt.Sprintf("%d", v))
	}
	//
	builder.WriteString("]")
	//
	return builder.String()
}

func wordAt(words []uint64, i int) uint64 {
	if i < len(words) {
		return words[i]
	}
	//
	return 0
}
