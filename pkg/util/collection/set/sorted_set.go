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
package set

import (
	"cmp"
	"sort"
)

// SortedSet is an array of unique elements held in ascending order.  Iterating
// the underlying array therefore visits elements deterministically.
type SortedSet[T cmp.Ordered] []T

// NewSortedSet returns a sorted set containing the given elements.
func NewSortedSet[T cmp.Ordered](elements ...T) *SortedSet[T] {
	set := &SortedSet[T]{}
	//
	for _, e := range elements {
		set.Insert(e)
	}
	//
	return set
}

// Len returns the number of elements in this set.
func (p *SortedSet[T]) Len() int {
	return len(*p)
}

// IsEmpty checks whether this set has no elements.
func (p *SortedSet[T]) IsEmpty() bool {
	return len(*p) == 0
}

// Contains returns true if a given element is in the set.
func (p *SortedSet[T]) Contains(element T) bool {
	_, found := p.search(element)
	//
	return found
}

// Insert an element into this sorted set, returning true if it was not already
// present.
func (p *SortedSet[T]) Insert(element T) bool {
	data := *p
	i, found := p.search(element)
	//
	if found {
		return false
	}
	//
	ndata := make([]T, len(data)+1)
	copy(ndata, data[0:i])
	ndata[i] = element
	copy(ndata[i+1:], data[i:])
	*p = ndata
	//
	return true
}

// Remove an element from this sorted set, returning true if it was present.
func (p *SortedSet[T]) Remove(element T) bool {
	data := *p
	i, found := p.search(element)
	//
	if !found {
		return false
	}
	//
	ndata := make([]T, len(data)-1)
	copy(ndata, data[0:i])
	copy(ndata[i:], data[i+1:])
	*p = ndata
	//
	return true
}

// First returns the smallest element of a non-empty set.
func (p *SortedSet[T]) First() T {
	return (*p)[0]
}

// InsertSorted inserts all elements in a given sorted set into this set.
func (p *SortedSet[T]) InsertSorted(q *SortedSet[T]) {
	left := *p
	right := *q
	// Check containment
	n := countDuplicates(left, right)
	//
	if n == len(right) {
		// Right set completely included in left, so nothing to do.
		return
	}
	//
	ndata := make([]T, len(left)+len(right)-n)
	mergeSorted(ndata, left, right)
	*p = ndata
}

// Find index where element either does occur, or should occur.
func (p *SortedSet[T]) search(element T) (int, bool) {
	data := *p
	i := sort.Search(len(data), func(i int) bool {
		return element <= data[i]
	})
	//
	return i, i < len(data) && data[i] == element
}

// Determine number of duplicate elements
func countDuplicates[T cmp.Ordered](left []T, right []T) int {
	i, j, n := 0, 0, 0
	//
	for i < len(left) && j < len(right) {
		if left[i] < right[j] {
			i++
		} else if left[i] > right[j] {
			j++
		} else {
			i++
			j++
			n++
		}
	}
	//
	return n
}

// Merge two sorted arrays into a target array, which is assumed big enough.
func mergeSorted[T cmp.Ordered](target []T, left []T, right []T) {
	i, j, k := 0, 0, 0
	//
	for ; i < len(left) && j < len(right); k++ {
		if left[i] < right[j] {
			target[k] = left[i]
			i++
		} else if left[i] > right[j] {
			target[k] = right[j]
			j++
		} else {
			target[k] = left[i]
			i++
			j++
		}
	}
	//
	if i < len(left) {
		copy(target[k:], left[i:])
	} else if j < len(right) {
		copy(target[k:], right[j:])
	}
}
