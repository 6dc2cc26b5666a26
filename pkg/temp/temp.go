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
package temp

import (
	"fmt"
	"sync/atomic"
)

// Temp represents an abstract (virtual) register.  Temporaries are identified
// by a unique number which is never reused within a compilation unit.
type Temp uint

func (t Temp) String() string {
	return fmt.Sprintf("t%d", uint(t))
}

// Label represents a symbolic location in the program, such as the entry point
// of a function, a branch target or a string literal.
type Label struct {
	name string
}

// Name returns the textual name of this label.
func (l Label) Name() string {
	return l.name
}

func (l Label) String() string {
	return l.name
}

// IsZero checks whether this label is the zero value (i.e. was never
// allocated).
func (l Label) IsZero() bool {
	return l.name == ""
}

// Factory allocates fresh temporaries and labels for a compilation unit.  All
// methods compiled within the same unit must share a single factory, since this
// guarantees that no two methods ever use the same temporary or label.  The
// counters are updated atomically and, hence, a factory can be shared between
// goroutines.
type Factory struct {
	temps  atomic.Uint64
	labels atomic.Uint64
}

// NewFactory constructs a fresh factory whose counters start from zero.
func NewFactory() *Factory {
	return &Factory{}
}

// NewTemp allocates a fresh temporary.
func (p *Factory) NewTemp() Temp {
	return Temp(p.temps.Add(1) - 1)
}

// NewTemps allocates n fresh temporaries.
func (p *Factory) NewTemps(n uint) []Temp {
	temps := make([]Temp, n)
	//
	for i := range temps {
		temps[i] = p.NewTemp()
	}
	//
	return temps
}

// NewLabel allocates a fresh label of the form "L<n>".
func (p *Factory) NewLabel() Label {
	return Label{fmt.Sprintf("L%d", p.labels.Add(1)-1)}
}

// NamedLabel returns the label with the given name.  Named labels are used for
// function entry points and data items, and two named labels with the same
// name are the same label.
func NamedLabel(name string) Label {
	if name == "" {
		panic("empty label name")
	}
	//
	return Label{name}
}

// NamedLabel is a convenience wrapper for the package-level NamedLabel
// function, provided so that code holding a factory can allocate both kinds of
// label in the same way.
func (p *Factory) NamedLabel(name string) Label {
	return NamedLabel(name)
}

// TempCount returns the number of temporaries allocated so far.
func (p *Factory) TempCount() uint {
	return uint(p.temps.Load())
}
