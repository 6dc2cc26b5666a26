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

// Map describes a mapping from temporaries to (register) names.  A mapping
// can be partial, in which case false is returned for unmapped temporaries.
type Map interface {
	TempMap(t Temp) (string, bool)
}

// MapFunc adapts an ordinary function into a Map.
type MapFunc func(Temp) (string, bool)

// TempMap implementation for the Map interface.
func (f MapFunc) TempMap(t Temp) (string, bool) {
	return f(t)
}

// DefaultMap maps every temporary onto its own name (e.g. "t12").  This is
// useful for printing instructions before register allocation.
type DefaultMap struct{}

// TempMap implementation for the Map interface.
func (DefaultMap) TempMap(t Temp) (string, bool) {
	return t.String(), true
}

// CombineMap consults a first mapping and, when that has no entry, falls back
// to a second.
type CombineMap struct {
	first  Map
	second Map
}

// NewCombineMap constructs a map which tries first and then second.
func NewCombineMap(first Map, second Map) *CombineMap {
	return &CombineMap{first, second}
}

// TempMap implementation for the Map interface.
func (p *CombineMap) TempMap(t Temp) (string, bool) {
	if name, ok := p.first.TempMap(t); ok {
		return name, true
	}
	//
	return p.second.TempMap(t)
}

// Name returns the name of a temporary under a given mapping, or its default
// name if unmapped.
func Name(m Map, t Temp) string {
	if name, ok := m.TempMap(t); ok {
		return name
	}
	//
	return t.String()
}
