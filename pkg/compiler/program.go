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
package compiler

import (
	"io"

	"github.com/consensys/go-mjc/pkg/assem"
	"github.com/consensys/go-mjc/pkg/frame"
)

// Program is the result of compiling a set of fragments.
type Program struct {
	machine frame.Machine
	Methods []*Method
	Data    []*frame.DataFragment
}

// Method returns the compiled method with a given name, or nil.
func (p *Program) Method(name string) *Method {
	for _, m := range p.Methods {
		if m.Frame.Name().Name() == name {
			return m
		}
	}
	//
	return nil
}

// Emit writes the program as assembly text.  Each method is written as its
// prologue, body and epilogue.  These are followed by the string literals and,
// finally, the runtime support routines.
func (p *Program) Emit(out io.Writer) error {
	for _, m := range p.Methods {
		if _, err := io.WriteString(out, m.Proc.Prologue); err != nil {
			return err
		} else if err := assem.Print(out, m.Proc.Body, m.Allocation); err != nil {
			return err
		} else if _, err := io.WriteString(out, m.Proc.Epilogue); err != nil {
			return err
		}
	}
	//
	for _, d := range p.Data {
		if _, err := io.WriteString(out, p.machine.StringData(d.Label, d.Data)); err != nil {
			return err
		}
	}
	//
	_, err := io.WriteString(out, p.machine.ProgramTail())
	//
	return err
}
