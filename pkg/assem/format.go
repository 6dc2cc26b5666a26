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
package assem

import (
	"fmt"
	"io"
	"strings"

	"github.com/consensys/go-mjc/pkg/temp"
)

// Expand an instruction template.  Operand indices may have more than one
// digit.  A malformed escape or out-of-range index indicates a bug in the
// instruction selector, and therefore panics.
func format(assem string, dst []temp.Temp, src []temp.Temp, jumps []temp.Label, m temp.Map) string {
	var (
		builder strings.Builder
		n       = len(assem)
	)
	//
	for i := 0; i < n; i++ {
		if assem[i] != '`' {
			builder.WriteByte(assem[i])
			continue
		} else if i+1 == n {
			panic(fmt.Sprintf("unterminated escape in \"%s\"", assem))
		}
		//
		kind := assem[i+1]
		i += 2
		// Parse index
		start := i
		index := 0
		//
		for ; i < n && assem[i] >= '0' && assem[i] <= '9'; i++ {
			index = (index * 10) + int(assem[i]-'0')
		}
		//
		if kind == '`' {
			builder.WriteByte('`')
			i = start - 1
			//
			continue
		} else if start == i {
			panic(fmt.Sprintf("missing operand index in \"%s\"", assem))
		}
		//
		switch kind {
		case 's':
			builder.WriteString(temp.Name(m, operand(assem, src, index)))
		case 'd':
			builder.WriteString(temp.Name(m, operand(assem, dst, index)))
		case 'j':
			builder.WriteString(operand(assem, jumps, index).Name())
		default:
			panic(fmt.Sprintf("bad escape \"`%c\" in \"%s\"", kind, assem))
		}
		// Account for loop increment
		i--
	}
	//
	return builder.String()
}

func operand[T any](assem string, operands []T, index int) T {
	if index >= len(operands) {
		panic(fmt.Sprintf("operand %d out of range in \"%s\"", index, assem))
	}
	//
	return operands[index]
}

// Print writes a sequence of instructions to a given writer, one per line.
// Labels are written flush left, whilst other instructions are indented.
func Print(out io.Writer, instrs []Instr, m temp.Map) error {
	for _, instr := range instrs {
		var err error
		//
		if _, ok := instr.(*Label); ok {
			_, err = fmt.Fprintln(out, instr.Format(m))
		} else {
			_, err = fmt.Fprintf(out, "\t%s\n", instr.Format(m))
		}
		//
		if err != nil {
			return err
		}
	}
	//
	return nil
}
