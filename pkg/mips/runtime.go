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
package mips

import (
	"fmt"
	"strings"

	"github.com/consensys/go-mjc/pkg/temp"
)

// Runtime support routines, called via Frame.ExternalCall.
var programTail = []string{
	"\t.text",
	"\t.globl _halloc",
	"_halloc:",
	"\tli $v0,9",
	"\tsyscall",
	"\tjr $ra",
	"",
	"\t.text",
	"\t.globl _printint",
	"_printint:",
	"\tli $v0,1",
	"\tsyscall",
	"\tla $a0,_newline",
	"\tli $v0,4",
	"\tsyscall",
	"\tjr $ra",
	"",
	"\t.text",
	"\t.globl _error",
	"_error:",
	"\tla $a0,_errmsg",
	"\tli $v0,4",
	"\tsyscall",
	"\tli $v0,10",
	"\tsyscall",
	"",
	"\t.data",
	"\t.align 0",
	"_newline:",
	"\t.asciiz \"\\n\"",
	"\t.data",
	"\t.align 0",
	"_errmsg:",
	"\t.asciiz \" ERROR: abnormal termination\\n\"",
}

// ProgramTail implementation for the frame.Machine interface.
func (p *Machine) ProgramTail() string {
	return strings.Join(programTail, "\n") + "\n"
}

// StringData implementation for the frame.Machine interface.  A string is laid
// out as its length, followed by its (null terminated) characters.  The label
// addresses the characters.
func (p *Machine) StringData(label temp.Label, value string) string {
	var builder strings.Builder
	//
	builder.WriteString("\t.data\n")
	builder.WriteString(fmt.Sprintf("\t.word %d\n", len(value)))
	builder.WriteString(fmt.Sprintf("%s:\n", label.Name()))
	builder.WriteString(fmt.Sprintf("\t.asciiz \"%s\"\n", escape(value)))
	//
	return builder.String()
}

// Escape a string for use in an assembler string literal.  Non-printable
// characters are written in octal.
func escape(value string) string {
	var builder strings.Builder
	//
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '\b':
			builder.WriteString("\\b")
		case '\t':
			builder.WriteString("\\t")
		case '\n':
			builder.WriteString("\\n")
		case '\f':
			builder.WriteString("\\f")
		case '\r':
			builder.WriteString("\\r")
		case '"':
			builder.WriteString("\\\"")
		case '\\':
			builder.WriteString("\\\\")
		default:
			if c < ' ' || c > '~' {
				builder.WriteString(fmt.Sprintf("\\%03o", c))
			} else {
				builder.WriteByte(c)
			}
		}
	}
	//
	return builder.String()
}
