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
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/consensys/go-mjc/pkg/compiler"
	"github.com/consensys/go-mjc/pkg/frontend"
	"github.com/consensys/go-mjc/pkg/mips"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/util"
	"github.com/consensys/go-mjc/pkg/util/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// GetFlag gets an expected flag, or panic if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// GetUint gets an expected unsigned integer, or panic if an error arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// GetString gets an expected string, or panic if an error arises.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	return r
}

// compileFile reads a given IR file and compiles it for MIPS, reporting any
// errors and exiting on failure.
func compileFile(filename string, config compiler.Config) *compiler.Program {
	var (
		factory = temp.NewFactory()
		machine = mips.NewMachine(factory)
		stats   = util.NewPerfStats()
	)
	//
	files, err := source.ReadFiles(filename)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	//
	fragments, errs := frontend.Read(&files[0], machine, factory)
	//
	for _, err := range errs {
		printSyntaxError(&err)
	}
	//
	if len(errs) > 0 {
		os.Exit(3)
	}
	//
	stats.Log("Reading IR file")
	//
	program, err := compiler.New(machine, factory, config).Compile(fragments)
	if err != nil {
		printCompilerError(err)
		os.Exit(4)
	}
	//
	log.Debugf("compiled %d method(s) and %d string(s)", len(program.Methods), len(program.Data))
	//
	return program
}

func printCompilerError(err error) {
	var ierr *compiler.InternalError
	//
	for _, e := range unjoin(err) {
		if errors.As(e, &ierr) {
			fmt.Printf("internal failure in %s during %s: %v\n", ierr.Method, ierr.Stage, ierr.Cause)
		} else {
			fmt.Println(e)
		}
	}
}

// unjoin splits an error produced by errors.Join into its parts.
func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	//
	return []error{err}
}

// Print a syntax error with appropriate highlighting.
func printSyntaxError(err *source.SyntaxError) {
	span := err.Span()
	line := err.FirstEnclosingLine()
	lineOffset := span.Start() - line.Start()
	// Calculate length (ensures don't overflow line)
	length := max(1, min(line.Length()-lineOffset, span.Length()))
	// Print error + line number
	fmt.Printf("%s:%d:%d-%d %s\n", err.SourceFile().Filename(),
		line.Number(), 1+lineOffset, 1+lineOffset+length, err.Message())
	// Print separator line
	fmt.Println()
	// Print line
	fmt.Println(line.String())
	// Print indent
	fmt.Print(strings.Repeat(" ", max(0, lineOffset)))
	// Print highlight
	fmt.Println(strings.Repeat("^", length))
}
