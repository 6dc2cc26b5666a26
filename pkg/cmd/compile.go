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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] ir_file",
	Short: "compile an IR file into MIPS assembly.",
	Long: `Compile the procedures and string literals of a given IR file into MIPS
	assembly, including the runtime support routines.`,
	Run: func(cmd *cobra.Command, args []string) {
		var out io.Writer = os.Stdout
		//
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		program := compileFile(args[0], getCompilerConfig(cmd))
		output := GetString(cmd, "output")
		//
		if output != "-" {
			file, err := os.Create(output)
			if err != nil {
				fmt.Println(err)
				os.Exit(2)
			}
			//
			defer file.Close()
			out = file
		}
		//
		writer := bufio.NewWriter(out)
		//
		if err := program.Emit(writer); err != nil {
			fmt.Println(err)
			os.Exit(2)
		} else if err := writer.Flush(); err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
	},
}

//nolint:errcheck
func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "-", "specify output file (or - for stdout).")
}
