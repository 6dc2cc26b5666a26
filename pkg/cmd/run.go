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
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/consensys/go-mjc/pkg/mips/sim"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] ir_file [arg...]",
	Short: "compile an IR file and execute it on the MIPS simulator.",
	Long: `Compile a given IR file, then assemble and execute the result on the
	built-in MIPS simulator.  Up to four integer arguments are passed to the
	entry procedure, whose return value is printed once it finishes.`,
	Run: func(cmd *cobra.Command, args []string) {
		var asm bytes.Buffer
		//
		if len(args) < 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		entry := GetString(cmd, "entry")
		limit := GetUint(cmd, "limit")
		params := parseArguments(args[1:])
		program := compileFile(args[0], getCompilerConfig(cmd))
		//
		if err := program.Emit(&asm); err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
		//
		prog, err := sim.Assemble(asm.String())
		if err != nil {
			fmt.Printf("assembly failed: %s\n", err)
			os.Exit(4)
		}
		//
		out := bufio.NewWriter(os.Stdout)
		simulator := sim.New(prog, out)
		simulator.SetLimit(limit)
		//
		result, err := simulator.Call(entry, params...)
		//
		out.Flush()
		log.Debugf("executed %d instructions", simulator.Steps())
		//
		if err != nil {
			fmt.Println(err)
			os.Exit(5)
		} else if !simulator.Halted() && GetFlag(cmd, "result") {
			fmt.Println(result)
		}
	},
}

func parseArguments(args []string) []int32 {
	params := make([]int32, len(args))
	//
	for i, arg := range args {
		v, err := strconv.ParseInt(arg, 0, 32)
		if err != nil {
			fmt.Printf("invalid argument \"%s\"\n", arg)
			os.Exit(1)
		}
		//
		params[i] = int32(v)
	}
	//
	return params
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("entry", "e", defaultEntry(), "procedure to execute")
	runCmd.Flags().Uint("limit", sim.DefaultLimit, "maximum number of instructions to execute")
	runCmd.Flags().Bool("result", true, "print the value returned by the entry procedure")
}
