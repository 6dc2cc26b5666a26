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
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/consensys/go-mjc/pkg/compiler"
	"github.com/consensys/go-mjc/pkg/flowgraph"
	"github.com/consensys/go-mjc/pkg/liveness"
	"github.com/consensys/go-mjc/pkg/temp"
	"github.com/consensys/go-mjc/pkg/util/termio"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug [flags] ir_file",
	Short: "print intermediate forms of each compiled procedure.",
	Long: `Print the intermediate forms produced whilst compiling a given IR file,
	such as the canonical statements, flow graph, liveness information and
	register allocation of each procedure.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		//
		canonical := GetFlag(cmd, "canon")
		flow := GetFlag(cmd, "flowgraph")
		interference := GetFlag(cmd, "interference")
		textWidth := GetUint(cmd, "textwidth")
		program := compileFile(args[0], getCompilerConfig(cmd))
		//
		if GetFlag(cmd, "json") {
			printAllocationReport(program)
			return
		}
		//
		for _, m := range program.Methods {
			var (
				live   = liveness.Analyse(flowgraph.New(m.Instrs))
				header = termio.NewAnsiEscape().Bold()
			)
			//
			if termio.IsTerminal(os.Stdout) {
				fmt.Printf("%s%s%s\n", header.Build(), m.Frame, termio.ResetAnsiEscape().Build())
			} else {
				fmt.Println(m.Frame)
			}
			//
			if canonical {
				for _, s := range m.Stmts {
					fmt.Printf("\t%s\n", s)
				}
			}
			//
			if flow {
				live.FlowGraph().Show(os.Stdout)
			}
			//
			if interference {
				live.Interference().Show(os.Stdout)
			}
			//
			if !canonical && !flow && !interference {
				printLiveness(m, live, textWidth)
			}
		}
	},
}

// Print each selected instruction, alongside the temporaries live on entry and
// exit.
func printLiveness(m *compiler.Method, live *liveness.Liveness, textWidth uint) {
	var (
		fg    = live.FlowGraph()
		names = temp.NewCombineMap(m.Frame, temp.DefaultMap{})
		tbl   = termio.NewTablePrinter(4)
		width = min(textWidth, termio.Width(os.Stdout))
	)
	//
	row := tbl.AddRow("#", "instruction", "live in", "live out")
	//
	for col := uint(0); col < 4; col++ {
		tbl.SetEscape(col, row, termio.NewAnsiEscape().Bold())
	}
	//
	for _, n := range fg.Nodes() {
		tbl.AddRow(fmt.Sprintf("%d", n), fg.Instr(n).Format(names), tempNames(live.LiveIn(n)),
			tempNames(live.LiveOut(n)))
	}
	// Share remaining width between live sets
	tbl.SetMaxWidth(2, width/3)
	tbl.SetMaxWidth(3, width/3)
	tbl.AnsiEscapes(termio.IsTerminal(os.Stdout))
	//
	if err := tbl.Print(os.Stdout); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
}

func tempNames(ts []temp.Temp) string {
	names := make([]string, len(ts))
	//
	for i, t := range ts {
		names[i] = t.String()
	}
	//
	return strings.Join(names, " ")
}

// methodReport summarises the register allocation of a single method.
type methodReport struct {
	Name         string            `json:"name"`
	Statements   int               `json:"statements"`
	Instructions int               `json:"instructions"`
	Emitted      int               `json:"emitted"`
	Rounds       uint              `json:"rounds"`
	Spilled      []string          `json:"spilled"`
	Registers    map[string]string `json:"registers"`
}

func printAllocationReport(program *compiler.Program) {
	reports := make([]methodReport, len(program.Methods))
	//
	for i, m := range program.Methods {
		alloc := m.Allocation
		reports[i] = methodReport{
			Name:         m.Frame.Name().Name(),
			Statements:   len(m.Stmts),
			Instructions: len(m.Instrs),
			Emitted:      len(alloc.Instrs),
			Rounds:       alloc.Rounds,
			Spilled:      make([]string, len(alloc.Spilled)),
			Registers:    make(map[string]string),
		}
		//
		for j, t := range alloc.Spilled {
			reports[i].Spilled[j] = t.String()
		}
		// Assignment of every non-precoloured temporary in the final code.
		for _, instr := range alloc.Instrs {
			for _, t := range slices.Concat(instr.Def(), instr.Use()) {
				if _, ok := m.Frame.TempMap(t); !ok {
					reports[i].Registers[t.String()] = temp.Name(alloc, t)
				}
			}
		}
	}
	//
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	//
	if err := encoder.Encode(reports); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.Flags().Bool("canon", false, "Print canonical statements in scheduled order")
	debugCmd.Flags().Bool("flowgraph", false, "Print the flow graph of selected instructions")
	debugCmd.Flags().Bool("interference", false, "Print the interference graph")
	debugCmd.Flags().Bool("json", false, "Print a register allocation report as JSON")
	debugCmd.Flags().Uint("textwidth", 130, "Set maximum textwidth to use")
}
