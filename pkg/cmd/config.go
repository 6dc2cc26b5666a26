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
	"github.com/consensys/go-mjc/pkg/compiler"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

// Environment variables providing defaults for command-line flags.
const (
	envVerbose     = "MJC_VERBOSE"
	envSpillRounds = "MJC_SPILL_ROUNDS"
	envEntry       = "MJC_ENTRY"
)

func defaultVerbose() bool {
	return env.Bool(envVerbose)
}

func defaultSpillRounds() uint {
	rounds := env.Int(envSpillRounds, int(compiler.DefaultConfig().MaxSpillRounds))
	//
	return uint(max(rounds, 1))
}

func defaultEntry() string {
	return env.Str(envEntry, "main")
}

// Construct the compiler configuration from the (persistent) flags.
func getCompilerConfig(cmd *cobra.Command) compiler.Config {
	config := compiler.DefaultConfig()
	config.MaxSpillRounds = GetUint(cmd, "max-spill-rounds")
	config.Coalesce = !GetFlag(cmd, "no-coalesce")
	//
	return config
}
