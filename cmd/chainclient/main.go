// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chainclient",
	Short: "Chain client tools for querying, proposing, and inspecting quorum-certified chains",
	Long: `chainclient drives a single chain against a validator committee: it
proposes blocks, waits for a quorum certificate, and keeps a local
session in sync with the network.

Key features:
- Query a chain's balance (info)
- Submit a confirmed transfer (transfer)
- Apply a chain's pending cross-chain messages (process-inbox)`,
}

func main() {
	rootCmd.AddCommand(
		infoCmd(),
		transferCmd(),
		inboxCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
