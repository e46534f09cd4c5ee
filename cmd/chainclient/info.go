// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	var configPath, chainStr string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the confirmed balance of a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			chain, err := ids.FromString(chainStr)
			if err != nil {
				return fmt.Errorf("parsing --chain: %w", err)
			}
			d, err := newDriver(chain, cfg, log.NewNoOpLogger())
			if err != nil {
				return err
			}
			balance, err := d.SynchronizeBalance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("chain %s: balance=%d\n", chain, balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "chainclient.yaml", "committee roster file")
	cmd.Flags().StringVar(&chainStr, "chain", "", "chain id to query")
	cmd.MarkFlagRequired("chain")
	return cmd
}
