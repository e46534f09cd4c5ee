// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
)

func inboxCmd() *cobra.Command {
	var configPath, chainStr string
	cmd := &cobra.Command{
		Use:   "process-inbox",
		Short: "Pull and apply pending cross-chain messages",
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
			cert, err := d.ProcessInbox(cmd.Context())
			if err != nil {
				return err
			}
			if cert == nil {
				fmt.Println("inbox empty")
				return nil
			}
			fmt.Printf("confirmed at height %d\n", cert.Value.Block.Height)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "chainclient.yaml", "committee roster file")
	cmd.Flags().StringVar(&chainStr, "chain", "", "chain id to process")
	cmd.MarkFlagRequired("chain")
	return cmd
}
