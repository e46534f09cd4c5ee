// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/chainclient/block"
)

func transferCmd() *cobra.Command {
	var configPath, chainStr, recipientStr string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer value from one chain to another, confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			chain, err := ids.FromString(chainStr)
			if err != nil {
				return fmt.Errorf("parsing --chain: %w", err)
			}
			recipient, err := ids.FromString(recipientStr)
			if err != nil {
				return fmt.Errorf("parsing --to: %w", err)
			}
			d, err := newDriver(chain, cfg, log.NewNoOpLogger())
			if err != nil {
				return err
			}
			cert, err := d.TransferToChain(cmd.Context(), recipient, block.Amount(amount), nil)
			if err != nil {
				return err
			}
			fmt.Printf("confirmed at height %d\n", cert.Value.Block.Height)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "chainclient.yaml", "committee roster file")
	cmd.Flags().StringVar(&chainStr, "chain", "", "source chain id")
	cmd.Flags().StringVar(&recipientStr, "to", "", "destination chain id")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to transfer")
	cmd.MarkFlagRequired("chain")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")
	return cmd
}
