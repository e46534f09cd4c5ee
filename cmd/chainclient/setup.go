// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainclient"
	cconfig "github.com/luxfi/chainclient/config"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/localnode"
	"github.com/luxfi/chainclient/node"
	"github.com/luxfi/chainclient/node/rpc"
	"github.com/luxfi/chainclient/session"
	"github.com/luxfi/chainclient/storage"
)

func loadConfig(path string) (cconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cconfig.Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := cconfig.Parse(data)
	if err != nil {
		return cconfig.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return cconfig.Config{}, err
	}
	return cfg, nil
}

func dial(address string) (*grpc.ClientConn, error) {
	return grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// dialValidators connects to every validator named in cfg over gRPC,
// using the gob-codec transport in package node/rpc.
func dialValidators(cfg cconfig.Config) (map[committee.ValidatorName]node.ValidatorNode, error) {
	clients := make(map[committee.ValidatorName]node.ValidatorNode, len(cfg.Validators))
	for _, v := range cfg.Validators {
		nodeID, err := ids.NodeIDFromString(v.NodeID)
		if err != nil {
			return nil, fmt.Errorf("parsing node_id %q: %w", v.NodeID, err)
		}
		conn, err := dial(v.Address)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", v.Address, err)
		}
		clients[nodeID] = rpc.NewClient(conn)
	}
	return clients, nil
}

// executorStub satisfies localnode.Executor for a CLI process, which
// never itself executes blocks: every write operation goes through the
// validators and comes back as a certificate, and HandleCertificate
// calls this executor only to recompute the state hash the validators
// already agreed on. A long-running service binary would wire the real
// Wasm-backed executor here instead; a one-shot CLI invocation has no
// need to re-execute what it just watched the network certify.
type executorStub struct{}

func (executorStub) Execute(ctx context.Context, b block.Block, m committee.Manager) (localnode.ExecutionResult, error) {
	return localnode.ExecutionResult{}, fmt.Errorf("chainclient: this binary does not execute blocks locally")
}

func newDriver(chain ids.ID, cfg cconfig.Config, logger log.Logger) (*chainclient.Driver, error) {
	store := storage.NewMemStore()
	local := localnode.New(store, executorStub{}, logger)
	clients, err := dialValidators(cfg)
	if err != nil {
		return nil, err
	}
	sess := session.New(chain, 0, nil, cfg.CrossChainDelay, cfg.CrossChainRetries)
	if kp, ok, err := cfg.KeyPair(); err != nil {
		return nil, err
	} else if ok {
		sess.AddKeyPair(kp)
	}
	return chainclient.New(sess, local, store, clients, logger, prometheus.DefaultRegisterer), nil
}
