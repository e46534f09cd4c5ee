// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/localnode"
	"github.com/luxfi/chainclient/node"
	"github.com/luxfi/chainclient/storage"
)

// testExecutor is the external-collaborator stand-in spec §1 carves out
// (validator-side WorkerState / Wasm execution). It keeps its own
// per-chain balance ledger, since the Executor interface only ever
// receives a block and the manager in effect, not the chain's running
// balance.
type testExecutor struct {
	mu       sync.Mutex
	balances map[chainid.ID]block.Balance
}

func newTestExecutor(initial map[chainid.ID]block.Balance) *testExecutor {
	balances := make(map[chainid.ID]block.Balance, len(initial))
	for id, bal := range initial {
		balances[id] = bal
	}
	return &testExecutor{balances: balances}
}

func (e *testExecutor) Execute(_ context.Context, b block.Block, manager committee.Manager) (localnode.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	balance := e.balances[b.ChainID]
	outManager := manager
	var outgoing []localnode.OutgoingMessage

	for _, op := range b.Operations {
		switch op.Kind {
		case opTransfer:
			var p transferPayload
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return localnode.ExecutionResult{}, err
			}
			balance -= block.Balance(p.Amount)
			outgoing = append(outgoing, localnode.OutgoingMessage{
				Destination: p.Recipient,
				Message: block.IncomingMessage{
					Origin: b.ChainID,
					Height: b.Height,
					Kind:   block.MessageCredit,
					Data:   op.Payload,
				},
			})
		case opBurn:
			var p burnPayload
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return localnode.ExecutionResult{}, err
			}
			balance -= block.Balance(p.Amount)
		case opChangeOwner:
			var p changeOwnerPayload
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return localnode.ExecutionResult{}, err
			}
			outManager = committee.NewSingle(p.NewOwner)
		case opChangeMultipleOwners:
			var p changeMultipleOwnersPayload
			if err := json.Unmarshal(op.Payload, &p); err != nil {
				return localnode.ExecutionResult{}, err
			}
			outManager = committee.NewMulti(p.NewOwners...)
		case opCloseChain:
			outManager = committee.NewNone()
		}
	}

	for _, g := range b.IncomingMessages {
		for _, m := range g.Messages {
			if m.Kind != block.MessageCredit {
				continue
			}
			var p transferPayload
			if err := json.Unmarshal(m.Data, &p); err == nil {
				balance += block.Balance(p.Amount)
			}
		}
	}

	e.balances[b.ChainID] = balance
	return localnode.ExecutionResult{
		StateHash: b.Hash(),
		Balance:   balance,
		Manager:   outManager,
		Outgoing:  outgoing,
	}, nil
}

// validatorNode wraps a production *localnode.Node to stand in for one
// validator in tests: HandleChainInfoQuery and the confirmed-certificate
// path of HandleCertificate are the real Local Node logic (grounded in
// localnode.go, the same code the Driver's own local mirror runs), with
// HandleChainInfoQuery's response stamped with this validator's name and
// a placeholder signature so it passes ChainInfoResponse.Check. Only
// HandleBlockProposal and the validated-certificate (phase-2 finalize)
// path of HandleCertificate are added here, since spec §1 explicitly
// places validator-side execution out of scope for this core — this is
// the minimal capability (§9 "any type providing the four RPC
// operations is acceptable") needed to drive the Chain Driver
// end-to-end in a test.
type validatorNode struct {
	*localnode.Node
	name committee.ValidatorName

	mu       sync.Mutex
	proposalErr error
}

func newValidatorNode(name committee.ValidatorName, exec localnode.Executor) *validatorNode {
	return &validatorNode{
		Node: localnode.New(storage.NewMemStore(), exec, log.NewNoOpLogger()),
		name: name,
	}
}

func (v *validatorNode) HandleChainInfoQuery(ctx context.Context, query node.ChainInfoQuery) (node.ChainInfoResponse, error) {
	resp, err := v.Node.HandleChainInfoQuery(ctx, query)
	if err != nil {
		return resp, err
	}
	resp.Validator = v.name
	resp.Signature = []byte{1}
	return resp, nil
}

func (v *validatorNode) HandleBlockProposal(ctx context.Context, proposal block.BlockProposal) (*block.Vote, error) {
	v.mu.Lock()
	err := v.proposalErr
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	resp, err := v.HandleChainInfoQuery(ctx, node.ChainInfoQuery{ChainID: proposal.Block.ChainID})
	if err != nil {
		return nil, err
	}
	if proposal.Block.Height > resp.Info.NextBlockHeight {
		return nil, &node.MissingPreviousBlockError{Height: uint64(resp.Info.NextBlockHeight)}
	}

	result, err := v.StageBlockExecution(ctx, proposal.Block)
	if err != nil {
		return nil, err
	}

	var value block.Value
	switch resp.Info.Manager.Kind() {
	case committee.KindSingle:
		value = block.ConfirmedBlock(proposal.Block, result.StateHash)
	case committee.KindMulti:
		value = block.ValidatedBlock(proposal.Block, proposal.Round, result.StateHash)
	default:
		return nil, node.ErrInvalidCertificate
	}
	return &block.Vote{Validator: v.name, Value: value, Signature: []byte{1}}, nil
}

func (v *validatorNode) HandleCertificate(ctx context.Context, cert block.Certificate) (*block.Vote, error) {
	if cert.Value.Kind == block.KindValidatedBlock {
		result, err := v.StageBlockExecution(ctx, cert.Value.Block)
		if err != nil {
			return nil, err
		}
		value := block.ConfirmedBlock(cert.Value.Block, result.StateHash)
		return &block.Vote{Validator: v.name, Value: value, Signature: []byte{1}}, nil
	}
	return v.Node.HandleCertificate(ctx, cert)
}

func (v *validatorNode) HandleCrossChainRequest(_ context.Context, _ chainid.ID, _ []block.MessageGroup) error {
	return nil
}

var _ node.ValidatorNode = (*validatorNode)(nil)
