// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainclient implements the Chain Driver: the public API that
// prepares a chain, proposes blocks, collects quorum, certifies, and
// advances validators, one session at a time. It is the only component
// that mutates a session.State; the session itself holds no lock.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/localnode"
	"github.com/luxfi/chainclient/node"
	"github.com/luxfi/chainclient/quorum"
	"github.com/luxfi/chainclient/session"
	"github.com/luxfi/chainclient/storage"
	"github.com/luxfi/chainclient/updater"
)

// Driver is the Chain Driver for a single chain. It is not safe for
// concurrent use: callers that want parallelism should hold one Driver
// (and the session.State it wraps) per chain, and serialize calls to a
// given Driver themselves — spec §5 places the exclusivity requirement
// on the session, which this type owns outright.
type Driver struct {
	session    *session.State
	local      *localnode.Node
	store      storage.Store
	validators []committee.ValidatorName
	clients    map[committee.ValidatorName]node.ValidatorNode
	log        log.Logger
	metrics    *Metrics
}

// New builds a Chain Driver over an existing session and local node,
// talking to the given validator clients.
func New(
	sess *session.State,
	local *localnode.Node,
	store storage.Store,
	clients map[committee.ValidatorName]node.ValidatorNode,
	logger log.Logger,
	reg prometheus.Registerer,
) *Driver {
	names := make([]committee.ValidatorName, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	return &Driver{
		session:    sess,
		local:      local,
		store:      store,
		validators: names,
		clients:    clients,
		log:        logger,
		metrics:    newMetrics(reg),
	}
}

func (d *Driver) chainInfo(ctx context.Context, queryCommittees, queryPending bool) (node.ChainInfo, error) {
	resp, err := d.local.HandleChainInfoQuery(ctx, node.ChainInfoQuery{
		ChainID:          d.session.ChainID,
		QueryCommittees:  queryCommittees,
		QueryPendingMessages: queryPending,
	})
	if err != nil {
		return node.ChainInfo{}, err
	}
	return resp.Info, nil
}

func (d *Driver) committee(ctx context.Context) (committee.Committee, error) {
	info, err := d.chainInfo(ctx, true, false)
	if err != nil {
		return committee.Committee{}, err
	}
	if len(info.QueriedCommittees) == 0 {
		return committee.Committee{}, ErrInactiveChain
	}
	return info.QueriedCommittees[len(info.QueriedCommittees)-1], nil
}

func (d *Driver) pendingMessages(ctx context.Context) ([]block.MessageGroup, error) {
	info, err := d.chainInfo(ctx, false, true)
	if err != nil {
		return nil, err
	}
	return info.QueriedPendingMessages, nil
}

// identity resolves which owner this session should sign proposals as,
// per spec §4.5.3.
func (d *Driver) identity(ctx context.Context) (committee.Owner, error) {
	info, err := d.chainInfo(ctx, false, false)
	if err != nil {
		return committee.Owner{}, err
	}
	switch info.Manager.Kind() {
	case committee.KindSingle:
		owner := info.Manager.SingleOwner()
		if _, ok := d.session.KnownKeyPairs[owner]; !ok {
			return committee.Owner{}, ErrNoSigningKey
		}
		return owner, nil
	case committee.KindMulti:
		var found committee.Owner
		count := 0
		for _, owner := range info.Manager.Owners() {
			if _, ok := d.session.KnownKeyPairs[owner]; ok {
				found = owner
				count++
			}
		}
		switch count {
		case 0:
			return committee.Owner{}, ErrNoSigningKey
		case 1:
			return found, nil
		default:
			return committee.Owner{}, ErrAmbiguousIdentity
		}
	default:
		return committee.Owner{}, ErrInactiveChain
	}
}

func (d *Driver) keyPair(ctx context.Context) (session.KeyPair, error) {
	owner, err := d.identity(ctx)
	if err != nil {
		return session.KeyPair{}, err
	}
	return d.session.KnownKeyPairs[owner], nil
}

// prepareChain implements spec §4.5.1: sync history, and advance the
// session's tracked tip if the network is ahead of it.
func (d *Driver) prepareChain(ctx context.Context) error {
	info, err := d.local.DownloadCertificates(ctx, d.validators, d.clients, d.session.ChainID, d.session.NextBlockHeight)
	if err != nil {
		return fmt.Errorf("chainclient: preparing chain: %w", err)
	}
	if info.NextBlockHeight == d.session.NextBlockHeight {
		if !hashesEqual(d.session.BlockHash, info.BlockHash) {
			return node.ErrInvalidBlockChaining
		}
	}
	if info.Manager.Kind() == committee.KindMulti {
		info, err = d.local.SynchronizeChainState(ctx, d.validators, d.clients, d.session.ChainID)
		if err != nil {
			return fmt.Errorf("chainclient: synchronizing chain state: %w", err)
		}
	}
	if laterThan(info.NextBlockHeight, chainid.RoundNumber(info.Manager.NextRound()), d.session.NextBlockHeight, d.session.NextRound) {
		d.session.NextBlockHeight = info.NextBlockHeight
		d.session.NextRound = chainid.RoundNumber(info.Manager.NextRound())
		d.session.BlockHash = info.BlockHash
	}
	return nil
}

func laterThan(h1 chainid.BlockHeight, r1 chainid.RoundNumber, h2 chainid.BlockHeight, r2 chainid.RoundNumber) bool {
	if h1 != h2 {
		return h1 > h2
	}
	return r1 > r2
}

func hashesEqual(a, b *block.Hash) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// processCertificate applies a just-finalized certificate locally and
// advances the session tip if it moved the chain forward.
func (d *Driver) processCertificate(ctx context.Context, cert block.Certificate) error {
	if _, err := d.local.HandleCertificate(ctx, cert); err != nil {
		return err
	}
	info, err := d.chainInfo(ctx, false, false)
	if err != nil {
		return err
	}
	if info.ChainID == d.session.ChainID &&
		laterThan(info.NextBlockHeight, chainid.RoundNumber(info.Manager.NextRound()), d.session.NextBlockHeight, d.session.NextRound) {
		d.session.BlockHash = info.BlockHash
		d.session.NextBlockHeight = info.NextBlockHeight
		d.session.NextRound = chainid.RoundNumber(info.Manager.NextRound())
	}
	return nil
}

// communicateAction runs the Quorum Communicator against comm for
// action, projecting successful votes by their Value hash, and returns
// the certificate the winning group implies — nil for
// AdvanceToNextBlockHeight, which produces no certificate. An
// InactiveChain failure on our own chain during AdvanceToNextBlockHeight
// is swallowed (spec §7): there is nothing to advance.
func (d *Driver) communicateAction(ctx context.Context, comm committee.Committee, action updater.Action) (*block.Certificate, error) {
	start := time.Now()
	result, err := quorum.Communicate(ctx, comm, voteKey, func(ctx context.Context, name committee.ValidatorName) (*block.Vote, error) {
		u := &updater.Updater{
			Name:    name,
			Client:  d.clients[name],
			Store:   d.store,
			Delay:   d.session.CrossChainDelay,
			Retries: d.session.CrossChainRetries,
			Log:     d.log,
		}
		return u.Send(ctx, d.session.ChainID, action)
	})
	d.metrics.observeQuorum(action.Kind, time.Since(start), err)
	if err != nil {
		var inactive *node.InactiveChainError
		if action.Kind == updater.AdvanceToNextBlockHeight && errors.As(err, &inactive) && inactive.ChainID == d.session.ChainID {
			return nil, nil
		}
		return nil, err
	}

	votes := make([]block.Vote, 0, len(result.Values))
	for _, v := range result.Values {
		if v != nil {
			votes = append(votes, *v)
		}
	}

	// Votes are grouped by Value hash, so the winning group all voted
	// for one block; certify that block, which differs from the proposal
	// when a concurrent proposal won (proposeBlock checks for that).
	certified := action.Proposal.Block
	if len(votes) > 0 {
		certified = votes[0].Value.Block
	}

	switch action.Kind {
	case updater.SubmitBlockForConfirmation:
		cert := block.NewCertificate(block.ConfirmedBlock(certified, stateHashOf(votes)), votes)
		return &cert, nil
	case updater.SubmitBlockForValidation:
		cert := block.NewCertificate(block.ValidatedBlock(certified, action.Proposal.Round, stateHashOf(votes)), votes)
		return &cert, nil
	case updater.FinalizeBlock:
		validated := action.ValidatedCertificate.Value
		cert := block.NewCertificate(block.ConfirmedBlock(validated.Block, validated.StateHash), votes)
		return &cert, nil
	default: // AdvanceToNextBlockHeight
		return nil, nil
	}
}

func voteKey(v *block.Vote) block.Hash {
	if v == nil {
		return block.Hash{}
	}
	return v.Value.Hash()
}

func stateHashOf(votes []block.Vote) block.Hash {
	if len(votes) == 0 {
		return block.Hash{}
	}
	return votes[0].Value.StateHash
}
