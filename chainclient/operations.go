// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/session"
)

// Operation kinds. Payloads are JSON, matching the encoding the storage
// package already uses for certificates — there is no wire-format
// requirement here beyond "opaque and hashable", so this core does not
// reach for protobuf the way the external gRPC surface does.
const (
	opTransfer            = "transfer"
	opBurn                = "burn"
	opChangeOwner         = "change_owner"
	opChangeMultipleOwners = "change_multiple_owners"
	opOpenChain           = "open_chain"
	opCloseChain          = "close_chain"
	opStageVotingRights   = "stage_voting_rights"
	opSubscribe           = "subscribe"
)

type transferPayload struct {
	Recipient chainid.ID    `json:"recipient"`
	Amount    block.Amount  `json:"amount"`
	UserData  block.UserData `json:"user_data,omitempty"`
}

type burnPayload struct {
	Amount block.Amount `json:"amount"`
}

type changeOwnerPayload struct {
	NewOwner committee.Owner `json:"new_owner"`
}

type changeMultipleOwnersPayload struct {
	NewOwners []committee.Owner `json:"new_owners"`
}

// openChainPayload carries only what the executor needs to replay
// OpenChain deterministically; the new committee is installed locally
// via Activate and is not itself part of the certified payload (voting
// power assignment is admin-chain policy, read off the admin chain
// itself when another validator replays this block).
type openChainPayload struct {
	NewChainID   chainid.ID      `json:"new_chain_id"`
	AdminID      chainid.ID      `json:"admin_id"`
	InitialOwner committee.Owner `json:"initial_owner"`
}

type closeChainPayload struct{}

// stageVotingRightsPayload carries only the proposing round; the new
// committee is not part of the certified payload.
type stageVotingRightsPayload struct {
	Round uint64 `json:"round"`
}

type subscribePayload struct {
	Target chainid.ID `json:"target"`
}

func encodeOp(kind string, v any) (block.Operation, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return block.Operation{}, fmt.Errorf("chainclient: encoding %s operation: %w", kind, err)
	}
	return block.Operation{Kind: kind, Payload: payload}, nil
}

// nextBlock assembles the block this session would propose next, given
// a set of operations. IncomingMessages is left empty here; ProcessInbox
// fills it in separately since that is the one caller that drains the
// cross-chain queue.
func (d *Driver) nextBlock(ctx context.Context, ops []block.Operation) (block.Block, error) {
	var prev block.Hash
	if d.session.BlockHash != nil {
		prev = *d.session.BlockHash
	}
	return block.Block{
		ChainID:           d.session.ChainID,
		Height:            d.session.NextBlockHeight,
		PreviousBlockHash: prev,
		Operations:        ops,
	}, nil
}

// proposeSingleOp is the common path shared by every operation below
// that submits exactly one operation and confirms it immediately.
func (d *Driver) proposeSingleOp(ctx context.Context, kind string, payload any) (block.Certificate, error) {
	if err := d.prepareChain(ctx); err != nil {
		return block.Certificate{}, err
	}
	op, err := encodeOp(kind, payload)
	if err != nil {
		return block.Certificate{}, err
	}
	b, err := d.nextBlock(ctx, []block.Operation{op})
	if err != nil {
		return block.Certificate{}, err
	}
	return d.proposeBlock(ctx, b, true)
}

// TransferToChain moves amount (plus optional userData) from this chain
// to recipient, confirmed before returning.
func (d *Driver) TransferToChain(ctx context.Context, recipient chainid.ID, amount block.Amount, userData block.UserData) (block.Certificate, error) {
	if amount == 0 {
		return block.Certificate{}, fmt.Errorf("chainclient: transfer amount must be positive")
	}
	balance, err := d.SynchronizeBalance(ctx)
	if err != nil {
		return block.Certificate{}, err
	}
	if block.Amount(balance) < amount {
		return block.Certificate{}, ErrInsufficientBalance
	}
	return d.proposeSingleOp(ctx, opTransfer, transferPayload{Recipient: recipient, Amount: amount, UserData: userData})
}

// TransferToChainUnsafeUnconfirmed behaves like TransferToChain but
// does not check the amount against the balance, and returns once the
// block is certified and applied locally, skipping the
// AdvanceToNextBlockHeight broadcast that TransferToChain performs. It
// is "unsafe" in the sense spec §4.5.6 uses the word: a caller that
// crashes before the certificate is durably recorded elsewhere cannot
// tell whether the transfer went through.
func (d *Driver) TransferToChainUnsafeUnconfirmed(ctx context.Context, recipient chainid.ID, amount block.Amount, userData block.UserData) (block.Certificate, error) {
	if err := d.prepareChain(ctx); err != nil {
		return block.Certificate{}, err
	}
	op, err := encodeOp(opTransfer, transferPayload{Recipient: recipient, Amount: amount, UserData: userData})
	if err != nil {
		return block.Certificate{}, err
	}
	b, err := d.nextBlock(ctx, []block.Operation{op})
	if err != nil {
		return block.Certificate{}, err
	}
	return d.proposeBlock(ctx, b, false)
}

// Burn destroys amount from this chain's balance, confirmed before
// returning.
func (d *Driver) Burn(ctx context.Context, amount block.Amount) (block.Certificate, error) {
	return d.proposeSingleOp(ctx, opBurn, burnPayload{Amount: amount})
}

// RotateKeyPair installs kp as a known signing identity for this
// session, then proposes the ChangeOwner operation that makes kp.Owner
// the chain's owner. That proposal is signed by the identity resolved
// for the chain's current owner, not by kp. Installing first matters: a
// failure between install and proposal still leaves the key usable on
// retry (spec §4.5.6).
func (d *Driver) RotateKeyPair(ctx context.Context, kp session.KeyPair) (block.Certificate, error) {
	d.session.AddKeyPair(kp)
	return d.proposeSingleOp(ctx, opChangeOwner, changeOwnerPayload{NewOwner: kp.Owner})
}

// TransferOwnership replaces the chain's single owner with newOwner.
func (d *Driver) TransferOwnership(ctx context.Context, newOwner committee.Owner) (block.Certificate, error) {
	return d.proposeSingleOp(ctx, opChangeOwner, changeOwnerPayload{NewOwner: newOwner})
}

// ShareOwnership turns this chain into a multi-owner chain with the
// given owner set (which should include the chain's current owner if it
// is meant to retain proposing rights).
func (d *Driver) ShareOwnership(ctx context.Context, owners []committee.Owner) (block.Certificate, error) {
	return d.proposeSingleOp(ctx, opChangeMultipleOwners, changeMultipleOwnersPayload{NewOwners: owners})
}

// CloseChain deactivates this chain: no further blocks may be proposed
// on it after the closing block is confirmed.
func (d *Driver) CloseChain(ctx context.Context) (block.Certificate, error) {
	return d.proposeSingleOp(ctx, opCloseChain, closeChainPayload{})
}

// StageNewVotingRights proposes and confirms a stage_voting_rights
// operation carrying the session's current round. comm is not encoded
// in the operation and is not installed anywhere: the committee the
// Local Node reports for this chain is unchanged by this call. The
// Local Node does not check that this chain is an admin chain.
func (d *Driver) StageNewVotingRights(ctx context.Context, comm committee.Committee) (block.Certificate, error) {
	return d.proposeSingleOp(ctx, opStageVotingRights, stageVotingRightsPayload{Round: uint64(d.session.NextRound)})
}

// SubscribeToNewCommittees registers this chain to receive committee
// updates whenever target's admin chain stages new voting rights.
func (d *Driver) SubscribeToNewCommittees(ctx context.Context, target chainid.ID) (block.Certificate, error) {
	return d.proposeSingleOp(ctx, opSubscribe, subscribePayload{Target: target})
}

// OpenChain opens a new child chain derived deterministically from this
// chain's id, height, and index (so two concurrent OpenChain calls at
// the same height never collide), owned initially by initialOwner under
// comm.
func (d *Driver) OpenChain(ctx context.Context, index uint32, comm committee.Committee, initialOwner committee.Owner) (chainid.ID, block.Certificate, error) {
	newChainID := chainid.Child(d.session.ChainID, d.session.NextBlockHeight, index)
	cert, err := d.proposeSingleOp(ctx, opOpenChain, openChainPayload{
		NewChainID:   newChainID,
		AdminID:      d.session.ChainID,
		InitialOwner: initialOwner,
	})
	if err != nil {
		return chainid.ID{}, block.Certificate{}, err
	}
	d.local.Activate(newChainID, committee.NewSingle(initialOwner), comm, d.session.ChainID)
	return newChainID, cert, nil
}

// SynchronizeBalance refreshes the session's view of this chain's
// confirmed balance from the network, without proposing a block.
func (d *Driver) SynchronizeBalance(ctx context.Context) (block.Balance, error) {
	if err := d.prepareChain(ctx); err != nil {
		return 0, err
	}
	info, err := d.chainInfo(ctx, false, false)
	if err != nil {
		return 0, err
	}
	return info.Balance, nil
}

// LocalBalance computes the balance this chain would have if its
// pending block (if any) were applied, without requiring a round trip
// to the validators. Queued incoming messages that are not in the
// pending block are not counted. It speculatively
// executes locally via the Local Node (spec §9, speculative execution).
func (d *Driver) LocalBalance(ctx context.Context) (block.Balance, error) {
	info, err := d.chainInfo(ctx, false, true)
	if err != nil {
		return 0, err
	}
	pending := d.session.Pending()
	if pending == nil {
		return info.Balance, nil
	}
	result, err := d.local.StageBlockExecution(ctx, *pending)
	if err != nil {
		return 0, fmt.Errorf("chainclient: staging pending block: %w", err)
	}
	return result.Balance, nil
}

