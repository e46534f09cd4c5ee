// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session holds the per-chain client session: the in-memory
// progress markers (tip, pending proposal, signing keys, per-validator
// received-certificate cursors) the Chain Driver mutates. Neither the
// Driver nor Session locks; callers serialize calls to a Driver. Session
// itself never mutates on its own — it is a pure
// data container, per spec §4.4.
package session

import (
	"time"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
)

// KeyPair is a signing capability: a public identity plus a sign
// function. The private key material is an external collaborator
// (crypto primitives, Non-goals); this core only ever calls Sign.
type KeyPair struct {
	Owner committee.Owner
	Sign  func(msg []byte) []byte
}

// State is the mutable record of a chain client session. All fields are
// exported so the Chain Driver (the only writer) can assign them
// directly; accessors below are for read-only callers, matching spec
// §4.4's "exposed read-only accessors" list.
type State struct {
	ChainID chainid.ID

	BlockHash       *block.Hash // nil at height 0
	NextBlockHeight chainid.BlockHeight
	NextRound       chainid.RoundNumber

	PendingBlock *block.Block

	KnownKeyPairs map[committee.Owner]KeyPair

	ReceivedCertificateTrackers map[committee.ValidatorName]uint64

	CrossChainDelay   time.Duration
	CrossChainRetries int
}

// New builds a session for chain, starting from a possibly stale tip.
func New(chain chainid.ID, height chainid.BlockHeight, hash *block.Hash, crossChainDelay time.Duration, crossChainRetries int) *State {
	return &State{
		ChainID:                     chain,
		BlockHash:                   hash,
		NextBlockHeight:             height,
		KnownKeyPairs:               make(map[committee.Owner]KeyPair),
		ReceivedCertificateTrackers: make(map[committee.ValidatorName]uint64),
		CrossChainDelay:             crossChainDelay,
		CrossChainRetries:           crossChainRetries,
	}
}

// Chain returns the chain this session tracks. (spec §4.4 accessor)
func (s *State) Chain() chainid.ID { return s.ChainID }

// Hash returns the tip hash known to the client, or nil at height 0.
// (spec §4.4 accessor)
func (s *State) Hash() *block.Hash { return s.BlockHash }

// Height returns the height the next proposal must target. (spec §4.4
// accessor)
func (s *State) Height() chainid.BlockHeight { return s.NextBlockHeight }

// Pending returns the outstanding proposal, if any. (spec §4.4
// accessor)
func (s *State) Pending() *block.Block { return s.PendingBlock }

// AddKeyPair records kp as a known signing identity. Exposed as a
// setter (rather than direct field access) because rotate_key_pair
// needs to install the new key before it becomes the active identity
// (spec §4.5.6).
func (s *State) AddKeyPair(kp KeyPair) {
	s.KnownKeyPairs[kp.Owner] = kp
}

// Tracker returns the received-certificate cursor for a validator.
func (s *State) Tracker(v committee.ValidatorName) uint64 {
	return s.ReceivedCertificateTrackers[v]
}

// AdvanceTracker moves a validator's cursor forward. It refuses to move
// it backward, preserving the cursor-monotonicity invariant (spec §8.4)
// even if a caller passes a stale count.
func (s *State) AdvanceTracker(v committee.ValidatorName, count uint64) {
	if count > s.ReceivedCertificateTrackers[v] {
		s.ReceivedCertificateTrackers[v] = count
	}
}
