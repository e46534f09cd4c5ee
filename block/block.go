// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package block defines the hash-chained block, proposal, vote and
// certificate types shared by every chain in the system.
package block

import (
	"crypto/sha256"

	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/ids"
)

// Hash identifies a block or a certified value by the hash of its
// canonical encoding.
type Hash = ids.ID

// Amount is a quantity being transferred; Balance is a quantity held.
// The two are kept distinct so that a transfer precondition
// (amount <= balance) cannot typo its operands.
type Amount uint64

// Balance is the amount of value a chain currently holds.
type Balance uint64

// UserData is an opaque payload attached to a transfer. The core never
// interprets it.
type UserData []byte

// IncomingMessage is one cross-chain effect, produced by a ratified block
// on another chain, addressed to this chain.
type IncomingMessage struct {
	Origin chainid.ID
	Height chainid.BlockHeight
	Index  uint32
	Kind   MessageKind
	Data   []byte
}

// MessageKind distinguishes the handful of effects a message can carry.
type MessageKind uint8

const (
	MessageUnknown MessageKind = iota
	MessageCredit
	MessageSubscribe
)

// MessageGroup bundles the incoming messages produced by a single sender
// certificate, preserving the sender's internal ordering.
type MessageGroup struct {
	Origin   chainid.ID
	Height   chainid.BlockHeight
	Messages []IncomingMessage
}

// Operation is one effect a block proposer wants to apply. The concrete
// operation kinds are enumerated in package chainclient; block only
// needs an opaque, hashable, comparable representation.
type Operation struct {
	Kind    string
	Payload []byte
}

// Block is the unit the chain reaches agreement on: a transactional
// payload chained to its predecessor by hash.
type Block struct {
	ChainID           chainid.ID
	Height            chainid.BlockHeight
	PreviousBlockHash Hash // zero value at height 0
	IncomingMessages  []MessageGroup
	Operations        []Operation
}

// Equal reports structural equality, used by propose_block to detect a
// retry of the same proposal versus a conflicting one.
func (b Block) Equal(o Block) bool {
	if b.ChainID != o.ChainID || b.Height != o.Height || b.PreviousBlockHash != o.PreviousBlockHash {
		return false
	}
	if len(b.Operations) != len(o.Operations) || len(b.IncomingMessages) != len(o.IncomingMessages) {
		return false
	}
	for i := range b.Operations {
		if b.Operations[i].Kind != o.Operations[i].Kind || string(b.Operations[i].Payload) != string(o.Operations[i].Payload) {
			return false
		}
	}
	for i := range b.IncomingMessages {
		if b.IncomingMessages[i].Origin != o.IncomingMessages[i].Origin || b.IncomingMessages[i].Height != o.IncomingMessages[i].Height {
			return false
		}
	}
	return true
}

// Hash returns the canonical hash of the block, used both as the next
// block's PreviousBlockHash and as the identity of a ConfirmedBlock
// certificate's subject.
func (b Block) Hash() Hash {
	h := sha256.New()
	h.Write(b.ChainID[:])
	var heightBuf [8]byte
	putUint64(heightBuf[:], uint64(b.Height))
	h.Write(heightBuf[:])
	h.Write(b.PreviousBlockHash[:])
	for _, g := range b.IncomingMessages {
		h.Write(g.Origin[:])
		putUint64(heightBuf[:], uint64(g.Height))
		h.Write(heightBuf[:])
	}
	for _, op := range b.Operations {
		h.Write([]byte(op.Kind))
		h.Write(op.Payload)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func putUint64(buf []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

// BlockProposal is a block signed by one of the chain's current owners,
// at a given round.
type BlockProposal struct {
	Block           Block
	Round           chainid.RoundNumber
	ProposerOwner   committee.Owner
	ProposerSig     []byte
}

// SigningPayload is what a proposer signs: the block hash
// committed to the round it was proposed at.
func (p BlockProposal) SigningPayload() []byte {
	h := p.Block.Hash()
	out := make([]byte, 0, len(h)+8)
	out = append(out, h[:]...)
	var rbuf [8]byte
	putUint64(rbuf[:], uint64(p.Round))
	return append(out, rbuf[:]...)
}

// ValueKind distinguishes the two certificate subjects. It is a closed
// sum: every switch over Kind in this module has a default branch that
// panics, so a third kind added here without updating every switch is
// caught in tests rather than silently mishandled.
type ValueKind uint8

const (
	// KindValidatedBlock is the first-phase certificate for multi-owner
	// chains: a quorum has validated the block but not yet confirmed it.
	KindValidatedBlock ValueKind = iota
	// KindConfirmedBlock is the ratified, executable certificate.
	KindConfirmedBlock
)

// Value is the subject of a Certificate: either a ValidatedBlock
// (multi-owner phase 1) or a ConfirmedBlock (ratified, executable).
type Value struct {
	Kind      ValueKind
	Block     Block
	Round     chainid.RoundNumber // only meaningful for KindValidatedBlock
	StateHash Hash
}

// ConfirmedBlock constructs a ratified Value.
func ConfirmedBlock(b Block, stateHash Hash) Value {
	return Value{Kind: KindConfirmedBlock, Block: b, StateHash: stateHash}
}

// ValidatedBlock constructs a phase-1 Value.
func ValidatedBlock(b Block, round chainid.RoundNumber, stateHash Hash) Value {
	return Value{Kind: KindValidatedBlock, Block: b, Round: round, StateHash: stateHash}
}

// Hash is what validators sign over: (validator_name, value_hash).
func (v Value) Hash() Hash {
	h := sha256.New()
	h.Write([]byte{byte(v.Kind)})
	bh := v.Block.Hash()
	h.Write(bh[:])
	h.Write(v.StateHash[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Vote is one validator's signed agreement on a Value.
type Vote struct {
	Validator committee.ValidatorName
	Value     Value
	Signature []byte
}

// Certificate is a Value plus a quorum of validator signatures collected
// against it. Once built it is immutable; nothing in this module ever
// mutates a Certificate's Signatures slice in place.
type Certificate struct {
	Value      Value
	Signatures []Signature
}

// Signature pairs a validator with its signature over Value.Hash().
type Signature struct {
	Validator committee.ValidatorName
	Bytes     []byte
}

// NewCertificate assembles a certificate from collected votes. It does
// not itself check that the signatures form a quorum — that is the
// Quorum Communicator's job, because only it knows the committee that
// was current when enough votes arrived.
func NewCertificate(value Value, votes []Vote) Certificate {
	sigs := make([]Signature, 0, len(votes))
	for _, v := range votes {
		sigs = append(sigs, Signature{Validator: v.Validator, Bytes: v.Signature})
	}
	return Certificate{Value: value, Signatures: sigs}
}
