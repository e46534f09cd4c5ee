// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package node defines the capability-based validator RPC surface and
// the chain-info query/response types every component in this module
// exchanges with it. Any type — in-memory fake, gRPC client, whatever —
// that implements ValidatorNode is an acceptable peer; nothing here
// requires a concrete transport.
package node

import (
	"context"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
)

// ChainInfoQuery selects which fields of a chain's state to report back.
// Every field is an optional selector; a query with every field zero
// still returns the baseline ChainInfo (chain id, height, hash, manager).
type ChainInfoQuery struct {
	ChainID chainid.ID

	CheckNextBlockHeight                    *chainid.BlockHeight
	QueryCommittees                         bool
	QueryPendingMessages                    bool
	QuerySentCertificatesInRange            *HeightRange
	QueryReceivedCertificatesExcludingFirstN *uint64
}

// HeightRange is an inclusive [From, To] block-height range.
type HeightRange struct {
	From chainid.BlockHeight
	To   chainid.BlockHeight
}

// ChainInfo is the state a validator (or the Local Node) reports back
// for a chain.
type ChainInfo struct {
	ChainID               chainid.ID
	NextBlockHeight       chainid.BlockHeight
	BlockHash             *block.Hash
	Manager               committee.Manager
	Balance               block.Balance
	AdminID               chainid.ID
	QueriedCommittees     []committee.Committee
	QueriedPendingMessages []block.MessageGroup
	QueriedSentCertificates []block.Certificate
	QueriedReceivedCertificates []block.Certificate
	CountReceivedCertificates uint64
}

// ChainInfoResponse wraps a ChainInfo with the validator's signature
// over it, so a client can check the response actually came from the
// validator it asked (used by find_received_certificates before trusting
// a batch of received certificates).
type ChainInfoResponse struct {
	Info      ChainInfo
	Validator committee.ValidatorName
	Signature []byte
}

// Check verifies that the response is signed by the expected validator.
// It does not re-verify the contained certificates; that happens when
// they are individually applied.
func (r ChainInfoResponse) Check(expected committee.ValidatorName) error {
	if r.Validator != expected {
		return ErrUnexpectedResponder
	}
	if len(r.Signature) == 0 {
		return ErrInvalidSignature
	}
	return nil
}

// ValidatorNode is the RPC capability this core consumes from
// validators; the Quorum Communicator and Validator Updater drive any
// implementation of it. The Local Node serves HandleChainInfoQuery and
// HandleCertificate with the same signatures but does not implement the
// other two methods.
type ValidatorNode interface {
	HandleChainInfoQuery(ctx context.Context, query ChainInfoQuery) (ChainInfoResponse, error)
	HandleBlockProposal(ctx context.Context, proposal block.BlockProposal) (*block.Vote, error)
	HandleCertificate(ctx context.Context, cert block.Certificate) (*block.Vote, error)
	HandleCrossChainRequest(ctx context.Context, destination chainid.ID, messages []block.MessageGroup) error
}
