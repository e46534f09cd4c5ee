// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package updater brings one validator up to date and then issues a
// single action against it, retrying cross-chain dependency failures a
// bounded number of times.
package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/node"
	"github.com/luxfi/chainclient/storage"
)

// ActionKind is the closed sum of requests a Validator Updater can
// issue once the target validator is caught up.
type ActionKind uint8

const (
	SubmitBlockForConfirmation ActionKind = iota
	SubmitBlockForValidation
	FinalizeBlock
	AdvanceToNextBlockHeight
)

// Action names one request and its payload. Exactly one of Proposal,
// ValidatedCertificate, or Height is meaningful, selected by Kind.
type Action struct {
	Kind                ActionKind
	Proposal            block.BlockProposal
	ValidatedCertificate block.Certificate
	Height              chainid.BlockHeight
}

// Updater drives one validator: it uploads whatever prefix of local
// history the validator is missing, then issues Action, retrying
// cross-chain dependency failures.
type Updater struct {
	Name    committee.ValidatorName
	Client  node.ValidatorNode
	Store   storage.Store
	Delay   time.Duration
	Retries int
	Log     log.Logger
}

// Send performs the catch-up-then-act protocol described in spec §4.2.
// It returns the vote produced by the action, or nil for
// AdvanceToNextBlockHeight (fire-and-forget; a missing committee
// response there is not an error).
func (u *Updater) Send(ctx context.Context, chain chainid.ID, action Action) (*block.Vote, error) {
	attempt := 0
	for {
		vote, err := u.sendOnce(ctx, chain, action)
		if err == nil {
			return vote, nil
		}

		var missing *node.MissingPreviousBlockError
		if errors.As(err, &missing) {
			if uploadErr := u.uploadPrefix(ctx, chain, chainid.BlockHeight(missing.Height)); uploadErr != nil {
				return nil, fmt.Errorf("updater: uploading missing history to %s: %w", u.Name, uploadErr)
			}
			continue // immediately retry; no delay for a deterministic catch-up
		}

		if isCrossChainDependency(err) && attempt < u.Retries {
			attempt++
			select {
			case <-time.After(u.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		return nil, err
	}
}

func (u *Updater) sendOnce(ctx context.Context, chain chainid.ID, action Action) (*block.Vote, error) {
	switch action.Kind {
	case SubmitBlockForConfirmation, SubmitBlockForValidation:
		return u.Client.HandleBlockProposal(ctx, action.Proposal)
	case FinalizeBlock:
		return u.Client.HandleCertificate(ctx, action.ValidatedCertificate)
	case AdvanceToNextBlockHeight:
		var inactive *node.InactiveChainError
		query := node.ChainInfoQuery{ChainID: chain, CheckNextBlockHeight: &action.Height}
		_, err := u.Client.HandleChainInfoQuery(ctx, query)
		if errors.As(err, &inactive) {
			// Best effort: a validator that does not yet know about this
			// chain has nothing to advance. Non-fatal per spec §7.
			return nil, nil
		}
		return nil, err
	default:
		panic(fmt.Sprintf("updater: unhandled action kind %d", action.Kind))
	}
}

// uploadPrefix fetches every certificate up to and including target
// from local storage and pushes it to the validator, oldest first, so
// the validator's own hash-chaining check never sees a gap.
func (u *Updater) uploadPrefix(ctx context.Context, chain chainid.ID, target chainid.BlockHeight) error {
	for h := chainid.BlockHeight(0); h <= target; h++ {
		cert, err := u.Store.CertificateAt(ctx, chain, h)
		if err != nil {
			return fmt.Errorf("local storage missing certificate at height %d: %w", h, err)
		}
		if _, err := u.Client.HandleCertificate(ctx, cert); err != nil {
			var missing *node.MissingPreviousBlockError
			if errors.As(err, &missing) {
				// The validator is missing even earlier history than we
				// thought; keep uploading forward from where we are, the
				// loop already proceeds in height order.
				continue
			}
			return fmt.Errorf("uploading certificate at height %d to %s: %w", h, u.Name, err)
		}
	}
	return nil
}

// isCrossChainDependency reports whether err is the class of transient,
// cross-chain-dependency failure that warrants a delayed retry rather
// than immediate propagation. Signature/validity errors are excluded:
// per spec §7 they are never retried.
func isCrossChainDependency(err error) bool {
	if errors.Is(err, node.ErrInvalidSignature) ||
		errors.Is(err, node.ErrInvalidBlockChaining) ||
		errors.Is(err, node.ErrInvalidCertificate) {
		return false
	}
	var missing *node.MissingPreviousBlockError
	if errors.As(err, &missing) {
		return false // handled separately, above
	}
	return true
}
