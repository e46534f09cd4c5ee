// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainclient

import (
	"context"
	"fmt"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/updater"
)

// proposeBlock implements spec §4.5.2: propose b, collect a quorum
// certificate (one round for single-owner chains, two for multi-owner),
// apply it locally, and optionally advance both the current and — if
// the block just rotated it — the new committee.
func (d *Driver) proposeBlock(ctx context.Context, b block.Block, withConfirmation bool) (block.Certificate, error) {
	if d.session.PendingBlock != nil && !d.session.PendingBlock.Equal(b) {
		return block.Certificate{}, ErrDifferentPendingBlock
	}
	if b.Height != d.session.NextBlockHeight {
		return block.Certificate{}, ErrUnexpectedBlockHeight
	}
	if !hashesEqual(&b.PreviousBlockHash, d.session.BlockHash) && !(d.session.BlockHash == nil && b.PreviousBlockHash == (block.Hash{})) {
		return block.Certificate{}, ErrUnexpectedPreviousBlockHash
	}

	pending := b
	d.session.PendingBlock = &pending

	kp, err := d.keyPair(ctx)
	if err != nil {
		return block.Certificate{}, err
	}
	proposal := block.BlockProposal{Block: b, Round: d.session.NextRound, ProposerOwner: kp.Owner}
	proposal.ProposerSig = kp.Sign(proposal.SigningPayload())

	comm, err := d.committee(ctx)
	if err != nil {
		return block.Certificate{}, err
	}

	info, err := d.chainInfo(ctx, false, false)
	if err != nil {
		return block.Certificate{}, err
	}

	var finalCert *block.Certificate
	switch info.Manager.Kind() {
	case committee.KindMulti:
		validated, err := d.communicateAction(ctx, comm, updater.Action{Kind: updater.SubmitBlockForValidation, Proposal: proposal})
		if err != nil {
			return block.Certificate{}, fmt.Errorf("chainclient: phase 1 (validation): %w", err)
		}
		if validated == nil || !validated.Value.Block.Equal(proposal.Block) {
			d.session.PendingBlock = nil
			return block.Certificate{}, ErrConcurrentProposalExecuted
		}
		confirmed, err := d.communicateAction(ctx, comm, updater.Action{Kind: updater.FinalizeBlock, ValidatedCertificate: *validated})
		if err != nil {
			return block.Certificate{}, fmt.Errorf("chainclient: phase 2 (finalize): %w", err)
		}
		finalCert = confirmed
	case committee.KindSingle:
		confirmed, err := d.communicateAction(ctx, comm, updater.Action{Kind: updater.SubmitBlockForConfirmation, Proposal: proposal})
		if err != nil {
			return block.Certificate{}, fmt.Errorf("chainclient: submitting for confirmation: %w", err)
		}
		finalCert = confirmed
	default:
		return block.Certificate{}, ErrInactiveChain
	}

	if finalCert == nil || !finalCert.Value.Block.Equal(proposal.Block) {
		d.session.PendingBlock = nil
		return block.Certificate{}, ErrConcurrentProposalExecuted
	}

	if err := d.processCertificate(ctx, *finalCert); err != nil {
		return block.Certificate{}, fmt.Errorf("chainclient: applying final certificate: %w", err)
	}
	d.session.PendingBlock = nil

	if withConfirmation {
		if _, err := d.communicateAction(ctx, comm, updater.Action{Kind: updater.AdvanceToNextBlockHeight, Height: d.session.NextBlockHeight}); err != nil {
			return block.Certificate{}, fmt.Errorf("chainclient: advancing current committee: %w", err)
		}
		if newComm, err := d.committee(ctx); err == nil && !newComm.Equal(comm) {
			// The configuration just changed; advancing the new
			// committee matters more than the old one, since it owns
			// the future (spec §4.5.2 step 8).
			if _, err := d.communicateAction(ctx, newComm, updater.Action{Kind: updater.AdvanceToNextBlockHeight, Height: d.session.NextBlockHeight}); err != nil {
				return block.Certificate{}, fmt.Errorf("chainclient: advancing new committee: %w", err)
			}
		}
	}

	return *finalCert, nil
}

// RetryPendingBlock resumes an interrupted proposal, if any. With no
// change in inputs it produces a certificate for the same block, or
// fails with ErrConcurrentProposalExecuted if a conflicting block won.
func (d *Driver) RetryPendingBlock(ctx context.Context) (*block.Certificate, error) {
	if d.session.PendingBlock == nil {
		return nil, nil
	}
	cert, err := d.proposeBlock(ctx, *d.session.PendingBlock, true)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// ClearPendingBlock discards any record of a previously failed
// operation, per spec §4 ChainClient surface.
func (d *Driver) ClearPendingBlock() {
	d.session.PendingBlock = nil
}
