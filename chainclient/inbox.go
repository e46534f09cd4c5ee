// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/node"
)

// findReceivedCertificates implements spec §4.5.4: poll every validator
// for certificates addressed to this chain past its own tracker cursor,
// then apply that validator's certificates in order, stopping at the
// first one that fails. A validator's own tracker only advances to the
// validator-reported count if every certificate it returned applied
// cleanly — a Byzantine or unreachable peer must neither poison its own
// cursor nor block any other validator's batch.
func (d *Driver) findReceivedCertificates(ctx context.Context) error {
	seen := make(map[block.Hash]bool)

	for _, name := range d.validators {
		cursor := d.session.Tracker(name)
		resp, err := d.clients[name].HandleChainInfoQuery(ctx, node.ChainInfoQuery{
			ChainID:                                   d.session.ChainID,
			QueryReceivedCertificatesExcludingFirstN: &cursor,
		})
		if err != nil {
			d.log.Warn("find_received_certificates: skipping validator", zap.Stringer("validator", name), zap.Error(err))
			continue
		}
		if err := resp.Check(name); err != nil {
			d.log.Warn("find_received_certificates: bad response signature", zap.Stringer("validator", name), zap.Error(err))
			continue
		}

		allApplied := true
		for _, cert := range resp.Info.QueriedReceivedCertificates {
			h := cert.Value.Hash()
			if seen[h] {
				continue
			}
			if err := d.receiveCertificate(ctx, cert); err != nil {
				d.log.Warn("find_received_certificates: certificate rejected, skipping rest of validator's batch",
					zap.Stringer("validator", name), zap.Error(err))
				allApplied = false
				break
			}
			seen[h] = true
		}
		if allApplied {
			d.session.AdvanceTracker(name, resp.Info.CountReceivedCertificates)
		}
	}
	return nil
}

// receiveCertificate implements spec §4.5.5: apply cert to the Local
// Node (so its effects land in our pending-message queue) without
// requiring a quorum round, since a ConfirmedBlock certificate is
// self-authenticating.
func (d *Driver) receiveCertificate(ctx context.Context, cert block.Certificate) error {
	if cert.Value.Kind != block.KindConfirmedBlock {
		return node.ErrInvalidCertificate
	}
	if _, err := d.local.HandleCertificate(ctx, cert); err != nil {
		return fmt.Errorf("chainclient: receiving certificate: %w", err)
	}
	return nil
}

// ProcessInbox implements the operation of the same name: pull every
// new received certificate from the network, apply each one, then fold
// the resulting pending messages into a block that clears them. It
// returns the certificate confirming that block, or nil if the inbox
// was already empty.
func (d *Driver) ProcessInbox(ctx context.Context) (*block.Certificate, error) {
	if err := d.prepareChain(ctx); err != nil {
		return nil, err
	}
	if err := d.findReceivedCertificates(ctx); err != nil {
		return nil, err
	}

	groups, err := d.pendingMessages(ctx)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	b, err := d.nextBlock(ctx, nil)
	if err != nil {
		return nil, err
	}
	b.IncomingMessages = groups

	cert, err := d.proposeBlock(ctx, b, true)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// currentManagerKind reports the chain's current manager kind (which
// decides whether a one-round or two-round proposal applies) from one
// local chainInfo call. Nothing in this package calls it.
func (d *Driver) currentManagerKind(ctx context.Context) (committee.ManagerKind, error) {
	info, err := d.chainInfo(ctx, false, false)
	if err != nil {
		return committee.KindNone, err
	}
	return info.Manager.Kind(), nil
}
