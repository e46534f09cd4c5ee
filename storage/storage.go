// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage defines the certificate-addressable store the Local
// Node persists confirmed history to. The storage engine itself is an
// external collaborator (§1 Out of scope); this package only fixes the
// interface and ships two adapters: an in-memory one for tests and a
// Pebble-backed one for production use.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
)

// ErrNotFound is returned when a certificate is not present in the
// store.
var ErrNotFound = errors.New("storage: certificate not found")

// Store is the certificate-addressable store behind the Local Node.
// Implementations must be safe for concurrent use: the Local Node's
// storage handle is shared across every Session tracking a given chain.
type Store interface {
	// CertificateAt returns the confirmed certificate at height for
	// chain, or ErrNotFound if none is stored yet.
	CertificateAt(ctx context.Context, chain chainid.ID, height chainid.BlockHeight) (block.Certificate, error)

	// WriteCertificate persists a confirmed certificate. Writing the
	// same (chain, height) twice with the same certificate is a no-op;
	// writing a different certificate at an already-written height is
	// an error — the store enforces the single-chain hash-chaining
	// invariant that nothing here ever overwrites confirmed history.
	WriteCertificate(ctx context.Context, cert block.Certificate) error

	// Height returns the next unoccupied height for chain (0 if empty).
	Height(ctx context.Context, chain chainid.ID) (chainid.BlockHeight, error)
}

// memStore is an in-memory Store for tests and the in-process Local
// Node fixture.
type memStore struct {
	mu    sync.Mutex
	certs map[chainid.ID]map[chainid.BlockHeight]block.Certificate
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() Store {
	return &memStore{certs: make(map[chainid.ID]map[chainid.BlockHeight]block.Certificate)}
}

func (s *memStore) CertificateAt(_ context.Context, chain chainid.ID, height chainid.BlockHeight) (block.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHeight, ok := s.certs[chain]
	if !ok {
		return block.Certificate{}, ErrNotFound
	}
	cert, ok := byHeight[height]
	if !ok {
		return block.Certificate{}, ErrNotFound
	}
	return cert, nil
}

func (s *memStore) WriteCertificate(_ context.Context, cert block.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := cert.Value.Block.ChainID
	height := cert.Value.Block.Height
	if s.certs[chain] == nil {
		s.certs[chain] = make(map[chainid.BlockHeight]block.Certificate)
	}
	if existing, ok := s.certs[chain][height]; ok {
		if existing.Value.Block.Hash() != cert.Value.Block.Hash() {
			return fmt.Errorf("storage: height %d of chain %s already has a different certificate", height, chain)
		}
		return nil
	}
	s.certs[chain][height] = cert
	return nil
}

func (s *memStore) Height(_ context.Context, chain chainid.ID) (chainid.BlockHeight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHeight, ok := s.certs[chain]
	if !ok {
		return 0, nil
	}
	var max chainid.BlockHeight
	found := false
	for h := range byHeight {
		if !found || h >= max {
			max = h
			found = true
		}
	}
	if !found {
		return 0, nil
	}
	return max + 1, nil
}
