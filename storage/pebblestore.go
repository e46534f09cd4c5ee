// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
)

// PebbleStore persists certificates to an on-disk Pebble database,
// keyed by chain id and height so range scans (download_certificates,
// query_sent_certificates_in_range) are cheap sequential reads.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if absent) a Pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: opening pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func certKey(chain chainid.ID, height chainid.BlockHeight) []byte {
	key := make([]byte, len(chain)+8)
	copy(key, chain[:])
	binary.BigEndian.PutUint64(key[len(chain):], uint64(height))
	return key
}

func (s *PebbleStore) CertificateAt(_ context.Context, chain chainid.ID, height chainid.BlockHeight) (block.Certificate, error) {
	data, closer, err := s.db.Get(certKey(chain, height))
	if err == pebble.ErrNotFound {
		return block.Certificate{}, ErrNotFound
	}
	if err != nil {
		return block.Certificate{}, fmt.Errorf("storage: reading certificate: %w", err)
	}
	defer closer.Close()
	var cert block.Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return block.Certificate{}, fmt.Errorf("storage: decoding certificate: %w", err)
	}
	return cert, nil
}

func (s *PebbleStore) WriteCertificate(ctx context.Context, cert block.Certificate) error {
	chain := cert.Value.Block.ChainID
	height := cert.Value.Block.Height
	if existing, err := s.CertificateAt(ctx, chain, height); err == nil {
		if existing.Value.Block.Hash() != cert.Value.Block.Hash() {
			return fmt.Errorf("storage: height %d of chain %s already has a different certificate", height, chain)
		}
		return nil
	}
	data, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("storage: encoding certificate: %w", err)
	}
	return s.db.Set(certKey(chain, height), data, pebble.Sync)
}

func (s *PebbleStore) Height(_ context.Context, chain chainid.ID) (chainid.BlockHeight, error) {
	lower := certKey(chain, 0)
	upper := certKey(chain, ^chainid.BlockHeight(0))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("storage: iterating chain history: %w", err)
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, nil
	}
	key := iter.Key()
	height := binary.BigEndian.Uint64(key[len(chain):])
	return chainid.BlockHeight(height + 1), nil
}
