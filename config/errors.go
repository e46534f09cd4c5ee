// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	ErrNoValidators        = errors.New("config: committee must have at least one validator")
	ErrMissingNodeID        = errors.New("config: validator entry missing node_id")
	ErrDuplicateValidator   = errors.New("config: duplicate validator")
	ErrZeroVotingPower      = errors.New("config: validator voting power must be positive")
	ErrMissingAddress       = errors.New("config: validator entry missing address")
	ErrNegativeRetries      = errors.New("config: cross_chain_retries must not be negative")
)
