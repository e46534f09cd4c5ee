// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads and validates the committee roster and session
// settings a Chain Driver needs to start: validator voting power, the
// cross-chain retry schedule, and validator endpoint addresses.
package config

import (
	"fmt"
	"time"

	"github.com/luxfi/ids"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/crypto/bls"
	"github.com/luxfi/chainclient/session"
)

// ValidatorConfig is one validator's entry in the roster file.
type ValidatorConfig struct {
	NodeID      string `yaml:"node_id"`
	VotingPower uint64 `yaml:"voting_power"`
	Address     string `yaml:"address"`
}

// Config is the on-disk shape of a chain client deployment: the
// committee it starts with, plus the retry/delay schedule the Chain
// Driver hands to every Validator Updater it creates.
type Config struct {
	AdminChainID      string            `yaml:"admin_chain_id"`
	Validators        []ValidatorConfig `yaml:"validators"`
	CrossChainDelay   time.Duration     `yaml:"cross_chain_delay"`
	CrossChainRetries int               `yaml:"cross_chain_retries"`

	// OwnerID and SecretKeyHex identify this client's own signing
	// identity, if it holds proposing rights on the chain it drives.
	// Both are optional: a client that only ever processes another
	// owner's inbox never needs to sign a proposal.
	OwnerID      string `yaml:"owner_id"`
	SecretKeyHex string `yaml:"secret_key_hex"`
}

// Default returns the settings a single-node local deployment (spec §9
// example, and the test harness) starts from.
func Default() Config {
	return Config{
		CrossChainDelay:   200 * time.Millisecond,
		CrossChainRetries: 5,
	}
}

// Parse decodes a YAML document into a Config.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parsing: %w", err)
	}
	return c, nil
}

// Validate checks the structural preconditions the rest of the module
// assumes hold: a nonempty roster, positive voting power, and a
// nonnegative retry budget.
func (c Config) Validate() error {
	if len(c.Validators) == 0 {
		return ErrNoValidators
	}
	seen := make(map[string]bool, len(c.Validators))
	for _, v := range c.Validators {
		if v.NodeID == "" {
			return ErrMissingNodeID
		}
		if seen[v.NodeID] {
			return fmt.Errorf("%w: %s", ErrDuplicateValidator, v.NodeID)
		}
		seen[v.NodeID] = true
		if v.VotingPower == 0 {
			return fmt.Errorf("%w: %s", ErrZeroVotingPower, v.NodeID)
		}
		if v.Address == "" {
			return fmt.Errorf("%w: %s", ErrMissingAddress, v.NodeID)
		}
	}
	if c.CrossChainRetries < 0 {
		return ErrNegativeRetries
	}
	return nil
}

// KeyPair builds this deployment's own signing identity from
// OwnerID/SecretKeyHex, via the crypto/bls seam (Non-goals keep the
// actual pairing scheme out of core, but a CLI process still needs a
// concrete Sign function to hand the Chain Driver). Returns ok=false
// when neither field is set, since not every client proposes blocks.
func (c Config) KeyPair() (kp session.KeyPair, ok bool, err error) {
	if c.OwnerID == "" && c.SecretKeyHex == "" {
		return session.KeyPair{}, false, nil
	}
	owner, err := ids.FromString(c.OwnerID)
	if err != nil {
		return session.KeyPair{}, false, fmt.Errorf("config: parsing owner_id: %w", err)
	}
	sk, err := bls.ParseSecretKeyHex(c.SecretKeyHex)
	if err != nil {
		return session.KeyPair{}, false, err
	}
	return session.KeyPair{
		Owner: committee.Owner(owner),
		Sign: func(msg []byte) []byte {
			return sk.Sign(msg).Bytes()
		},
	}, true, nil
}

// Committee builds a committee.Committee from the validated roster.
func (c Config) Committee() (committee.Committee, error) {
	admin, err := ids.FromString(c.AdminChainID)
	if err != nil {
		return committee.Committee{}, fmt.Errorf("config: parsing admin_chain_id: %w", err)
	}
	power := make(map[committee.ValidatorName]uint64, len(c.Validators))
	for _, v := range c.Validators {
		nodeID, err := ids.NodeIDFromString(v.NodeID)
		if err != nil {
			return committee.Committee{}, fmt.Errorf("config: parsing node_id %q: %w", v.NodeID, err)
		}
		power[nodeID] = v.VotingPower
	}
	return committee.New(admin, power), nil
}
