// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committee holds the per-chain validator roster and the
// owner-based chain manager that decides who may propose blocks.
package committee

import (
	"bytes"
	"encoding/gob"

	"github.com/luxfi/ids"
)

// ValidatorName identifies one committee member.
type ValidatorName = ids.NodeID

// Owner identifies a signing identity that may hold proposing rights on
// a chain. Distinct from ValidatorName: an owner need not be, and
// usually is not, a validator.
type Owner = ids.ID

// Committee is the roster ratified for a chain: a weighted validator
// set plus the admin chain that may replace it.
type Committee struct {
	AdminID    ids.ID
	validators map[ValidatorName]uint64
	total      uint64
}

// New builds a Committee from a voting-power map. The map is copied so
// the caller's map can be reused or mutated afterward.
func New(adminID ids.ID, votingPower map[ValidatorName]uint64) Committee {
	c := Committee{AdminID: adminID, validators: make(map[ValidatorName]uint64, len(votingPower))}
	for name, power := range votingPower {
		c.validators[name] = power
		c.total += power
	}
	return c
}

// Power returns the voting power of name, or 0 if it is not a member.
func (c Committee) Power(name ValidatorName) uint64 {
	return c.validators[name]
}

// Has reports whether name is a committee member.
func (c Committee) Has(name ValidatorName) bool {
	_, ok := c.validators[name]
	return ok
}

// Names returns the committee members in no particular order.
func (c Committee) Names() []ValidatorName {
	out := make([]ValidatorName, 0, len(c.validators))
	for name := range c.validators {
		out = append(out, name)
	}
	return out
}

// Len returns the number of committee members.
func (c Committee) Len() int { return len(c.validators) }

// TotalVotingPower returns the sum of every member's voting power.
func (c Committee) TotalVotingPower() uint64 { return c.total }

// QuorumThreshold is the smallest power sum that strictly exceeds 2/3 of
// the total: the amount of agreeing power required to certify a value.
func (c Committee) QuorumThreshold() uint64 {
	return c.total*2/3 + 1
}

// ValidityThreshold is the smallest power sum that strictly exceeds 1/3
// of the total: the amount of power that must be honest for any
// Byzantine-tolerant claim to hold.
func (c Committee) ValidityThreshold() uint64 {
	return c.total/3 + 1
}

// gobCommittee is the exported shadow of Committee's private fields,
// used only so a Committee can cross a gob-encoded RPC boundary (the
// gRPC transport in package node/rpc) without exposing the map/total
// representation as part of the type's public API.
type gobCommittee struct {
	AdminID    ids.ID
	Validators map[ValidatorName]uint64
	Total      uint64
}

// GobEncode implements gob.GobEncoder, since Committee's fields are
// unexported and would otherwise be silently dropped on the wire.
func (c Committee) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gobCommittee{AdminID: c.AdminID, Validators: c.validators, Total: c.total})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (c *Committee) GobDecode(data []byte) error {
	var g gobCommittee
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	c.AdminID = g.AdminID
	c.validators = g.Validators
	c.total = g.Total
	return nil
}

// Equal reports whether two committees have the same admin id and the
// same validator/power assignment, used by the Chain Driver to detect a
// just-installed committee rotation.
func (c Committee) Equal(o Committee) bool {
	if c.AdminID != o.AdminID || c.total != o.total || len(c.validators) != len(o.validators) {
		return false
	}
	for name, power := range c.validators {
		if o.validators[name] != power {
			return false
		}
	}
	return true
}

// ManagerKind is the closed sum of chain-ownership modes.
type ManagerKind uint8

const (
	// KindNone: the chain is inactive, no one may propose.
	KindNone ManagerKind = iota
	// KindSingle: exactly one owner may propose, one round per height.
	KindSingle
	// KindMulti: any of several owners may propose; two rounds per height.
	KindMulti
)

// Manager is the tagged union ChainManager::{None, Single, Multi}.
// Construct with NewNone/NewSingle/NewMulti; switch on Kind() and use
// the matching accessor. A Manager is immutable once constructed;
// transitions happen by replacing it wholesale when a ChangeOwner /
// ChangeMultipleOwners / CloseChain operation is ratified.
type Manager struct {
	kind   ManagerKind
	single Owner
	multi  map[Owner]struct{}
	round  uint64
}

// NewNone returns an inactive chain manager.
func NewNone() Manager { return Manager{kind: KindNone} }

// NewSingle returns a single-owner chain manager.
func NewSingle(owner Owner) Manager {
	return Manager{kind: KindSingle, single: owner}
}

// NewMulti returns a multi-owner chain manager.
func NewMulti(owners ...Owner) Manager {
	m := Manager{kind: KindMulti, multi: make(map[Owner]struct{}, len(owners))}
	for _, o := range owners {
		m.multi[o] = struct{}{}
	}
	return m
}

// Kind reports which variant m holds.
func (m Manager) Kind() ManagerKind { return m.kind }

// SingleOwner returns the sole owner of a single-owner chain. Only
// valid when Kind() == KindSingle.
func (m Manager) SingleOwner() Owner { return m.single }

// Owners returns the owner set of a multi-owner chain. Only valid when
// Kind() == KindMulti.
func (m Manager) Owners() []Owner {
	out := make([]Owner, 0, len(m.multi))
	for o := range m.multi {
		out = append(out, o)
	}
	return out
}

// HasOwner reports whether owner may propose under m, regardless of
// variant (false for KindNone).
func (m Manager) HasOwner(owner Owner) bool {
	switch m.kind {
	case KindSingle:
		return m.single == owner
	case KindMulti:
		_, ok := m.multi[owner]
		return ok
	default:
		return false
	}
}

// NextRound is the round tracked for this manager, observed during
// synchronization. Single-owner chains never use it in a certificate
// value but still track it, per spec.
func (m Manager) NextRound() uint64 { return m.round }

// WithNextRound returns a copy of m with its tracked round updated.
func (m Manager) WithNextRound(round uint64) Manager {
	m.round = round
	return m
}

// gobManager is the exported shadow of Manager's private fields, used
// the same way gobCommittee is: only to cross a gob-encoded RPC
// boundary.
type gobManager struct {
	Kind   ManagerKind
	Single Owner
	Multi  map[Owner]struct{}
	Round  uint64
}

// GobEncode implements gob.GobEncoder.
func (m Manager) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gobManager{Kind: m.kind, Single: m.single, Multi: m.multi, Round: m.round})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (m *Manager) GobDecode(data []byte) error {
	var g gobManager
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	m.kind = g.Kind
	m.single = g.Single
	m.multi = g.Multi
	m.round = g.Round
	return nil
}
