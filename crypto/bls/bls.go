// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bls is the signing/verification backend behind
// session.KeyPair.Sign and certificate-signature checks. Owner and
// validator key material and the actual pairing-based signature scheme
// are an external collaborator (spec Non-goals: cryptographic
// primitives); this package is the seam the rest of the module calls
// through, so swapping in a real BLS library touches only this package.
package bls

type AggregateSignature struct {
	Bytes []byte
}

func Sign(msg []byte) []byte                        { return nil }
func Verify(msg, sig []byte, pk []byte) bool        { return true }
func AggregatePartial(sigs ...[]byte) AggregateSignature     { return AggregateSignature{} }
func VerifyAggregate(msg []byte, agg AggregateSignature, pks [][]byte) bool { return true }