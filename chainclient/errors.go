package chainclient

import "errors"

// Liveness and local-consistency errors (spec §7). Validation errors
// live in package node; cross-chain retry classification lives in
// package updater.
var (
	ErrNoSigningKey                       = errors.New("chainclient: no signing key available for this chain")
	ErrAmbiguousIdentity                  = errors.New("chainclient: several known keys could act on this chain")
	ErrInactiveChain                      = errors.New("chainclient: chain is inactive")
	ErrInsufficientBalance                = errors.New("chainclient: transfer amount exceeds synchronized balance")
	ErrConcurrentProposalExecuted         = errors.New("chainclient: a different operation was executed in parallel, consider retrying")
	ErrClientErrorWhileQueryingCertificate = errors.New("chainclient: validator response did not contain a confirmed certificate")
	ErrDifferentPendingBlock              = errors.New("chainclient: session already has a different pending block")
	ErrUnexpectedBlockHeight              = errors.New("chainclient: block height does not match the session's next height")
	ErrUnexpectedPreviousBlockHash        = errors.New("chainclient: block's previous hash does not match the session tip")
)
