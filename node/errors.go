package node

import (
	"errors"

	"github.com/luxfi/chainclient/chainid"
)

// Validation errors: signature/validity failures. Never retried — they
// indicate a Byzantine peer or a bug, never a transient condition.
var (
	ErrInvalidSignature           = errors.New("invalid signature")
	ErrInvalidBlockChaining       = errors.New("invalid block chaining")
	ErrInvalidCertificate         = errors.New("invalid certificate")
	ErrUnexpectedBlockHeight      = errors.New("unexpected block height")
	ErrUnexpectedPreviousBlockHash = errors.New("unexpected previous block hash")
	ErrUnexpectedResponder        = errors.New("response signed by an unexpected validator")
)

// MissingPreviousBlockError reports that a validator needs the block at
// Height uploaded before it can process what we asked it to do.
type MissingPreviousBlockError struct {
	Height uint64
}

func (e *MissingPreviousBlockError) Error() string {
	return "missing previous block"
}

// InactiveChainError reports that a chain has no active manager, either
// because it was never opened or it was closed.
type InactiveChainError struct {
	ChainID chainid.ID
}

func (e *InactiveChainError) Error() string {
	return "chain is inactive"
}
