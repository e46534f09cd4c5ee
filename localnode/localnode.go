// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package localnode implements the in-process mirror of a chain: it
// holds the tip, applies incoming certificates, serves chain-info
// queries, and stages candidate blocks for balance computation. The
// validator-side execution it delegates to (WorkerState, the Wasm
// runtime) is an external collaborator, represented here only by the
// Executor interface.
package localnode

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/chainclient/block"
	"github.com/luxfi/chainclient/chainid"
	"github.com/luxfi/chainclient/committee"
	"github.com/luxfi/chainclient/node"
	"github.com/luxfi/chainclient/storage"
)

// Executor runs a block's operations against chain state, out of
// process in a production deployment (the WorkerState + Wasm runtime
// named in spec §1/§6), represented here only at the interface the
// Local Node needs: given a block and the manager active at the time,
// compute the resulting state hash, the chain's new balance, and any
// cross-chain messages the block emits.
type Executor interface {
	Execute(ctx context.Context, b block.Block, manager committee.Manager) (ExecutionResult, error)
}

// ExecutionResult is everything a Local Node needs after running a
// block, beyond the state hash committed to by votes.
type ExecutionResult struct {
	StateHash block.Hash
	Balance   block.Balance
	Manager   committee.Manager // manager in effect AFTER the block (may differ, e.g. ChangeOwner)
	Outgoing  []OutgoingMessage
}

// OutgoingMessage is a cross-chain effect a block emits, destined for
// another chain's inbox.
type OutgoingMessage struct {
	Destination chainid.ID
	Message     block.IncomingMessage
}

// chainState is the mutable record the Local Node keeps per chain.
type chainState struct {
	manager         committee.Manager
	committees          []committee.Committee // current + any still-relevant historical committees
	adminID             chainid.ID
	balance             block.Balance
	pendingMessages     []block.MessageGroup
	receivedCertificates []block.Certificate // sender certificates confirmed as addressed to this chain
}

// Node is the in-process chain replica shared by every Session that
// tracks chains through it. Its storage and per-chain state are guarded
// by a single mutex whose critical sections never cover network I/O or
// block execution — those happen with the lock released, matching the
// module-cache discipline described in spec §5.
type Node struct {
	mu       sync.Mutex
	store    storage.Store
	state    map[chainid.ID]*chainState
	executor Executor
	log      log.Logger
}

// New builds a Local Node over store, delegating execution to exec.
func New(store storage.Store, exec Executor, logger log.Logger) *Node {
	return &Node{
		store:    store,
		state:    make(map[chainid.ID]*chainState),
		executor: exec,
		log:      logger,
	}
}

func (n *Node) stateFor(chain chainid.ID) *chainState {
	n.mu.Lock()
	defer n.mu.Unlock()
	cs, ok := n.state[chain]
	if !ok {
		cs = &chainState{manager: committee.NewNone()}
		n.state[chain] = cs
	}
	return cs
}

// Activate installs the initial manager/committee/admin for a chain,
// used when a genesis chain or a freshly opened child chain becomes
// known to this node (normally via a ConfirmedBlock that contains the
// opening operation).
func (n *Node) Activate(chain chainid.ID, manager committee.Manager, comm committee.Committee, adminID chainid.ID) {
	cs := n.stateFor(chain)
	n.mu.Lock()
	defer n.mu.Unlock()
	cs.manager = manager
	cs.committees = []committee.Committee{comm}
	cs.adminID = adminID
}

// SetBalance seeds chain's starting balance. Only a chain opened via
// OpenChain starts at zero by construction; a genesis chain (one this
// node did not itself open) needs its initial balance set out of band,
// since nothing in the certified operation set ever mints currency.
func (n *Node) SetBalance(chain chainid.ID, balance block.Balance) {
	cs := n.stateFor(chain)
	n.mu.Lock()
	defer n.mu.Unlock()
	cs.balance = balance
}

// HandleChainInfoQuery answers a ChainInfoQuery against local state,
// per spec §4.3/§6.
func (n *Node) HandleChainInfoQuery(ctx context.Context, query node.ChainInfoQuery) (node.ChainInfoResponse, error) {
	height, err := n.store.Height(ctx, query.ChainID)
	if err != nil {
		return node.ChainInfoResponse{}, fmt.Errorf("localnode: reading height: %w", err)
	}
	cs := n.stateFor(query.ChainID)

	n.mu.Lock()
	if cs.manager.Kind() == committee.KindNone && height == 0 {
		n.mu.Unlock()
		return node.ChainInfoResponse{}, &node.InactiveChainError{ChainID: query.ChainID}
	}
	info := node.ChainInfo{
		ChainID:         query.ChainID,
		NextBlockHeight: height,
		Manager:         cs.manager,
		Balance:         cs.balance,
		AdminID:         cs.adminID,
	}
	if query.QueryCommittees {
		info.QueriedCommittees = append(info.QueriedCommittees, cs.committees...)
	}
	if query.QueryPendingMessages {
		info.QueriedPendingMessages = append(info.QueriedPendingMessages, cs.pendingMessages...)
	}
	n.mu.Unlock()

	if height > 0 {
		tip, err := n.store.CertificateAt(ctx, query.ChainID, height-1)
		if err == nil {
			h := tip.Value.Block.Hash()
			info.BlockHash = &h
		}
	}

	if rng := query.QuerySentCertificatesInRange; rng != nil {
		for h := rng.From; h <= rng.To; h++ {
			cert, err := n.store.CertificateAt(ctx, query.ChainID, h)
			if err != nil {
				break
			}
			info.QueriedSentCertificates = append(info.QueriedSentCertificates, cert)
		}
	}

	if cursor := query.QueryReceivedCertificatesExcludingFirstN; cursor != nil {
		n.mu.Lock()
		all := cs.receivedCertificates
		n.mu.Unlock()
		info.CountReceivedCertificates = uint64(len(all))
		if *cursor < uint64(len(all)) {
			info.QueriedReceivedCertificates = append(info.QueriedReceivedCertificates, all[*cursor:]...)
		}
	}

	return node.ChainInfoResponse{Info: info, Validator: committee.ValidatorName{}}, nil
}

// HandleCertificate verifies, applies, and executes cert, per spec
// §4.3. It fails with ErrInvalidCertificate, MissingPreviousBlockError,
// or InactiveChainError.
func (n *Node) HandleCertificate(ctx context.Context, cert block.Certificate) (*block.Vote, error) {
	chain := cert.Value.Block.ChainID
	height, err := n.store.Height(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("localnode: reading height: %w", err)
	}
	if cert.Value.Block.Height > height {
		return nil, &node.MissingPreviousBlockError{Height: uint64(height)}
	}
	if cert.Value.Block.Height < height {
		// Already applied; HandleCertificate is idempotent.
		return nil, nil
	}

	cs := n.stateFor(chain)
	n.mu.Lock()
	manager := cs.manager
	comm := currentCommittee(cs)
	n.mu.Unlock()

	if manager.Kind() == committee.KindNone && height == 0 {
		return nil, &node.InactiveChainError{ChainID: chain}
	}
	if cert.Value.Kind != block.KindConfirmedBlock {
		return nil, node.ErrInvalidCertificate
	}
	if err := verifyQuorum(cert, comm); err != nil {
		return nil, err
	}
	if cert.Value.Block.Height > 0 && cert.Value.Block.PreviousBlockHash == (block.Hash{}) {
		return nil, node.ErrInvalidBlockChaining
	}

	result, err := n.executor.Execute(ctx, cert.Value.Block, manager)
	if err != nil {
		return nil, fmt.Errorf("localnode: executing block: %w", err)
	}
	if result.StateHash != cert.Value.StateHash {
		return nil, node.ErrInvalidCertificate
	}

	if err := n.store.WriteCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("localnode: persisting certificate: %w", err)
	}

	n.mu.Lock()
	cs.manager = result.Manager
	cs.balance = result.Balance
	n.mu.Unlock()

	for _, out := range result.Outgoing {
		n.deliverCrossChain(out, cert)
	}

	return nil, nil
}

// deliverCrossChain stages an outgoing message in the destination
// chain's pending-messages queue and records the sender's certificate
// in its received-certificate history. In a multi-node deployment this
// would instead be a network push (HandleCrossChainRequest); the Local
// Node does it in-process because it mirrors every chain a Session
// cares about.
func (n *Node) deliverCrossChain(out OutgoingMessage, sender block.Certificate) {
	cs := n.stateFor(out.Destination)
	n.mu.Lock()
	defer n.mu.Unlock()
	cs.receivedCertificates = append(cs.receivedCertificates, sender)
	for i := range cs.pendingMessages {
		g := &cs.pendingMessages[i]
		if g.Origin == out.Message.Origin && g.Height == out.Message.Height {
			g.Messages = append(g.Messages, out.Message)
			return
		}
	}
	cs.pendingMessages = append(cs.pendingMessages, block.MessageGroup{
		Origin:   out.Message.Origin,
		Height:   out.Message.Height,
		Messages: []block.IncomingMessage{out.Message},
	})
}

// StageBlockExecution executes b speculatively without committing,
// used to compute local_balance without waiting for a round trip to the
// validators.
func (n *Node) StageBlockExecution(ctx context.Context, b block.Block) (ExecutionResult, error) {
	cs := n.stateFor(b.ChainID)
	n.mu.Lock()
	manager := cs.manager
	n.mu.Unlock()
	return n.executor.Execute(ctx, b, manager)
}

// DownloadCertificates brings local history for chain up to
// targetHeight by querying validators. It does not require a quorum:
// certificates are self-authenticating, so the first valid answer
// suffices — deliberately a different fan-out shape than the Quorum
// Communicator (spec §9 "Best-effort vs. quorum paths").
func (n *Node) DownloadCertificates(ctx context.Context, validators []committee.ValidatorName, clients map[committee.ValidatorName]node.ValidatorNode, chain chainid.ID, targetHeight chainid.BlockHeight) (node.ChainInfo, error) {
	height, err := n.store.Height(ctx, chain)
	if err != nil {
		return node.ChainInfo{}, err
	}
	for height < targetHeight {
		cert, err := n.firstValidCertificateAt(ctx, validators, clients, chain, height)
		if err != nil {
			break // best-effort: stop at the first gap we cannot fill
		}
		if _, err := n.HandleCertificate(ctx, cert); err != nil {
			return node.ChainInfo{}, fmt.Errorf("localnode: applying downloaded certificate at %d: %w", height, err)
		}
		height++
	}
	resp, err := n.HandleChainInfoQuery(ctx, node.ChainInfoQuery{ChainID: chain})
	if err != nil {
		return node.ChainInfo{}, err
	}
	return resp.Info, nil
}

func (n *Node) firstValidCertificateAt(ctx context.Context, validators []committee.ValidatorName, clients map[committee.ValidatorName]node.ValidatorNode, chain chainid.ID, height chainid.BlockHeight) (block.Certificate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		cert block.Certificate
		err  error
	}
	results := make(chan outcome, len(validators))
	for _, name := range validators {
		client := clients[name]
		go func() {
			rng := node.HeightRange{From: height, To: height}
			resp, err := client.HandleChainInfoQuery(ctx, node.ChainInfoQuery{ChainID: chain, QuerySentCertificatesInRange: &rng})
			if err != nil || len(resp.Info.QueriedSentCertificates) == 0 {
				results <- outcome{err: fmt.Errorf("no certificate at height %d", height)}
				return
			}
			results <- outcome{cert: resp.Info.QueriedSentCertificates[0]}
		}()
	}
	for range validators {
		o := <-results
		if o.err == nil {
			return o.cert, nil
		}
	}
	return block.Certificate{}, fmt.Errorf("localnode: no validator had a certificate at height %d", height)
}

// SynchronizeChainState is a best-effort refresh of the chain's tip,
// queried from every validator: it keeps the response reporting the
// highest NextBlockHeight. The reported tip is not checked against a
// certificate.
func (n *Node) SynchronizeChainState(ctx context.Context, validators []committee.ValidatorName, clients map[committee.ValidatorName]node.ValidatorNode, chain chainid.ID) (node.ChainInfo, error) {
	var best node.ChainInfo
	haveBest := false
	for _, name := range validators {
		resp, err := clients[name].HandleChainInfoQuery(ctx, node.ChainInfoQuery{ChainID: chain})
		if err != nil {
			continue
		}
		if !haveBest || resp.Info.NextBlockHeight > best.NextBlockHeight {
			best = resp.Info
			haveBest = true
		}
	}
	if !haveBest {
		return n.HandleChainInfoQuery(ctx, node.ChainInfoQuery{ChainID: chain})
	}
	return best, nil
}

func currentCommittee(cs *chainState) committee.Committee {
	if len(cs.committees) == 0 {
		return committee.Committee{}
	}
	return cs.committees[len(cs.committees)-1]
}

func verifyQuorum(cert block.Certificate, comm committee.Committee) error {
	var power uint64
	seen := make(map[committee.ValidatorName]bool)
	for _, sig := range cert.Signatures {
		if seen[sig.Validator] || !comm.Has(sig.Validator) {
			continue
		}
		seen[sig.Validator] = true
		power += comm.Power(sig.Validator)
	}
	if power < comm.QuorumThreshold() {
		return node.ErrInvalidCertificate
	}
	return nil
}
