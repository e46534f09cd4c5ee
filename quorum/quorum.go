// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quorum implements the Quorum Communicator: fan a query out to
// every validator concurrently, tally responses weighted by voting
// power, and return as soon as one projected value reaches quorum or it
// becomes impossible for any value to.
//
// This is deliberately a separate code path from the best-effort
// first-N-responses fan-out used by received-certificate sync and
// history download — those want the first answer, not a quorum of
// agreeing answers, and folding both shapes into one primitive would
// obscure which guarantee a given caller actually gets.
package quorum

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/chainclient/committee"
)

// Task is one validator's contribution: perform the per-validator work
// and return either a value or an error.
type Task[V any] func(ctx context.Context, name committee.ValidatorName) (V, error)

// Result is what communicate_with_quorum returns on success: the
// winning projected key and every value that projected to it.
type Result[K comparable, V any] struct {
	Key    K
	Values []V
}

// ErrImpossible is wrapped into the returned error when no projected
// key can still reach quorum: the power backing the best key plus all
// power that has not yet answered is not enough to cross the threshold.
var ErrImpossible = errors.New("quorum: impossible to reach quorum")

// Communicate launches task once per validator in c, concurrently,
// groups successes by project(value), and returns as soon as some
// group's accumulated voting power reaches c.QuorumThreshold(). Tasks
// still running when a terminal condition is reached are cancelled;
// cancellation is a courtesy, not a guarantee — a task may have already
// sent its request over the network by the time ctx is cancelled, and
// that is fine.
func Communicate[K comparable, V any](
	ctx context.Context,
	c committee.Committee,
	project func(V) K,
	task Task[V],
) (Result[K, V], error) {
	names := c.Names()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		name  committee.ValidatorName
		value V
		err   error
	}
	results := make(chan outcome, len(names))

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name committee.ValidatorName) {
			defer wg.Done()
			v, err := task(ctx, name)
			select {
			case results <- outcome{name: name, value: v, err: err}:
			case <-ctx.Done():
			}
		}(name)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	groupPower := make(map[K]uint64)
	groupValues := make(map[K][]V)
	var answeredPower, maxGroupPower uint64
	var dominantErr error

	for o := range results {
		power := c.Power(o.name)
		answeredPower += power
		if o.err != nil {
			if dominantErr == nil {
				dominantErr = o.err
			}
			if !stillPossible(c, answeredPower, maxGroupPower) {
				return Result[K, V]{}, quorumFailure(dominantErr)
			}
			continue
		}

		key := project(o.value)
		groupPower[key] += power
		groupValues[key] = append(groupValues[key], o.value)
		if groupPower[key] > maxGroupPower {
			maxGroupPower = groupPower[key]
		}

		if groupPower[key] >= c.QuorumThreshold() {
			return Result[K, V]{Key: key, Values: groupValues[key]}, nil
		}

		if !stillPossible(c, answeredPower, maxGroupPower) {
			return Result[K, V]{}, quorumFailure(dominantErr)
		}
	}

	return Result[K, V]{}, quorumFailure(dominantErr)
}

// stillPossible implements the Quorum Communicator's impossibility
// check: quorum remains reachable only if the voting power that has not
// answered yet, plus the largest current group, could together cross
// the quorum threshold.
func stillPossible(c committee.Committee, answeredPower, maxGroupPower uint64) bool {
	outstanding := c.TotalVotingPower() - answeredPower
	return outstanding+maxGroupPower >= c.QuorumThreshold()
}

func quorumFailure(dominant error) error {
	if dominant != nil {
		return errors.Wrap(dominant, "failed to communicate with a quorum of validators")
	}
	return errors.Wrap(ErrImpossible, "failed to communicate with a quorum of validators")
}
