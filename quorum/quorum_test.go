// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quorum

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/chainclient/committee"
)

func fourValidatorCommittee(t *testing.T) (committee.Committee, []committee.ValidatorName) {
	t.Helper()
	names := []committee.ValidatorName{
		ids.GenerateTestNodeID(), ids.GenerateTestNodeID(),
		ids.GenerateTestNodeID(), ids.GenerateTestNodeID(),
	}
	power := make(map[committee.ValidatorName]uint64, len(names))
	for _, n := range names {
		power[n] = 1
	}
	return committee.New(ids.GenerateTestID(), power), names
}

func TestCommunicateReachesQuorum(t *testing.T) {
	c, names := fourValidatorCommittee(t)
	result, err := Communicate(context.Background(), c,
		func(v int) int { return v },
		func(ctx context.Context, name committee.ValidatorName) (int, error) {
			return 42, nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, 42, result.Key)
	require.GreaterOrEqual(t, len(result.Values), 3)
	_ = names
}

func TestCommunicateImpossibleWhenSplit(t *testing.T) {
	c, names := fourValidatorCommittee(t)
	result, err := Communicate(context.Background(), c,
		func(v int) int { return v },
		func(ctx context.Context, name committee.ValidatorName) (int, error) {
			for i, n := range names {
				if n == name {
					return i % 2, nil // splits votes 2/2, neither side can reach 3
				}
			}
			return 0, nil
		},
	)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrImpossible)
	require.Empty(t, result.Values)
}

func TestCommunicateTrackingValidatorErrors(t *testing.T) {
	c, names := fourValidatorCommittee(t)
	sentinel := errors.New("validator offline")
	result, err := Communicate(context.Background(), c,
		func(v int) int { return v },
		func(ctx context.Context, name committee.ValidatorName) (int, error) {
			if name == names[0] || name == names[1] || name == names[2] {
				return 0, sentinel
			}
			return 1, nil
		},
	)
	require.Error(t, err)
	require.Empty(t, result.Values)
}
