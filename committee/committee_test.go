// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committee

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func testCommittee(t *testing.T) Committee {
	t.Helper()
	a, b, c := ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID()
	return New(ids.GenerateTestID(), map[ValidatorName]uint64{a: 1, b: 1, c: 1})
}

func TestQuorumAndValidityThresholds(t *testing.T) {
	c := testCommittee(t)
	require.Equal(t, uint64(3), c.TotalVotingPower())
	require.Equal(t, uint64(3), c.QuorumThreshold()) // 3*2/3+1 = 3
	require.Equal(t, uint64(2), c.ValidityThreshold())
}

func TestCommitteeGobRoundTrip(t *testing.T) {
	c := testCommittee(t)
	enc, err := c.GobEncode()
	require.NoError(t, err)

	var decoded Committee
	require.NoError(t, decoded.GobDecode(enc))
	require.True(t, c.Equal(decoded))
}

func TestManagerGobRoundTrip(t *testing.T) {
	o1, o2 := ids.GenerateTestID(), ids.GenerateTestID()
	m := NewMulti(o1, o2).WithNextRound(7)

	enc, err := m.GobEncode()
	require.NoError(t, err)

	var decoded Manager
	require.NoError(t, decoded.GobDecode(enc))
	require.Equal(t, KindMulti, decoded.Kind())
	require.True(t, decoded.HasOwner(o1))
	require.True(t, decoded.HasOwner(o2))
	require.Equal(t, uint64(7), decoded.NextRound())
}

func TestManagerKindDefaults(t *testing.T) {
	none := NewNone()
	require.Equal(t, KindNone, none.Kind())
	require.False(t, none.HasOwner(ids.GenerateTestID()))

	single := NewSingle(ids.GenerateTestID())
	require.Equal(t, KindSingle, single.Kind())
}
