package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bracketforge/tournament-engine/models"
)

func seededParticipants(ids ...int) []*models.Participant {
	out := make([]*models.Participant, len(ids))
	for i, id := range ids {
		out[i] = &models.Participant{ID: id}
	}
	return out
}

func planByUID(bp *Blueprint) map[string]*PlanMatch {
	out := make(map[string]*PlanMatch)
	for _, m := range bp.AllMatches() {
		out[m.UID] = m
	}
	return out
}

func TestSingleEliminationRejectsTooFew(t *testing.T) {
	_, err := NewSingleElimination().Generate(context.Background(), GenerateParams{
		Participants: seededParticipants(1),
	})
	require.ErrorIs(t, err, ErrNotEnoughParticipants)
}

func TestSingleEliminationFiveParticipants(t *testing.T) {
	bp, err := NewSingleElimination().Generate(context.Background(), GenerateParams{
		Participants: seededParticipants(11, 12, 13, 14, 15),
	})
	require.NoError(t, err)
	require.Len(t, bp.Brackets, 1)

	plan := bp.Brackets[0]
	assert.Equal(t, models.BracketMain, plan.Kind)
	assert.Equal(t, 3, plan.TotalRounds)
	// Padded to 8 slots: 4 + 2 + 1 matches.
	require.Len(t, plan.Matches, 7)

	byUID := planByUID(bp)

	// Seed 1 meets the overflow seed 5; every other first-round match is
	// a bye for its top seed.
	m1 := byUID["W-R1-M1"]
	require.NotNil(t, m1.Participant1ID)
	require.NotNil(t, m1.Participant2ID)
	assert.Equal(t, 11, *m1.Participant1ID)
	assert.Equal(t, 15, *m1.Participant2ID)
	assert.False(t, m1.Completed)

	byes := 0
	for _, uid := range []string{"W-R1-M2", "W-R1-M3", "W-R1-M4"} {
		m := byUID[uid]
		require.True(t, m.Completed, uid)
		require.NotNil(t, m.WinnerID, uid)
		byes++
	}
	assert.Equal(t, 3, byes)

	// Bye winners land downstream: seeds 3 and 4 fill the second
	// semifinal completely, seed 2 waits on the first quarterfinal.
	semi1, semi2 := byUID["W-R2-M1"], byUID["W-R2-M2"]
	require.NotNil(t, semi1.Participant1ID)
	assert.Equal(t, 12, *semi1.Participant1ID)
	assert.Nil(t, semi1.Participant2ID)
	assert.False(t, semi1.Completed)

	require.NotNil(t, semi2.Participant1ID)
	require.NotNil(t, semi2.Participant2ID)
	assert.Equal(t, 13, *semi2.Participant1ID)
	assert.Equal(t, 14, *semi2.Participant2ID)
	assert.False(t, semi2.Completed)

	// Advancement links: round r match i feeds round r+1 match ceil(i/2).
	assert.Equal(t, "W-R2-M1", *byUID["W-R1-M1"].WinnerToUID)
	assert.Equal(t, "W-R2-M1", *byUID["W-R1-M2"].WinnerToUID)
	assert.Equal(t, "W-R2-M2", *byUID["W-R1-M3"].WinnerToUID)
	assert.Equal(t, "W-R2-M2", *byUID["W-R1-M4"].WinnerToUID)
	assert.Equal(t, "W-R3-M1", *byUID["W-R2-M1"].WinnerToUID)
	assert.Equal(t, "W-R3-M1", *byUID["W-R2-M2"].WinnerToUID)
	assert.Nil(t, byUID["W-R3-M1"].WinnerToUID)

	// No loser routing in single elimination.
	for _, m := range plan.Matches {
		assert.Nil(t, m.LoserToUID, m.UID)
	}
}

func TestSingleEliminationPowerOfTwoHasNoByes(t *testing.T) {
	bp, err := NewSingleElimination().Generate(context.Background(), GenerateParams{
		Participants: seededParticipants(1, 2, 3, 4),
	})
	require.NoError(t, err)

	plan := bp.Brackets[0]
	assert.Equal(t, 2, plan.TotalRounds)
	require.Len(t, plan.Matches, 3)
	for _, m := range plan.Matches {
		assert.False(t, m.Completed, m.UID)
	}

	byUID := planByUID(bp)
	// Slot-first fill: 1v3 and 2v4.
	assert.Equal(t, 1, *byUID["W-R1-M1"].Participant1ID)
	assert.Equal(t, 3, *byUID["W-R1-M1"].Participant2ID)
	assert.Equal(t, 2, *byUID["W-R1-M2"].Participant1ID)
	assert.Equal(t, 4, *byUID["W-R1-M2"].Participant2ID)
}

func TestSingleEliminationByeCountMatchesPadding(t *testing.T) {
	for n := 2; n <= 33; n++ {
		participants := make([]*models.Participant, n)
		for i := range participants {
			participants[i] = &models.Participant{ID: i + 1}
		}
		bp, err := NewSingleElimination().Generate(context.Background(), GenerateParams{
			Participants: participants,
		})
		require.NoError(t, err)

		size := 1 << ceilLog2(n)
		firstRoundByes := 0
		for _, m := range bp.Brackets[0].Matches {
			if m.Round == 1 && m.Completed {
				firstRoundByes++
			}
		}
		assert.Equal(t, size-n, firstRoundByes, "n=%d", n)
		assert.Len(t, bp.Brackets[0].Matches, size-1, "n=%d", n)
	}
}
