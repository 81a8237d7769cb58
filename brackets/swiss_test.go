package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bracketforge/tournament-engine/models"
)

func TestSwissGeneratesOnlyRoundOne(t *testing.T) {
	bp, err := NewSwiss().Generate(context.Background(), GenerateParams{
		Participants: seededParticipants(1, 2, 3, 4, 5),
	})
	require.NoError(t, err)
	require.Len(t, bp.Brackets, 1)

	plan := bp.Brackets[0]
	assert.Equal(t, models.BracketMain, plan.Kind)
	// ceil(log2(5)) = 3 scheduled rounds, but only round one exists yet.
	assert.Equal(t, 3, plan.TotalRounds)
	require.Len(t, plan.Matches, 3)
	for _, m := range plan.Matches {
		assert.Equal(t, 1, m.Round, m.UID)
		assert.Nil(t, m.WinnerToUID, m.UID)
		assert.Nil(t, m.LoserToUID, m.UID)
	}
}

func TestSwissRoundOnePairsAdjacentSeeds(t *testing.T) {
	bp, err := NewSwiss().Generate(context.Background(), GenerateParams{
		Participants: seededParticipants(10, 20, 30, 40, 50),
	})
	require.NoError(t, err)

	byUID := planByUID(bp)
	assert.Equal(t, 10, *byUID["S-R1-M1"].Participant1ID)
	assert.Equal(t, 20, *byUID["S-R1-M1"].Participant2ID)
	assert.Equal(t, 30, *byUID["S-R1-M2"].Participant1ID)
	assert.Equal(t, 40, *byUID["S-R1-M2"].Participant2ID)

	// The odd participant out gets a bye-win for the round.
	bye := byUID["S-R1-M3"]
	require.True(t, bye.Completed)
	require.NotNil(t, bye.WinnerID)
	assert.Equal(t, 50, *bye.WinnerID)
	assert.Nil(t, bye.Participant2ID)
}

func TestPairSwissRoundSortsByStanding(t *testing.T) {
	standings := []SwissStanding{
		{ParticipantID: 1, Wins: 1, GameDiff: 2, Seed: 1},
		{ParticipantID: 2, Wins: 0, GameDiff: -2, Seed: 2},
		{ParticipantID: 3, Wins: 1, GameDiff: 4, Seed: 3},
		{ParticipantID: 4, Wins: 0, GameDiff: -4, Seed: 4},
	}

	matches := PairSwissRound(2, standings)
	require.Len(t, matches, 2)

	// Leaders pair with leaders: 3 (1W, +4) vs 1 (1W, +2), then 2 vs 4.
	assert.Equal(t, 3, *matches[0].Participant1ID)
	assert.Equal(t, 1, *matches[0].Participant2ID)
	assert.Equal(t, 2, *matches[1].Participant1ID)
	assert.Equal(t, 4, *matches[1].Participant2ID)
	assert.Equal(t, 2, matches[0].Round)
	assert.Equal(t, "S-R2-M1", matches[0].UID)
}

func TestPairSwissRoundTieBreaksBySeed(t *testing.T) {
	standings := []SwissStanding{
		{ParticipantID: 7, Wins: 1, GameDiff: 0, Seed: 4},
		{ParticipantID: 8, Wins: 1, GameDiff: 0, Seed: 1},
		{ParticipantID: 9, Wins: 1, GameDiff: 0, Seed: 3},
	}

	matches := PairSwissRound(3, standings)
	require.Len(t, matches, 2)
	assert.Equal(t, 8, *matches[0].Participant1ID)
	assert.Equal(t, 9, *matches[0].Participant2ID)

	bye := matches[1]
	require.True(t, bye.Completed)
	assert.Equal(t, 7, *bye.WinnerID)
}
