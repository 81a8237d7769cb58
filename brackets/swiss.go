package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/bracketforge/tournament-engine/models"
)

type swiss struct{}

func NewSwiss() Generator {
	return swiss{}
}

func (swiss) Name() string { return "swiss" }

// Generate produces only round one eagerly; later rounds are paired on
// demand once the previous round's results are in. Total rounds =
// ceil(log2(N)).
func (swiss) Generate(_ context.Context, params GenerateParams) (*Blueprint, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}

	standings := make([]SwissStanding, n)
	for i, p := range params.Participants {
		standings[i] = SwissStanding{ParticipantID: p.ID, Seed: i + 1}
	}

	return &Blueprint{Brackets: []*BracketPlan{{
		Kind:        models.BracketMain,
		TotalRounds: ceilLog2(n),
		Matches:     PairSwissRound(1, standings),
	}}}, nil
}

// SwissStanding is a participant's current record, used to pair a round.
type SwissStanding struct {
	ParticipantID int
	Wins          int
	GameDiff      int
	Seed          int
}

// PairSwissRound sorts by standing (wins, then game difference, then
// seed) and pairs adjacent entries: 1v2, 3v4, and so on. An odd
// participant out receives an automatic bye-win for the round. Repeat
// pairings are not excluded; re-pairing the same opponents is accepted
// behavior.
func PairSwissRound(round int, standings []SwissStanding) []*PlanMatch {
	ordered := make([]SwissStanding, len(standings))
	copy(ordered, standings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Wins != ordered[j].Wins {
			return ordered[i].Wins > ordered[j].Wins
		}
		if ordered[i].GameDiff != ordered[j].GameDiff {
			return ordered[i].GameDiff > ordered[j].GameDiff
		}
		return ordered[i].Seed < ordered[j].Seed
	})

	var matches []*PlanMatch
	number := 0
	for i := 0; i+1 < len(ordered); i += 2 {
		number++
		p1, p2 := ordered[i].ParticipantID, ordered[i+1].ParticipantID
		matches = append(matches, &PlanMatch{
			UID:            swissUID(round, number),
			Round:          round,
			Number:         number,
			Participant1ID: &p1,
			Participant2ID: &p2,
		})
	}
	if len(ordered)%2 == 1 {
		number++
		last := ordered[len(ordered)-1].ParticipantID
		matches = append(matches, &PlanMatch{
			UID:            swissUID(round, number),
			Round:          round,
			Number:         number,
			Participant1ID: &last,
			Completed:      true,
			WinnerID:       &last,
		})
	}
	return matches
}

func swissUID(round, number int) string {
	return fmt.Sprintf("S-R%d-M%d", round, number)
}
