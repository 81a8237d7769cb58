package brackets

import (
	"context"
	"fmt"

	"github.com/bracketforge/tournament-engine/models"
)

type roundRobin struct{}

func NewRoundRobin() Generator {
	return roundRobin{}
}

func (roundRobin) Name() string { return "round_robin" }

// Generate creates exactly one match per unordered participant pair.
// Round assignment uses (i+j) mod totalRounds + 1 over the zero-based
// seed indices, with totalRounds = N-1 for even N and N for odd N. The
// formula does not balance per-round match counts; some rounds come out
// denser than others, which is accepted behavior.
func (roundRobin) Generate(_ context.Context, params GenerateParams) (*Blueprint, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}

	totalRounds := n - 1
	if n%2 == 1 {
		totalRounds = n
	}

	var matches []*PlanMatch
	perRound := make(map[int]int)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			round := (i+j)%totalRounds + 1
			perRound[round]++
			p1, p2 := params.Participants[i].ID, params.Participants[j].ID
			matches = append(matches, &PlanMatch{
				UID:            fmt.Sprintf("RR-R%d-M%d", round, perRound[round]),
				Round:          round,
				Number:         perRound[round],
				Participant1ID: &p1,
				Participant2ID: &p2,
			})
		}
	}

	return &Blueprint{Brackets: []*BracketPlan{{
		Kind:        models.BracketMain,
		TotalRounds: totalRounds,
		Matches:     matches,
	}}}, nil
}
