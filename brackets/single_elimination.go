package brackets

import (
	"context"
	"fmt"

	"github.com/bracketforge/tournament-engine/models"
)

type singleElimination struct{}

func NewSingleElimination() Generator {
	return singleElimination{}
}

func (singleElimination) Name() string { return "single_elimination" }

// Generate builds a full padded tree: the bracket size is the smallest
// power of two >= N, the first round holds size/2 matches, and exactly
// size-N of them are byes. Winner of round r match i advances to round
// r+1 match ceil(i/2).
func (singleElimination) Generate(_ context.Context, params GenerateParams) (*Blueprint, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}

	rounds := ceilLog2(n)
	tree := buildWinnersTree(rounds)
	assignFirstRound(tree[0], params.Participants)

	var all []*PlanMatch
	for _, roundMatches := range tree {
		all = append(all, roundMatches...)
	}

	bp := &Blueprint{Brackets: []*BracketPlan{{
		Kind:        models.BracketMain,
		TotalRounds: rounds,
		Matches:     all,
	}}}
	resolveByes(bp)
	return bp, nil
}

// buildWinnersTree creates the empty match skeleton of an elimination
// tree with the given round count and links every non-final match to its
// successor. Returned as one slice per round.
func buildWinnersTree(rounds int) [][]*PlanMatch {
	size := 1 << rounds
	tree := make([][]*PlanMatch, rounds)
	for r := 1; r <= rounds; r++ {
		count := size >> r
		tree[r-1] = make([]*PlanMatch, count)
		for i := 1; i <= count; i++ {
			tree[r-1][i-1] = &PlanMatch{
				UID:    winnersUID(r, i),
				Round:  r,
				Number: i,
			}
		}
	}
	for r := 1; r < rounds; r++ {
		for i, m := range tree[r-1] {
			m.WinnerToUID = strPtr(winnersUID(r+1, i/2+1))
		}
	}
	return tree
}

// assignFirstRound places seeds into round one: slot 1 of every match
// first (seeds 1..size/2 in match order), then the remaining seeds fill
// slot 2 from the top. Matches left with an empty second slot are byes.
func assignFirstRound(firstRound []*PlanMatch, seeded []*models.Participant) {
	half := len(firstRound)
	for i, m := range firstRound {
		if i < len(seeded) {
			id := seeded[i].ID
			m.Participant1ID = &id
		}
	}
	for i := half; i < len(seeded); i++ {
		id := seeded[i].ID
		firstRound[i-half].Participant2ID = &id
	}
}

func winnersUID(round, number int) string {
	return fmt.Sprintf("W-R%d-M%d", round, number)
}
