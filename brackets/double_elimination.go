package brackets

import (
	"context"
	"fmt"

	"github.com/bracketforge/tournament-engine/models"
)

const grandFinalUID = "GF"

type doubleElimination struct{}

func NewDoubleElimination() Generator {
	return doubleElimination{}
}

func (doubleElimination) Name() string { return "double_elimination" }

// Generate builds a winners bracket identical to single elimination plus
// a losers bracket of 2*(W-1) rounds, where W is the winners round
// count. Losers-bracket rounds 2k-1 and 2k each hold size/2^(k+1)
// matches: odd rounds intake losers from the winners bracket, even
// rounds consolidate. Both bracket finals feed the grand final.
//
// Loser routing:
//   - winners round 1 match i  -> losers round 1 match ceil(i/2)
//   - winners round r>1 match i -> losers round 2(r-1) match i
func (doubleElimination) Generate(_ context.Context, params GenerateParams) (*Blueprint, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}

	wRounds := ceilLog2(n)
	size := 1 << wRounds

	winners := buildWinnersTree(wRounds)
	assignFirstRound(winners[0], params.Participants)

	grandFinal := &PlanMatch{
		UID:          grandFinalUID,
		Round:        wRounds + 1,
		Number:       1,
		IsGrandFinal: true,
	}
	winnersFinal := winners[wRounds-1][0]
	winnersFinal.WinnerToUID = strPtr(grandFinalUID)

	lRounds := 2 * (wRounds - 1)
	var losers [][]*PlanMatch
	if lRounds == 0 {
		// Two-participant edge case: no losers bracket, the loser of the
		// only winners match goes straight to the grand final.
		winnersFinal.LoserToUID = strPtr(grandFinalUID)
	} else {
		losers = buildLosersRounds(size, lRounds)

		// Winners-bracket losers drop down.
		for i, m := range winners[0] {
			m.LoserToUID = strPtr(losersUID(1, i/2+1))
		}
		for r := 2; r <= wRounds; r++ {
			for i, m := range winners[r-1] {
				m.LoserToUID = strPtr(losersUID(2*(r-1), i+1))
			}
		}

		// Internal losers-bracket advancement: odd round i -> even round
		// same index, even round i -> next odd round ceil(i/2).
		for l := 1; l <= lRounds; l++ {
			for i, m := range losers[l-1] {
				switch {
				case l == lRounds:
					m.WinnerToUID = strPtr(grandFinalUID)
				case l%2 == 1:
					m.WinnerToUID = strPtr(losersUID(l+1, i+1))
				default:
					m.WinnerToUID = strPtr(losersUID(l+1, i/2+1))
				}
			}
		}
	}

	var wAll []*PlanMatch
	for _, rm := range winners {
		wAll = append(wAll, rm...)
	}
	wAll = append(wAll, grandFinal)

	plans := []*BracketPlan{{
		Kind:        models.BracketMain,
		TotalRounds: wRounds + 1, // grand final counts as the last main round
		Matches:     wAll,
	}}
	if lRounds > 0 {
		var lAll []*PlanMatch
		for _, rm := range losers {
			lAll = append(lAll, rm...)
		}
		plans = append(plans, &BracketPlan{
			Kind:        models.BracketLosers,
			TotalRounds: lRounds,
			Matches:     lAll,
		})
	}

	bp := &Blueprint{Brackets: plans}
	resolveByes(bp)
	return bp, nil
}

func buildLosersRounds(size, lRounds int) [][]*PlanMatch {
	rounds := make([][]*PlanMatch, lRounds)
	for l := 1; l <= lRounds; l++ {
		k := (l + 1) / 2
		count := size >> (k + 1)
		rounds[l-1] = make([]*PlanMatch, count)
		for i := 1; i <= count; i++ {
			rounds[l-1][i-1] = &PlanMatch{
				UID:    losersUID(l, i),
				Round:  l,
				Number: i,
			}
		}
	}
	return rounds
}

func losersUID(round, number int) string {
	return fmt.Sprintf("L-R%d-M%d", round, number)
}
