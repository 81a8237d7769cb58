package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/bracketforge/tournament-engine/models"
)

var (
	ErrNotEnoughParticipants = errors.New("at least 2 participants are required to generate a bracket")
	ErrUnsupportedFormat     = errors.New("unsupported tournament format")
)

// GenerateParams carries the seeded participant list. Participants must
// already be ordered by seed: index 0 is seed 1.
type GenerateParams struct {
	Tournament   *models.Tournament
	Participants []*models.Participant
}

// PlanMatch is one node of a generated advancement graph. Links are UIDs
// rather than row ids; the persisting service resolves them to ids in a
// second pass.
type PlanMatch struct {
	UID    string
	Round  int
	Number int

	Participant1ID *int
	Participant2ID *int

	WinnerToUID *string
	LoserToUID  *string

	IsGrandFinal bool

	// Completed marks matches resolved at generation time: byes (WinnerID
	// set) and structural no-op matches both feeders of which were byes
	// (WinnerID nil).
	Completed bool
	WinnerID  *int
}

type BracketPlan struct {
	Kind        models.BracketKind
	TotalRounds int
	Matches     []*PlanMatch
}

// Blueprint is the full output of one generation run: one bracket for
// most formats, two for double elimination.
type Blueprint struct {
	Brackets []*BracketPlan
}

// Matches returns every plan match across all brackets.
func (bp *Blueprint) AllMatches() []*PlanMatch {
	var out []*PlanMatch
	for _, b := range bp.Brackets {
		out = append(out, b.Matches...)
	}
	return out
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*Blueprint, error)
	Name() string
}

// ForFormat selects the generator for a format. The switch is exhaustive
// over the closed format set.
func ForFormat(format models.TournamentFormat) (Generator, error) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleElimination(), nil
	case models.FormatDoubleElimination:
		return NewDoubleElimination(), nil
	case models.FormatSwiss:
		return NewSwiss(), nil
	case models.FormatRoundRobin:
		return NewRoundRobin(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ceilLog2 returns the number of elimination rounds needed for n
// participants; 1<<ceilLog2(n) is the padded bracket size.
func ceilLog2(n int) int {
	r := 0
	for s := 1; s < n; s <<= 1 {
		r++
	}
	return r
}

// resolveByes completes, before anything is persisted, every match that
// can never receive a second participant. A lone participant wins by
// walkover and is delivered downstream; a match left with no
// participants completes with no winner. Deliveries can create new byes
// further down, so the pass repeats until nothing changes.
func resolveByes(bp *Blueprint) {
	byUID := make(map[string]*PlanMatch)
	feeders := make(map[string][]*PlanMatch)
	for _, m := range bp.AllMatches() {
		byUID[m.UID] = m
	}
	for _, m := range bp.AllMatches() {
		if m.WinnerToUID != nil {
			feeders[*m.WinnerToUID] = append(feeders[*m.WinnerToUID], m)
		}
		if m.LoserToUID != nil {
			feeders[*m.LoserToUID] = append(feeders[*m.LoserToUID], m)
		}
	}

	for changed := true; changed; {
		changed = false
		for _, m := range bp.AllMatches() {
			if m.Completed || (m.Participant1ID != nil && m.Participant2ID != nil) {
				continue
			}
			pendingFeeder := false
			for _, f := range feeders[m.UID] {
				if !f.Completed {
					pendingFeeder = true
					break
				}
			}
			if pendingFeeder {
				continue
			}
			m.Completed = true
			if m.Participant1ID != nil {
				m.WinnerID = m.Participant1ID
			} else if m.Participant2ID != nil {
				m.WinnerID = m.Participant2ID
			}
			if m.WinnerID != nil && m.WinnerToUID != nil {
				placeInPlan(byUID[*m.WinnerToUID], m.WinnerID)
			}
			changed = true
		}
	}
}

// placeInPlan puts a participant into the first open slot of a plan match.
func placeInPlan(target *PlanMatch, participantID *int) {
	if target == nil || participantID == nil {
		return
	}
	if target.Participant1ID == nil {
		target.Participant1ID = participantID
	} else if target.Participant2ID == nil {
		target.Participant2ID = participantID
	}
}

func strPtr(s string) *string { return &s }
