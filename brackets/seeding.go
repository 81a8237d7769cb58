package brackets

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/bracketforge/tournament-engine/models"
)

// SkillSource looks up an external skill score for skill-ranked seeding.
// Implementations live outside this package (profile service client).
type SkillSource interface {
	SkillRating(ctx context.Context, userID int) (float64, error)
}

// AssignSeeds returns the participants in seed order: index 0 becomes
// seed 1. The input slice is not mutated and Seed fields are not written;
// persisting the assignment is the caller's responsibility.
//
// A failed skill lookup is swallowed: the participant is ranked with a
// zero rating rather than aborting generation.
func AssignSeeds(
	ctx context.Context,
	participants []*models.Participant,
	method models.SeedingMethod,
	skills SkillSource,
	rnd *rand.Rand,
) ([]*models.Participant, error) {
	ordered := make([]*models.Participant, len(participants))
	copy(ordered, participants)

	switch method {
	case models.SeedingRandom:
		rnd.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	case models.SeedingSkillRanked:
		if skills == nil {
			return nil, fmt.Errorf("skill-ranked seeding requires a skill source")
		}
		ratings := make(map[int]float64, len(ordered))
		for _, p := range ordered {
			rating, err := skills.SkillRating(ctx, p.UserID)
			if err != nil {
				rating = 0
			}
			ratings[p.ID] = rating
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			ri, rj := ratings[ordered[i].ID], ratings[ordered[j].ID]
			if ri != rj {
				return ri > rj
			}
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		})
	case models.SeedingRegistrationOrder:
		sort.SliceStable(ordered, func(i, j int) bool {
			if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
				return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
			}
			return ordered[i].ID < ordered[j].ID
		})
	default:
		return nil, fmt.Errorf("unknown seeding method %q", method)
	}

	return ordered, nil
}
