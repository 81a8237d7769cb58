package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant belongs to exactly one tournament. Seed is assigned once,
// at bracket generation time; placement and prize only after completion.
type Participant struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	UserID       int  `json:"user_id" db:"user_id"`
	Seed         *int `json:"seed,omitempty" db:"seed"`
	CheckedIn    bool `json:"checked_in" db:"checked_in"`

	MatchesWon  int `json:"matches_won" db:"matches_won"`
	MatchesLost int `json:"matches_lost" db:"matches_lost"`
	GamesWon    int `json:"games_won" db:"games_won"`
	GamesLost   int `json:"games_lost" db:"games_lost"`

	FinalPlacement *int             `json:"final_placement,omitempty" db:"final_placement"`
	PrizeWon       *decimal.Decimal `json:"prize_won,omitempty" db:"prize_won"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GameDiff is the secondary score used by swiss and round-robin standings.
func (p *Participant) GameDiff() int {
	return p.GamesWon - p.GamesLost
}
