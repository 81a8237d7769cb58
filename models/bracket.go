package models

import "time"

type BracketKind string

const (
	BracketMain   BracketKind = "main"
	BracketLosers BracketKind = "losers"
)

// Bracket groups the matches of one elimination tree (or the single
// match pool of swiss/round-robin). Losers brackets exist only for
// double elimination.
type Bracket struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Kind         BracketKind `json:"kind" db:"kind"`
	TotalRounds  int         `json:"total_rounds" db:"total_rounds"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`

	Matches []Match `json:"matches,omitempty" db:"-"`
}
