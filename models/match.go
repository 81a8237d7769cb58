package models

import "time"

type MatchStatus string

const (
	// MatchPending: at least one slot still waits on an upstream result.
	MatchPending MatchStatus = "pending"
	// MatchReady: both slots filled, result can be reported.
	MatchReady MatchStatus = "ready"
	MatchCompleted MatchStatus = "completed"
)

// Match is a node of the advancement graph. NextMatchWinnerID and
// NextMatchLoserID store the forward edges as row ids, so the full graph
// can be reconstructed without re-deriving it from round/match numbers.
type Match struct {
	ID           int `json:"id" db:"id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`
	BracketID    int `json:"bracket_id" db:"bracket_id"`

	Round       int `json:"round" db:"round"`
	MatchNumber int `json:"match_number" db:"match_number"`

	Participant1ID *int `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID *int `json:"participant2_id,omitempty" db:"participant2_id"`

	Status   MatchStatus `json:"status" db:"status"`
	Score1   *int        `json:"score1,omitempty" db:"score1"`
	Score2   *int        `json:"score2,omitempty" db:"score2"`
	WinnerID *int        `json:"winner_id,omitempty" db:"winner_id"`

	NextMatchWinnerID *int `json:"next_match_winner_id,omitempty" db:"next_match_winner_id"`
	NextMatchLoserID  *int `json:"next_match_loser_id,omitempty" db:"next_match_loser_id"`

	IsGrandFinal bool `json:"is_grand_final" db:"is_grand_final"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Bye reports whether the match resolved without play: completed with a
// winner but no scores. Walkovers produced by the advancement cascade
// look the same as generation-time byes.
func (m *Match) Bye() bool {
	return m.Status == MatchCompleted && m.WinnerID != nil && m.Score1 == nil && m.Score2 == nil
}

// LoserID derives the losing participant once the match is completed.
// Nil for byes and structural no-op matches.
func (m *Match) LoserID() *int {
	if m.Status != MatchCompleted || m.WinnerID == nil {
		return nil
	}
	if m.Participant1ID != nil && *m.Participant1ID != *m.WinnerID {
		return m.Participant1ID
	}
	if m.Participant2ID != nil && *m.Participant2ID != *m.WinnerID {
		return m.Participant2ID
	}
	return nil
}
