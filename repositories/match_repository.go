package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bracketforge/tournament-engine/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchStateConflict: the guarded write found the match no longer in
	// the expected state. Duplicate result submissions land here.
	ErrMatchStateConflict = errors.New("match state changed concurrently")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction; slot placement is a read-modify-write.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error)
	ListByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.Match, error)
	// ListFeeders returns the matches whose winner or loser advances into
	// the given match.
	ListFeeders(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Match, error)
	SetNextMatches(ctx context.Context, exec SQLExecutor, id int, nextWinnerID, nextLoserID *int) error
	UpdateSlots(ctx context.Context, exec SQLExecutor, id int, p1, p2 *int, status models.MatchStatus) error
	// CompleteMatch records a played result; guarded on status 'ready' so
	// two concurrent submissions cannot both succeed.
	CompleteMatch(ctx context.Context, exec SQLExecutor, id, score1, score2 int, winnerID int, at time.Time) error
	// CompleteWalkover resolves a match without play (bye cascade).
	CompleteWalkover(ctx context.Context, exec SQLExecutor, id int, winnerID *int, at time.Time) error
	CountOpenInRound(ctx context.Context, exec SQLExecutor, bracketID, round int) (int, error)
	CountOpenInTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, bracket_id, round, match_number,
	participant1_id, participant2_id, status, score1, score2, winner_id,
	next_match_winner_id, next_match_loser_id, is_grand_final,
	created_at, completed_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.BracketID, &m.Round, &m.MatchNumber,
		&m.Participant1ID, &m.Participant2ID, &m.Status, &m.Score1, &m.Score2, &m.WinnerID,
		&m.NextMatchWinnerID, &m.NextMatchLoserID, &m.IsGrandFinal,
		&m.CreatedAt, &m.CompletedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches (
			tournament_id, bracket_id, round, match_number,
			participant1_id, participant2_id, status, winner_id,
			is_grand_final, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return r.getExecutor(exec).QueryRowContext(ctx, query,
		m.TournamentID, m.BracketID, m.Round, m.MatchNumber,
		m.Participant1ID, m.Participant2ID, m.Status, m.WinnerID,
		m.IsGrandFinal, m.CompletedAt,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	m := &models.Match{}
	err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT`+matchColumns+` FROM matches WHERE id = $1`, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	m := &models.Match{}
	err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT`+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT`+matchColumns+` FROM matches WHERE tournament_id = $1 ORDER BY bracket_id, round, match_number`,
		tournamentID)
}

func (r *postgresMatchRepository) ListByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.Match, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT`+matchColumns+` FROM matches WHERE bracket_id = $1 ORDER BY round, match_number`,
		bracketID)
}

func (r *postgresMatchRepository) ListFeeders(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Match, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT`+matchColumns+` FROM matches WHERE next_match_winner_id = $1 OR next_match_loser_id = $1`,
		matchID)
}

func (r *postgresMatchRepository) list(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) SetNextMatches(ctx context.Context, exec SQLExecutor, id int, nextWinnerID, nextLoserID *int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE matches SET next_match_winner_id = $1, next_match_loser_id = $2 WHERE id = $3`,
		nextWinnerID, nextLoserID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSlots(ctx context.Context, exec SQLExecutor, id int, p1, p2 *int, status models.MatchStatus) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE matches SET participant1_id = $1, participant2_id = $2, status = $3 WHERE id = $4`,
		p1, p2, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CompleteMatch(ctx context.Context, exec SQLExecutor, id, score1, score2 int, winnerID int, at time.Time) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `
		UPDATE matches SET
			score1 = $1, score2 = $2, winner_id = $3,
			status = $4, completed_at = $5
		WHERE id = $6 AND status = $7`,
		score1, score2, winnerID,
		models.MatchCompleted, at, id, models.MatchReady)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchStateConflict)
}

func (r *postgresMatchRepository) CompleteWalkover(ctx context.Context, exec SQLExecutor, id int, winnerID *int, at time.Time) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `
		UPDATE matches SET winner_id = $1, status = $2, completed_at = $3
		WHERE id = $4 AND status != $2`,
		winnerID, models.MatchCompleted, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchStateConflict)
}

func (r *postgresMatchRepository) CountOpenInRound(ctx context.Context, exec SQLExecutor, bracketID, round int) (int, error) {
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE bracket_id = $1 AND round = $2 AND status != $3`,
		bracketID, round, models.MatchCompleted).Scan(&count)
	return count, err
}

func (r *postgresMatchRepository) CountOpenInTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND status != $2`,
		tournamentID, models.MatchCompleted).Scan(&count)
	return count, err
}
