package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketforge/tournament-engine/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrParticipantConflict = errors.New("user is already registered for this tournament")
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	GetByTournamentAndUser(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, checkedInOnly bool) ([]*models.Participant, error)
	CountCheckedIn(ctx context.Context, tournamentID int) (int, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	SetCheckedIn(ctx context.Context, id int) error
	AssignSeed(ctx context.Context, exec SQLExecutor, id, seed int) error
	// AnySeeded guards seed-assignment idempotence: generation must never
	// run twice against the same roster.
	AnySeeded(ctx context.Context, exec SQLExecutor, tournamentID int) (bool, error)
	AddMatchResult(ctx context.Context, exec SQLExecutor, id int, won bool, gamesWon, gamesLost int) error
	SetPlacementAndPrize(ctx context.Context, exec SQLExecutor, id, placement int, prize *decimal.Decimal) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `
	id, tournament_id, user_id, seed, checked_in,
	matches_won, matches_lost, games_won, games_lost,
	final_placement, prize_won, created_at`

func scanParticipant(row interface{ Scan(...interface{}) error }, p *models.Participant) error {
	var prize decimal.NullDecimal
	err := row.Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.Seed, &p.CheckedIn,
		&p.MatchesWon, &p.MatchesLost, &p.GamesWon, &p.GamesLost,
		&p.FinalPlacement, &prize, &p.CreatedAt,
	)
	if err != nil {
		return err
	}
	if prize.Valid {
		p.PrizeWon = &prize.Decimal
	}
	return nil
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, user_id, checked_in)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, p.TournamentID, p.UserID, p.CheckedIn).
		Scan(&p.ID, &p.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrParticipantConflict
	}
	return err
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1`

	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRowContext(ctx, query, id), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByTournamentAndUser(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE tournament_id = $1 AND user_id = $2`

	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRowContext(ctx, query, tournamentID, userID), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, checkedInOnly bool) ([]*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + participantColumns + ` FROM participants WHERE tournament_id = $1`
	if checkedInOnly {
		query += ` AND checked_in = TRUE`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if scanErr := scanParticipant(rows, &p); scanErr != nil {
			return nil, scanErr
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

func (r *postgresParticipantRepository) CountCheckedIn(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE tournament_id = $1 AND checked_in = TRUE`,
		tournamentID).Scan(&count)
	return count, err
}

func (r *postgresParticipantRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE tournament_id = $1`,
		tournamentID).Scan(&count)
	return count, err
}

func (r *postgresParticipantRepository) SetCheckedIn(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET checked_in = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) AssignSeed(ctx context.Context, exec SQLExecutor, id, seed int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE participants SET seed = $1 WHERE id = $2 AND seed IS NULL`, seed, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) AnySeeded(ctx context.Context, exec SQLExecutor, tournamentID int) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM participants WHERE tournament_id = $1 AND seed IS NOT NULL)`,
		tournamentID).Scan(&exists)
	return exists, err
}

func (r *postgresParticipantRepository) AddMatchResult(ctx context.Context, exec SQLExecutor, id int, won bool, gamesWon, gamesLost int) error {
	executor := r.getExecutor(exec)
	matchesWon, matchesLost := 0, 1
	if won {
		matchesWon, matchesLost = 1, 0
	}
	result, err := executor.ExecContext(ctx, `
		UPDATE participants SET
			matches_won = matches_won + $1,
			matches_lost = matches_lost + $2,
			games_won = games_won + $3,
			games_lost = games_lost + $4
		WHERE id = $5`,
		matchesWon, matchesLost, gamesWon, gamesLost, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) SetPlacementAndPrize(ctx context.Context, exec SQLExecutor, id, placement int, prize *decimal.Decimal) error {
	executor := r.getExecutor(exec)
	var dbPrize decimal.NullDecimal
	if prize != nil {
		dbPrize = decimal.NullDecimal{Decimal: *prize, Valid: true}
	}
	result, err := executor.ExecContext(ctx,
		`UPDATE participants SET final_placement = $1, prize_won = $2 WHERE id = $3`,
		placement, dbPrize, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
