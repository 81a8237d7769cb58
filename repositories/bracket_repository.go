package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketforge/tournament-engine/models"
)

var ErrBracketNotFound = errors.New("bracket not found")

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error
	GetByID(ctx context.Context, id int) (*models.Bracket, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Bracket, error)
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	query := `
		INSERT INTO brackets (tournament_id, kind, total_rounds)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return r.getExecutor(exec).QueryRowContext(ctx, query,
		b.TournamentID, b.Kind, b.TotalRounds,
	).Scan(&b.ID, &b.CreatedAt)
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	b := &models.Bracket{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tournament_id, kind, total_rounds, created_at FROM brackets WHERE id = $1`,
		id).Scan(&b.ID, &b.TournamentID, &b.Kind, &b.TotalRounds, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *postgresBracketRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Bracket, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx,
		`SELECT id, tournament_id, kind, total_rounds, created_at
		 FROM brackets WHERE tournament_id = $1 ORDER BY kind DESC, id ASC`,
		tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brackets for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	brackets := make([]*models.Bracket, 0)
	for rows.Next() {
		var b models.Bracket
		if scanErr := rows.Scan(&b.ID, &b.TournamentID, &b.Kind, &b.TotalRounds, &b.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		brackets = append(brackets, &b)
	}
	return brackets, rows.Err()
}
