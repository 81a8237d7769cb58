package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bracketforge/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
	// ErrStatusConflict is the compare-and-set failure: the row's status no
	// longer matched the expected "from" status at write time. Treated as a
	// transient condition by the sweep.
	ErrStatusConflict = errors.New("tournament status changed concurrently")
)

type ListTournamentsFilter struct {
	OrganizerID *int
	Status      *models.TournamentStatus
	Format      *models.TournamentFormat
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, t *models.Tournament) error
	CompareAndSetStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error
	SetPublishedAt(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	SetActualEndAt(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error
	// ListDueForSweep returns every non-terminal, non-archived tournament
	// whose next time boundary has passed. The sweep re-checks each rule
	// in Go; this query only bounds the worklist.
	ListDueForSweep(ctx context.Context, now time.Time, grace time.Duration) ([]*models.Tournament, error)
	ArchiveStaleDrafts(ctx context.Context, before, now time.Time) (int64, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, organizer_id, format, seeding, status,
	registration_starts_at, registration_ends_at, check_in_starts_at,
	starts_at, estimated_end_at, actual_end_at,
	min_participants, max_participants, prize_pool, prize_distribution,
	banner_key, published_at, archived_at, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.Format, &t.Seeding, &t.Status,
		&t.RegistrationStartsAt, &t.RegistrationEndsAt, &t.CheckInStartsAt,
		&t.StartsAt, &t.EstimatedEndAt, &t.ActualEndAt,
		&t.MinParticipants, &t.MaxParticipants, &t.PrizePool, &t.PrizeDistribution,
		&t.BannerKey, &t.PublishedAt, &t.ArchivedAt, &t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, organizer_id, format, seeding, status,
			registration_starts_at, registration_ends_at, check_in_starts_at,
			starts_at, estimated_end_at,
			min_participants, max_participants, prize_pool, prize_distribution
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.OrganizerID, t.Format, t.Seeding, t.Status,
		t.RegistrationStartsAt, t.RegistrationEndsAt, t.CheckInStartsAt,
		t.StartsAt, t.EstimatedEndAt,
		t.MinParticipants, t.MaxParticipants, t.PrizePool, t.PrizeDistribution,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := scanTournament(r.db.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE archived_at IS NULL`
	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}

	query += " ORDER BY starts_at DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			registration_starts_at = $2,
			registration_ends_at = $3,
			check_in_starts_at = $4,
			starts_at = $5,
			estimated_end_at = $6,
			min_participants = $7,
			max_participants = $8,
			prize_pool = $9,
			prize_distribution = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.RegistrationStartsAt, t.RegistrationEndsAt, t.CheckInStartsAt,
		t.StartsAt, t.EstimatedEndAt, t.MinParticipants, t.MaxParticipants,
		t.PrizePool, t.PrizeDistribution, t.ID,
	)
	if err != nil {
		return r.handleError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// CompareAndSetStatus commits the transition only if the row still holds
// the expected "from" status. Zero affected rows means a concurrent
// writer got there first.
func (r *postgresTournamentRepository) CompareAndSetStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return r.handleError(err)
	}
	return checkAffectedRows(result, ErrStatusConflict)
}

func (r *postgresTournamentRepository) SetPublishedAt(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournaments SET published_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetActualEndAt(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournaments SET actual_end_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET banner_key = $1 WHERE id = $2`, bannerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament banner key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListDueForSweep(ctx context.Context, now time.Time, grace time.Duration) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE archived_at IS NULL
		AND status NOT IN ($1, $2)
		AND (
			(status = $3 AND registration_starts_at <= $7) OR
			(status = $4 AND registration_ends_at <= $7 AND check_in_starts_at <= $7) OR
			(status = $5 AND starts_at <= $7) OR
			(status = $6 AND estimated_end_at + $8::interval <= $7)
		)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query,
		models.StatusCompleted, models.StatusCancelled,
		models.StatusDraft, models.StatusRegistration,
		models.StatusCheckIn, models.StatusInProgress,
		now, fmt.Sprintf("%d seconds", int(grace.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments due for sweep: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament for sweep: %w", scanErr)
		}
		tournaments = append(tournaments, &t)
	}
	return tournaments, rows.Err()
}

// ArchiveStaleDrafts soft-archives drafts created before the cutoff.
// Tournaments never get deleted once they leave draft.
func (r *postgresTournamentRepository) ArchiveStaleDrafts(ctx context.Context, before, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tournaments SET archived_at = $1
		WHERE status = $2 AND created_at < $3 AND archived_at IS NULL`,
		now, models.StatusDraft, before)
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale drafts: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresTournamentRepository) handleError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if pqErr.Constraint == "tournaments_organizer_id_name_key" {
			return ErrTournamentNameConflict
		}
	}
	return err
}
