package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bracketforge/tournament-engine/clock"
	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
	"github.com/bracketforge/tournament-engine/storage"
)

type TournamentService interface {
	CreateTournament(ctx context.Context, t *models.Tournament) error
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateTournament(ctx context.Context, organizerID int, t *models.Tournament) error
	// CancelTournament is the organizer's side exit, reachable from any
	// non-terminal status.
	CancelTournament(ctx context.Context, organizerID, id int) error
	// FinalizeTournament transitions in_progress -> completed inside the
	// caller's transaction and assigns placements and prizes. A lost
	// status race returns ErrAlreadyFinalized with nothing written.
	FinalizeTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, at time.Time) error
	ArchiveStaleDrafts(ctx context.Context, olderThan time.Duration) (int64, error)
	UploadBanner(ctx context.Context, organizerID, id int, file io.Reader, contentType string) (string, error)
}

type tournamentService struct {
	transactor      repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	bracketRepo     repositories.BracketRepository
	matchRepo       repositories.MatchRepository
	uploader        storage.FileUploader
	dispatcher      EventDispatcher
	clock           clock.Clock
	logger          *slog.Logger
}

func NewTournamentService(
	transactor repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	uploader storage.FileUploader,
	dispatcher EventDispatcher,
	clk clock.Clock,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		transactor:      transactor,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		bracketRepo:     bracketRepo,
		matchRepo:       matchRepo,
		uploader:        uploader,
		dispatcher:      dispatcher,
		clock:           clk,
		logger:          logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, t *models.Tournament) error {
	if err := s.validateTournament(t); err != nil {
		return err
	}
	t.Status = models.StatusDraft
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return fmt.Errorf("%w: a tournament with this name already exists for the organizer", ErrValidationFailed)
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (s *tournamentService) validateTournament(t *models.Tournament) error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if !t.Format.Valid() {
		return fmt.Errorf("%w: unknown format %q", ErrValidationFailed, t.Format)
	}
	if !t.Seeding.Valid() {
		return fmt.Errorf("%w: unknown seeding method %q", ErrValidationFailed, t.Seeding)
	}
	if err := t.ValidateSchedule(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if err := t.ValidateCapacity(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if t.PrizePool.IsNegative() {
		return fmt.Errorf("%w: prize pool cannot be negative", ErrValidationFailed)
	}
	if err := t.PrizeDistribution.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.populateBannerURL(t)
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	for i := range tournaments {
		s.populateBannerURL(&tournaments[i])
	}
	return tournaments, nil
}

func (s *tournamentService) populateBannerURL(t *models.Tournament) {
	if t.BannerKey != nil && *t.BannerKey != "" && s.uploader != nil {
		if url := s.uploader.GetPublicURL(*t.BannerKey); url != "" {
			t.BannerURL = &url
		}
	}
}

// UpdateTournament applies organizer edits. Only drafts are editable:
// once registration has opened the schedule and format are load-bearing.
func (s *tournamentService) UpdateTournament(ctx context.Context, organizerID int, t *models.Tournament) error {
	current, err := s.tournamentRepo.GetByID(ctx, t.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrNotFound
		}
		return err
	}
	if current.OrganizerID != organizerID {
		return ErrForbiddenOperation
	}
	if current.Status != models.StatusDraft {
		return fmt.Errorf("%w: only draft tournaments can be edited", ErrConflict)
	}
	t.OrganizerID = current.OrganizerID
	t.Status = current.Status
	if err := s.validateTournament(t); err != nil {
		return err
	}
	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return fmt.Errorf("%w: a tournament with this name already exists for the organizer", ErrValidationFailed)
		}
		return err
	}
	return nil
}

func (s *tournamentService) CancelTournament(ctx context.Context, organizerID, id int) error {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrNotFound
		}
		return err
	}
	if t.OrganizerID != organizerID {
		return ErrForbiddenOperation
	}
	if t.Status.Terminal() {
		return ErrTournamentNotCancellable
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.CompareAndSetStatus(ctx, exec, id, t.Status, models.StatusCancelled); err != nil {
			if errors.Is(err, repositories.ErrStatusConflict) {
				return ErrConflict
			}
			return err
		}
		return s.tournamentRepo.SetActualEndAt(ctx, exec, id, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.dispatcher.StatusChanged(id, t.Status, models.StatusCancelled)
	s.logger.Info("tournament cancelled",
		slog.Int("tournament_id", id),
		slog.String("previous_status", string(t.Status)))
	return nil
}

func (s *tournamentService) FinalizeTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, at time.Time) error {
	err := s.tournamentRepo.CompareAndSetStatus(ctx, exec, tournamentID, models.StatusInProgress, models.StatusCompleted)
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return ErrAlreadyFinalized
		}
		return fmt.Errorf("failed to complete tournament %d: %w", tournamentID, err)
	}
	if err := s.tournamentRepo.SetActualEndAt(ctx, exec, tournamentID, at); err != nil {
		return fmt.Errorf("failed to set actual end for tournament %d: %w", tournamentID, err)
	}

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to load tournament %d for finalization: %w", tournamentID, err)
	}

	placements, err := s.computePlacements(ctx, exec, t)
	if err != nil {
		return err
	}
	prizes := computePrizes(t, placements)

	for participantID, placement := range placements {
		var prize *decimal.Decimal
		if amount, ok := prizes[participantID]; ok {
			prize = &amount
		}
		if err := s.participantRepo.SetPlacementAndPrize(ctx, exec, participantID, placement, prize); err != nil {
			return fmt.Errorf("failed to set placement for participant %d: %w", participantID, err)
		}
	}

	s.logger.Info("tournament finalized",
		slog.Int("tournament_id", tournamentID),
		slog.Int("placed_participants", len(placements)))
	return nil
}

// computePlacements derives final placements from the completed match
// graph: elimination placements follow the round a participant was
// eliminated in, swiss and round-robin rank by record.
func (s *tournamentService) computePlacements(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (map[int]int, error) {
	switch t.Format {
	case models.FormatSingleElimination:
		return s.eliminationPlacements(ctx, exec, t, false)
	case models.FormatDoubleElimination:
		return s.eliminationPlacements(ctx, exec, t, true)
	case models.FormatSwiss, models.FormatRoundRobin:
		return s.standingsPlacements(ctx, exec, t)
	default:
		return nil, fmt.Errorf("cannot place participants for format %q", t.Format)
	}
}

func (s *tournamentService) eliminationPlacements(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, doubleElim bool) (map[int]int, error) {
	bracketList, err := s.bracketRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list brackets for tournament %d: %w", t.ID, err)
	}
	placements := make(map[int]int)

	var mainBracket, losersBracket *models.Bracket
	for _, b := range bracketList {
		switch b.Kind {
		case models.BracketMain:
			mainBracket = b
		case models.BracketLosers:
			losersBracket = b
		}
	}
	if mainBracket == nil {
		return nil, fmt.Errorf("%w: tournament %d has no main bracket", ErrAdvancementGraphCorrupt, t.ID)
	}

	mainMatches, err := s.matchRepo.ListByBracket(ctx, exec, mainBracket.ID)
	if err != nil {
		return nil, err
	}

	if !doubleElim {
		// Losing in round r of W means sharing placement 2^(W-r)+1.
		totalRounds := mainBracket.TotalRounds
		for _, m := range mainMatches {
			if loser := m.LoserID(); loser != nil {
				placements[*loser] = 1<<(totalRounds-m.Round) + 1
			}
			if m.Round == totalRounds && m.WinnerID != nil {
				placements[*m.WinnerID] = 1
			}
		}
		return placements, nil
	}

	// Double elimination: the grand final decides 1st and 2nd; everyone
	// else exits through the losers bracket, later rounds placing higher.
	if losersBracket != nil {
		losersMatches, err := s.matchRepo.ListByBracket(ctx, exec, losersBracket.ID)
		if err != nil {
			return nil, err
		}
		matchesAfterRound := func(round int) int {
			count := 0
			for _, m := range losersMatches {
				if m.Round > round {
					count++
				}
			}
			return count
		}
		for _, m := range losersMatches {
			if loser := m.LoserID(); loser != nil {
				placements[*loser] = 2 + matchesAfterRound(m.Round) + 1
			}
		}
	}
	for _, m := range mainMatches {
		if !m.IsGrandFinal {
			continue
		}
		if m.WinnerID != nil {
			placements[*m.WinnerID] = 1
		}
		if loser := m.LoserID(); loser != nil {
			placements[*loser] = 2
		}
	}
	return placements, nil
}

func (s *tournamentService) standingsPlacements(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (map[int]int, error) {
	participants, err := s.participantRepo.ListByTournament(ctx, exec, t.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %d: %w", t.ID, err)
	}
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].MatchesWon != participants[j].MatchesWon {
			return participants[i].MatchesWon > participants[j].MatchesWon
		}
		if participants[i].GameDiff() != participants[j].GameDiff() {
			return participants[i].GameDiff() > participants[j].GameDiff()
		}
		return seedOf(participants[i]) < seedOf(participants[j])
	})
	placements := make(map[int]int, len(participants))
	for i, p := range participants {
		placements[p.ID] = i + 1
	}
	return placements, nil
}

func seedOf(p *models.Participant) int {
	if p.Seed == nil {
		return int(^uint(0) >> 1)
	}
	return *p.Seed
}

// computePrizes turns the prize-distribution percentages into per
// participant amounts. A percentage addressed to a shared placement is
// split equally among everyone holding it; amounts round to cents.
func computePrizes(t *models.Tournament, placements map[int]int) map[int]decimal.Decimal {
	if t.PrizePool.IsZero() || len(t.PrizeDistribution) == 0 {
		return nil
	}

	byPlacement := make(map[int][]int)
	for participantID, placement := range placements {
		byPlacement[placement] = append(byPlacement[placement], participantID)
	}

	hundred := decimal.NewFromInt(100)
	prizes := make(map[int]decimal.Decimal)
	for label, pct := range t.PrizeDistribution {
		placement, ok := parsePlacementLabel(label)
		if !ok || pct <= 0 {
			continue
		}
		holders := byPlacement[placement]
		if len(holders) == 0 {
			continue
		}
		total := t.PrizePool.Mul(decimal.NewFromFloat(pct)).Div(hundred)
		share := total.Div(decimal.NewFromInt(int64(len(holders)))).Round(2)
		for _, participantID := range holders {
			prizes[participantID] = prizes[participantID].Add(share)
		}
	}
	return prizes
}

// parsePlacementLabel reads the leading digits of a label like "1st",
// "2nd" or "3". Labels without a leading number are skipped.
func parsePlacementLabel(label string) (int, bool) {
	n := 0
	digits := 0
	for _, r := range label {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	return n, digits > 0 && n > 0
}

func (s *tournamentService) ArchiveStaleDrafts(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.clock.Now()
	archived, err := s.tournamentRepo.ArchiveStaleDrafts(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale drafts: %w", err)
	}
	if archived > 0 {
		s.logger.Info("archived stale drafts", slog.Int64("count", archived))
	}
	return archived, nil
}

func (s *tournamentService) UploadBanner(ctx context.Context, organizerID, id int, file io.Reader, contentType string) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("banner storage is not configured")
	}
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if t.OrganizerID != organizerID {
		return "", ErrForbiddenOperation
	}

	key := fmt.Sprintf("tournaments/%d/banner-%s", id, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload banner for tournament %d: %w", id, err)
	}
	if err := s.tournamentRepo.UpdateBannerKey(ctx, id, &result.Key); err != nil {
		return "", fmt.Errorf("failed to persist banner key for tournament %d: %w", id, err)
	}
	if t.BannerKey != nil && *t.BannerKey != "" {
		if delErr := s.uploader.Delete(ctx, *t.BannerKey); delErr != nil {
			s.logger.Warn("failed to delete previous banner",
				slog.Int("tournament_id", id),
				slog.String("key", *t.BannerKey),
				slog.String("error", delErr.Error()))
		}
	}
	return result.Location, nil
}
