package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/bracketforge/tournament-engine/brackets"
	"github.com/bracketforge/tournament-engine/clock"
	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
)

type BracketService interface {
	// GenerateBracket runs generation for an in-progress tournament on
	// explicit organizer request. The scheduler path goes through
	// GenerateForTournament inside its own transaction instead.
	GenerateBracket(ctx context.Context, organizerID, tournamentID int) error
	GenerateForTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error
	GetTournamentBrackets(ctx context.Context, tournamentID int) ([]*models.Bracket, error)
}

type bracketService struct {
	transactor      repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	bracketRepo     repositories.BracketRepository
	matchRepo       repositories.MatchRepository
	skills          brackets.SkillSource
	dispatcher      EventDispatcher
	clock           clock.Clock
	logger          *slog.Logger

	// rnd feeds random seeding; rand.Rand is not safe for concurrent use.
	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBracketService(
	transactor repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	skills brackets.SkillSource,
	dispatcher EventDispatcher,
	clk clock.Clock,
	logger *slog.Logger,
	rnd *rand.Rand,
) BracketService {
	return &bracketService{
		transactor:      transactor,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		bracketRepo:     bracketRepo,
		matchRepo:       matchRepo,
		skills:          skills,
		dispatcher:      dispatcher,
		clock:           clk,
		logger:          logger,
		rnd:             rnd,
	}
}

func (s *bracketService) GenerateBracket(ctx context.Context, organizerID, tournamentID int) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	if tournament.OrganizerID != organizerID {
		return ErrForbiddenOperation
	}
	if tournament.Status != models.StatusInProgress {
		return ErrTournamentNotInProgress
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.GenerateForTournament(ctx, exec, tournament)
	})
	if err != nil {
		return err
	}

	s.dispatcher.BracketGenerated(tournament.ID)
	return nil
}

// GenerateForTournament seeds the checked-in roster, builds the
// advancement graph for the tournament's format and persists it. The
// caller owns the transaction; a failure leaves no partial bracket.
func (s *bracketService) GenerateForTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	seeded, err := s.participantRepo.AnySeeded(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing seeds for tournament %d: %w", t.ID, err)
	}
	if seeded {
		return ErrBracketAlreadyGenerated
	}
	existing, err := s.bracketRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to list brackets for tournament %d: %w", t.ID, err)
	}
	if len(existing) > 0 {
		return ErrBracketAlreadyGenerated
	}

	participants, err := s.participantRepo.ListByTournament(ctx, exec, t.ID, true)
	if err != nil {
		return fmt.Errorf("failed to list checked-in participants for tournament %d: %w", t.ID, err)
	}
	if len(participants) < 2 {
		return ErrNotEnoughParticipants
	}

	s.rndMu.Lock()
	ordered, err := brackets.AssignSeeds(ctx, participants, t.Seeding, s.skills, s.rnd)
	s.rndMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to seed participants for tournament %d: %w", t.ID, err)
	}
	for i, p := range ordered {
		seed := i + 1
		if assignErr := s.participantRepo.AssignSeed(ctx, exec, p.ID, seed); assignErr != nil {
			return fmt.Errorf("failed to assign seed %d to participant %d: %w", seed, p.ID, assignErr)
		}
		p.Seed = &seed
	}

	generator, err := brackets.ForFormat(t.Format)
	if err != nil {
		return err
	}
	blueprint, err := generator.Generate(ctx, brackets.GenerateParams{
		Tournament:   t,
		Participants: ordered,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughParticipants) {
			return ErrNotEnoughParticipants
		}
		return fmt.Errorf("failed to generate %s bracket for tournament %d: %w", generator.Name(), t.ID, err)
	}

	if err := s.persistBlueprint(ctx, exec, t, blueprint); err != nil {
		return err
	}

	s.logger.Info("bracket generated",
		slog.Int("tournament_id", t.ID),
		slog.String("format", string(t.Format)),
		slog.Int("participants", len(ordered)),
		slog.Int("matches", len(blueprint.AllMatches())))
	return nil
}

// persistBlueprint writes the generated graph in two passes: rows first,
// then the winner/loser edges once every UID has a row id.
func (s *bracketService) persistBlueprint(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, blueprint *brackets.Blueprint) error {
	now := s.clock.Now()
	idByUID := make(map[string]int)

	for _, plan := range blueprint.Brackets {
		bracket := &models.Bracket{
			TournamentID: t.ID,
			Kind:         plan.Kind,
			TotalRounds:  plan.TotalRounds,
		}
		if err := s.bracketRepo.Create(ctx, exec, bracket); err != nil {
			return fmt.Errorf("failed to create %s bracket for tournament %d: %w", plan.Kind, t.ID, err)
		}

		for _, pm := range plan.Matches {
			match := &models.Match{
				TournamentID:   t.ID,
				BracketID:      bracket.ID,
				Round:          pm.Round,
				MatchNumber:    pm.Number,
				Participant1ID: pm.Participant1ID,
				Participant2ID: pm.Participant2ID,
				IsGrandFinal:   pm.IsGrandFinal,
				Status:         models.MatchPending,
			}
			switch {
			case pm.Completed:
				match.Status = models.MatchCompleted
				match.WinnerID = pm.WinnerID
				completedAt := now
				match.CompletedAt = &completedAt
			case pm.Participant1ID != nil && pm.Participant2ID != nil:
				match.Status = models.MatchReady
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return fmt.Errorf("failed to create match %s for tournament %d: %w", pm.UID, t.ID, err)
			}
			idByUID[pm.UID] = match.ID

			// A generation-time walkover already counts as a win.
			if pm.Completed && pm.WinnerID != nil {
				if err := s.participantRepo.AddMatchResult(ctx, exec, *pm.WinnerID, true, 0, 0); err != nil {
					return fmt.Errorf("failed to record walkover win for participant %d: %w", *pm.WinnerID, err)
				}
			}
		}
	}

	for _, pm := range blueprint.AllMatches() {
		if pm.WinnerToUID == nil && pm.LoserToUID == nil {
			continue
		}
		var nextWinnerID, nextLoserID *int
		if pm.WinnerToUID != nil {
			id, ok := idByUID[*pm.WinnerToUID]
			if !ok {
				return fmt.Errorf("%w: match %s links winner to unknown match %s", ErrAdvancementGraphCorrupt, pm.UID, *pm.WinnerToUID)
			}
			nextWinnerID = &id
		}
		if pm.LoserToUID != nil {
			id, ok := idByUID[*pm.LoserToUID]
			if !ok {
				return fmt.Errorf("%w: match %s links loser to unknown match %s", ErrAdvancementGraphCorrupt, pm.UID, *pm.LoserToUID)
			}
			nextLoserID = &id
		}
		if err := s.matchRepo.SetNextMatches(ctx, exec, idByUID[pm.UID], nextWinnerID, nextLoserID); err != nil {
			return fmt.Errorf("failed to link match %s: %w", pm.UID, err)
		}
	}
	return nil
}

func (s *bracketService) GetTournamentBrackets(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	bracketList, err := s.bracketRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list brackets for tournament %d: %w", tournamentID, err)
	}
	for _, b := range bracketList {
		matches, err := s.matchRepo.ListByBracket(ctx, nil, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list matches for bracket %d: %w", b.ID, err)
		}
		b.Matches = make([]models.Match, 0, len(matches))
		for _, m := range matches {
			b.Matches = append(b.Matches, *m)
		}
	}
	return bracketList, nil
}
