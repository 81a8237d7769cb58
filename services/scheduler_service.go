package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
)

// maxConcurrentTransitions bounds the per-sweep fan-out. Transitions on
// different tournaments are independent.
const maxConcurrentTransitions = 8

// TransitionResult describes one applied lifecycle transition.
type TransitionResult struct {
	TournamentID     int                     `json:"tournament_id"`
	From             models.TournamentStatus `json:"from"`
	To               models.TournamentStatus `json:"to"`
	BracketGenerated bool                    `json:"bracket_generated,omitempty"`
}

type SchedulerService interface {
	// AdvanceTournaments runs one sweep: every non-terminal tournament
	// whose time boundary has passed gets at most one transition,
	// guarded by a status compare-and-set. Safe to run concurrently
	// with itself; a lost race is skipped, not an error.
	AdvanceTournaments(ctx context.Context, now time.Time) ([]TransitionResult, error)
}

type schedulerService struct {
	transactor      repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	bracketSvc      BracketService
	finisher        TournamentFinisher
	dispatcher      EventDispatcher
	completionGrace time.Duration
	logger          *slog.Logger
}

func NewSchedulerService(
	transactor repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	bracketSvc BracketService,
	finisher TournamentFinisher,
	dispatcher EventDispatcher,
	completionGrace time.Duration,
	logger *slog.Logger,
) SchedulerService {
	return &schedulerService{
		transactor:      transactor,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		bracketSvc:      bracketSvc,
		finisher:        finisher,
		dispatcher:      dispatcher,
		completionGrace: completionGrace,
		logger:          logger,
	}
}

func (s *schedulerService) AdvanceTournaments(ctx context.Context, now time.Time) ([]TransitionResult, error) {
	due, err := s.tournamentRepo.ListDueForSweep(ctx, now, s.completionGrace)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		results []TransitionResult
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTransitions)
	for _, tournament := range due {
		t := tournament
		g.Go(func() error {
			result, err := s.advanceOne(gCtx, t, now)
			if err != nil {
				// One stuck tournament must not stall the sweep.
				s.logger.Error("sweep transition failed",
					slog.Int("tournament_id", t.ID),
					slog.String("status", string(t.Status)),
					slog.String("error", err.Error()))
				return nil
			}
			if result != nil {
				mu.Lock()
				results = append(results, *result)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	for _, r := range results {
		s.dispatcher.StatusChanged(r.TournamentID, r.From, r.To)
	}
	return results, nil
}

// advanceOne applies the first matching lifecycle rule. A compare-and-
// set miss means a concurrent sweep (or the reporting path) got there
// first; the tournament is skipped until the next iteration.
func (s *schedulerService) advanceOne(ctx context.Context, t *models.Tournament, now time.Time) (*TransitionResult, error) {
	switch t.Status {
	case models.StatusDraft:
		if !now.Before(t.RegistrationStartsAt) && now.Before(t.RegistrationEndsAt) {
			return s.openRegistration(ctx, t, now)
		}
	case models.StatusRegistration:
		if !now.Before(t.RegistrationEndsAt) && !now.Before(t.CheckInStartsAt) {
			return s.transition(ctx, t, models.StatusCheckIn, nil)
		}
	case models.StatusCheckIn:
		if !now.Before(t.StartsAt) {
			return s.startTournament(ctx, t)
		}
	case models.StatusInProgress:
		if !now.Before(t.EstimatedEndAt.Add(s.completionGrace)) {
			return s.completeOverdue(ctx, t, now)
		}
	}
	return nil, nil
}

func (s *schedulerService) openRegistration(ctx context.Context, t *models.Tournament, now time.Time) (*TransitionResult, error) {
	return s.transition(ctx, t, models.StatusRegistration, func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.SetPublishedAt(ctx, exec, t.ID, now)
	})
}

// startTournament holds the tournament at check_in when too few
// participants checked in; the organizer has to intervene by hand.
func (s *schedulerService) startTournament(ctx context.Context, t *models.Tournament) (*TransitionResult, error) {
	checkedIn, err := s.participantRepo.CountCheckedIn(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if checkedIn < t.MinParticipants {
		s.logger.Warn("tournament held at check-in, not enough participants",
			slog.Int("tournament_id", t.ID),
			slog.Int("checked_in", checkedIn),
			slog.Int("min_participants", t.MinParticipants))
		return nil, nil
	}

	result, err := s.transition(ctx, t, models.StatusInProgress, func(exec repositories.SQLExecutor) error {
		return s.bracketSvc.GenerateForTournament(ctx, exec, t)
	})
	if err != nil || result == nil {
		return result, err
	}
	result.BracketGenerated = true
	s.dispatcher.BracketGenerated(t.ID)
	return result, nil
}

func (s *schedulerService) completeOverdue(ctx context.Context, t *models.Tournament, now time.Time) (*TransitionResult, error) {
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.finisher.FinalizeTournament(ctx, exec, t.ID, now)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			// Someone else completed or cancelled it between the sweep
			// query and here; that transition is not ours to report.
			return nil, nil
		}
		return nil, err
	}
	s.logger.Info("overdue tournament completed by sweep",
		slog.Int("tournament_id", t.ID),
		slog.Time("estimated_end_at", t.EstimatedEndAt))
	return &TransitionResult{
		TournamentID: t.ID,
		From:         models.StatusInProgress,
		To:           models.StatusCompleted,
	}, nil
}

// transition wraps the compare-and-set and the side effect in one
// transaction, so an interrupted sweep leaves the tournament either
// untouched or fully transitioned.
func (s *schedulerService) transition(ctx context.Context, t *models.Tournament, to models.TournamentStatus, sideEffect func(exec repositories.SQLExecutor) error) (*TransitionResult, error) {
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.CompareAndSetStatus(ctx, exec, t.ID, t.Status, to); err != nil {
			return err
		}
		if sideEffect != nil {
			return sideEffect(exec)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil, nil
		}
		return nil, err
	}

	s.logger.Info("tournament transitioned",
		slog.Int("tournament_id", t.ID),
		slog.String("from", string(t.Status)),
		slog.String("to", string(to)))
	return &TransitionResult{TournamentID: t.ID, From: t.Status, To: to}, nil
}
