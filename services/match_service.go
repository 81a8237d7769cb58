package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bracketforge/tournament-engine/brackets"
	"github.com/bracketforge/tournament-engine/clock"
	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
)

// TournamentFinisher closes out an in-progress tournament inside the
// caller's transaction: status transition, placements, prize payouts.
// Implemented by the tournament service; declared here so the match
// service does not depend on its full surface.
type TournamentFinisher interface {
	FinalizeTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, at time.Time) error
}

type MatchService interface {
	// ReportMatchResult records a played result and advances both
	// participants through the bracket graph, cascading walkovers and
	// completing the tournament when the graph is exhausted.
	ReportMatchResult(ctx context.Context, reporterID, matchID, score1, score2 int) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListTournamentMatches(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type matchService struct {
	transactor      repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	bracketRepo     repositories.BracketRepository
	matchRepo       repositories.MatchRepository
	finisher        TournamentFinisher
	dispatcher      EventDispatcher
	clock           clock.Clock
	logger          *slog.Logger
}

func NewMatchService(
	transactor repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	finisher TournamentFinisher,
	dispatcher EventDispatcher,
	clk clock.Clock,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		transactor:      transactor,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		bracketRepo:     bracketRepo,
		matchRepo:       matchRepo,
		finisher:        finisher,
		dispatcher:      dispatcher,
		clock:           clk,
		logger:          logger,
	}
}

// advanceState accumulates everything a single result submission caused
// beyond its own row, so events fire only after the transaction commits.
type advanceState struct {
	now                 time.Time
	walkovers           []*models.Match
	championID          *int
	tournamentCompleted bool
}

func (s *matchService) ReportMatchResult(ctx context.Context, reporterID, matchID, score1, score2 int) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, ErrInvalidScore
	}
	if score1 == score2 {
		return nil, ErrScoresTied
	}

	var (
		updated    *models.Match
		tournament *models.Tournament
		st         *advanceState
	)
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrNotFound
			}
			return err
		}

		tournament, err = s.tournamentRepo.GetByID(ctx, match.TournamentID)
		if err != nil {
			return fmt.Errorf("failed to load tournament %d for match %d: %w", match.TournamentID, matchID, err)
		}
		if tournament.OrganizerID != reporterID {
			return ErrForbiddenOperation
		}
		if tournament.Status != models.StatusInProgress {
			return ErrTournamentNotInProgress
		}
		if match.Status == models.MatchCompleted {
			return ErrMatchAlreadyCompleted
		}
		if match.Status != models.MatchReady || match.Participant1ID == nil || match.Participant2ID == nil {
			return ErrMatchNotReady
		}

		winnerID, loserID := *match.Participant1ID, *match.Participant2ID
		winnerGames, loserGames := score1, score2
		if score2 > score1 {
			winnerID, loserID = loserID, winnerID
			winnerGames, loserGames = score2, score1
		}

		st = &advanceState{now: s.clock.Now()}
		if err := s.matchRepo.CompleteMatch(ctx, exec, match.ID, score1, score2, winnerID, st.now); err != nil {
			if errors.Is(err, repositories.ErrMatchStateConflict) {
				return ErrMatchAlreadyCompleted
			}
			return fmt.Errorf("failed to complete match %d: %w", match.ID, err)
		}
		if err := s.participantRepo.AddMatchResult(ctx, exec, winnerID, true, winnerGames, loserGames); err != nil {
			return fmt.Errorf("failed to record win for participant %d: %w", winnerID, err)
		}
		if err := s.participantRepo.AddMatchResult(ctx, exec, loserID, false, loserGames, winnerGames); err != nil {
			return fmt.Errorf("failed to record loss for participant %d: %w", loserID, err)
		}

		match.Status = models.MatchCompleted
		match.Score1, match.Score2 = &score1, &score2
		match.WinnerID = &winnerID
		completedAt := st.now
		match.CompletedAt = &completedAt

		if match.NextMatchWinnerID != nil {
			if err := s.deliver(ctx, exec, *match.NextMatchWinnerID, &winnerID, st); err != nil {
				return err
			}
		}
		if match.NextMatchLoserID != nil {
			if err := s.deliver(ctx, exec, *match.NextMatchLoserID, &loserID, st); err != nil {
				return err
			}
		}

		if err := s.afterCompletion(ctx, exec, tournament, match, winnerID, st); err != nil {
			return err
		}
		updated = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.MatchCompleted(updated)
	for _, walkover := range st.walkovers {
		s.dispatcher.MatchCompleted(walkover)
	}
	if st.tournamentCompleted {
		s.dispatcher.StatusChanged(tournament.ID, models.StatusInProgress, models.StatusCompleted)
		s.logger.Info("tournament completed by final result",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("match_id", updated.ID))
	}
	return updated, nil
}

// deliver places a participant into the target match and settles the
// target's state. A nil participantID is a re-evaluation: no one
// arrives, but the target may have just lost its last pending feeder
// and now resolves by walkover. Walkovers cascade recursively.
func (s *matchService) deliver(ctx context.Context, exec repositories.SQLExecutor, targetID int, participantID *int, st *advanceState) error {
	target, err := s.matchRepo.GetByIDForUpdate(ctx, exec, targetID)
	if err != nil {
		return fmt.Errorf("failed to load advancement target %d: %w", targetID, err)
	}
	if target.Status == models.MatchCompleted {
		if participantID != nil {
			return fmt.Errorf("%w: delivery of participant %d into completed match %d",
				ErrAdvancementGraphCorrupt, *participantID, targetID)
		}
		return nil
	}

	if participantID != nil {
		switch {
		case target.Participant1ID == nil:
			target.Participant1ID = participantID
		case target.Participant2ID == nil:
			target.Participant2ID = participantID
		default:
			return fmt.Errorf("%w: no open slot in match %d for participant %d",
				ErrAdvancementGraphCorrupt, targetID, *participantID)
		}
	}

	if target.Participant1ID != nil && target.Participant2ID != nil {
		return s.matchRepo.UpdateSlots(ctx, exec, targetID, target.Participant1ID, target.Participant2ID, models.MatchReady)
	}

	feeders, err := s.matchRepo.ListFeeders(ctx, exec, targetID)
	if err != nil {
		return fmt.Errorf("failed to list feeders of match %d: %w", targetID, err)
	}
	for _, feeder := range feeders {
		if feeder.Status != models.MatchCompleted {
			// Someone can still arrive; the open slot stays open.
			return s.matchRepo.UpdateSlots(ctx, exec, targetID, target.Participant1ID, target.Participant2ID, models.MatchPending)
		}
	}

	// Every feeder has resolved and a slot is still empty: the match can
	// never be played. A lone occupant wins by walkover; an empty match
	// completes with no winner.
	var winnerID *int
	if target.Participant1ID != nil {
		winnerID = target.Participant1ID
	} else if target.Participant2ID != nil {
		winnerID = target.Participant2ID
	}
	if err := s.matchRepo.UpdateSlots(ctx, exec, targetID, target.Participant1ID, target.Participant2ID, models.MatchPending); err != nil {
		return err
	}
	if err := s.matchRepo.CompleteWalkover(ctx, exec, targetID, winnerID, st.now); err != nil {
		return fmt.Errorf("failed to complete walkover for match %d: %w", targetID, err)
	}
	if winnerID != nil {
		if err := s.participantRepo.AddMatchResult(ctx, exec, *winnerID, true, 0, 0); err != nil {
			return fmt.Errorf("failed to record walkover win for participant %d: %w", *winnerID, err)
		}
	}

	target.Status = models.MatchCompleted
	target.WinnerID = winnerID
	completedAt := st.now
	target.CompletedAt = &completedAt
	st.walkovers = append(st.walkovers, target)

	if target.NextMatchWinnerID != nil {
		if err := s.deliver(ctx, exec, *target.NextMatchWinnerID, winnerID, st); err != nil {
			return err
		}
	} else if winnerID != nil {
		// A walkover settled the last match of the graph.
		st.championID = winnerID
	}
	if target.NextMatchLoserID != nil {
		if err := s.deliver(ctx, exec, *target.NextMatchLoserID, nil, st); err != nil {
			return err
		}
	}
	return nil
}

// afterCompletion runs the per-format progress rules once the reported
// match and its cascade have settled.
func (s *matchService) afterCompletion(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, match *models.Match, winnerID int, st *advanceState) error {
	switch t.Format {
	case models.FormatSingleElimination, models.FormatDoubleElimination:
		if match.NextMatchWinnerID == nil {
			st.championID = &winnerID
		}
		if st.championID != nil {
			return s.finalize(ctx, exec, t, st)
		}
	case models.FormatSwiss:
		open, err := s.matchRepo.CountOpenInRound(ctx, exec, match.BracketID, match.Round)
		if err != nil {
			return fmt.Errorf("failed to count open matches in round %d: %w", match.Round, err)
		}
		if open > 0 {
			return nil
		}
		bracket, err := s.bracketRepo.GetByID(ctx, match.BracketID)
		if err != nil {
			return fmt.Errorf("failed to load bracket %d: %w", match.BracketID, err)
		}
		if match.Round < bracket.TotalRounds {
			return s.generateSwissRound(ctx, exec, t, match.BracketID, match.Round+1, st)
		}
		return s.finalize(ctx, exec, t, st)
	case models.FormatRoundRobin:
		open, err := s.matchRepo.CountOpenInTournament(ctx, exec, t.ID)
		if err != nil {
			return fmt.Errorf("failed to count open matches for tournament %d: %w", t.ID, err)
		}
		if open == 0 {
			return s.finalize(ctx, exec, t, st)
		}
	}
	return nil
}

// generateSwissRound pairs the next round from the standings as they
// exist inside this transaction, so the just-recorded results count.
func (s *matchService) generateSwissRound(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, bracketID, round int, st *advanceState) error {
	participants, err := s.participantRepo.ListByTournament(ctx, exec, t.ID, true)
	if err != nil {
		return fmt.Errorf("failed to list participants for swiss round %d: %w", round, err)
	}
	standings := make([]brackets.SwissStanding, 0, len(participants))
	for _, p := range participants {
		if p.Seed == nil {
			continue
		}
		standings = append(standings, brackets.SwissStanding{
			ParticipantID: p.ID,
			Wins:          p.MatchesWon,
			GameDiff:      p.GameDiff(),
			Seed:          *p.Seed,
		})
	}

	for _, pm := range brackets.PairSwissRound(round, standings) {
		match := &models.Match{
			TournamentID:   t.ID,
			BracketID:      bracketID,
			Round:          pm.Round,
			MatchNumber:    pm.Number,
			Participant1ID: pm.Participant1ID,
			Participant2ID: pm.Participant2ID,
			Status:         models.MatchReady,
		}
		if pm.Completed {
			match.Status = models.MatchCompleted
			match.WinnerID = pm.WinnerID
			completedAt := st.now
			match.CompletedAt = &completedAt
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to create swiss round %d match: %w", round, err)
		}
		if pm.Completed && pm.WinnerID != nil {
			if err := s.participantRepo.AddMatchResult(ctx, exec, *pm.WinnerID, true, 0, 0); err != nil {
				return fmt.Errorf("failed to record swiss bye win for participant %d: %w", *pm.WinnerID, err)
			}
			st.walkovers = append(st.walkovers, match)
		}
	}

	s.logger.Info("swiss round generated",
		slog.Int("tournament_id", t.ID),
		slog.Int("round", round),
		slog.Int("participants", len(standings)))
	return nil
}

func (s *matchService) finalize(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, st *advanceState) error {
	if err := s.finisher.FinalizeTournament(ctx, exec, t.ID, st.now); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			// A concurrent finalizer won; the completion event is theirs.
			return nil
		}
		return fmt.Errorf("failed to finalize tournament %d: %w", t.ID, err)
	}
	st.tournamentCompleted = true
	return nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListTournamentMatches(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.matchRepo.ListByTournament(ctx, nil, tournamentID)
}
