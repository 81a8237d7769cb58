package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bracketforge/tournament-engine/clock"
	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
)

type ParticipantService interface {
	// Register enlists a user during the registration window, bounded by
	// the tournament's capacity.
	Register(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	// CheckIn confirms attendance during the check-in window. Only
	// checked-in participants enter the bracket.
	CheckIn(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error)
}

type participantService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	clock           clock.Clock
	logger          *slog.Logger
}

func NewParticipantService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	clk clock.Clock,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		clock:           clk,
		logger:          logger,
	}
}

func (s *participantService) Register(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	if t.Status != models.StatusRegistration || now.Before(t.RegistrationStartsAt) || !now.Before(t.RegistrationEndsAt) {
		return nil, ErrRegistrationNotOpen
	}

	registered, err := s.participantRepo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants for tournament %d: %w", tournamentID, err)
	}
	if registered >= t.MaxParticipants {
		return nil, ErrTournamentFull
	}

	p := &models.Participant{TournamentID: tournamentID, UserID: userID}
	if err := s.participantRepo.Create(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrParticipantConflict) {
			return nil, ErrRegistrationConflict
		}
		return nil, fmt.Errorf("failed to register user %d: %w", userID, err)
	}

	s.logger.Info("participant registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID))
	return p, nil
}

func (s *participantService) CheckIn(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.Status != models.StatusCheckIn || s.clock.Now().Before(t.CheckInStartsAt) {
		return nil, ErrCheckInNotOpen
	}

	p, err := s.participantRepo.GetByTournamentAndUser(ctx, tournamentID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.CheckedIn {
		return p, nil
	}

	if err := s.participantRepo.SetCheckedIn(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("failed to check in participant %d: %w", p.ID, err)
	}
	p.CheckedIn = true
	return p, nil
}

func (s *participantService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.participantRepo.ListByTournament(ctx, nil, tournamentID, false)
}
