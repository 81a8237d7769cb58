package services

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
)

const organizerID = 42

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	clock           *fakeClock
	dispatcher      *recordingDispatcher
	tournamentRepo  *fakeTournamentRepo
	participantRepo *fakeParticipantRepo
	bracketRepo     *fakeBracketRepo
	matchRepo       *fakeMatchRepo

	tournamentSvc  TournamentService
	bracketSvc     BracketService
	matchSvc       MatchService
	schedulerSvc   SchedulerService
	participantSvc ParticipantService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:           newFakeClock(baseTime),
		dispatcher:      &recordingDispatcher{},
		tournamentRepo:  newFakeTournamentRepo(),
		participantRepo: newFakeParticipantRepo(),
		bracketRepo:     newFakeBracketRepo(),
		matchRepo:       newFakeMatchRepo(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transactor := fakeTransactor{}

	env.bracketSvc = NewBracketService(
		transactor, env.tournamentRepo, env.participantRepo, env.bracketRepo, env.matchRepo,
		nil, env.dispatcher, env.clock, logger, rand.New(rand.NewSource(1)))
	env.tournamentSvc = NewTournamentService(
		transactor, env.tournamentRepo, env.participantRepo, env.bracketRepo, env.matchRepo,
		nil, env.dispatcher, env.clock, logger)
	env.matchSvc = NewMatchService(
		transactor, env.tournamentRepo, env.participantRepo, env.bracketRepo, env.matchRepo,
		env.tournamentSvc, env.dispatcher, env.clock, logger)
	env.schedulerSvc = NewSchedulerService(
		transactor, env.tournamentRepo, env.participantRepo, env.bracketSvc,
		env.tournamentSvc, env.dispatcher, time.Hour, logger)
	env.participantSvc = NewParticipantService(
		env.tournamentRepo, env.participantRepo, env.clock, logger)
	return env
}

// tournamentFixture schedules everything relative to baseTime:
// registration opens an hour in, closes at +2h, check-in runs +2h..+3h,
// play runs +3h..+5h.
func tournamentFixture(status models.TournamentStatus, format models.TournamentFormat) *models.Tournament {
	return &models.Tournament{
		Name:                 "Spring Invitational",
		OrganizerID:          organizerID,
		Format:               format,
		Seeding:              models.SeedingRegistrationOrder,
		Status:               status,
		RegistrationStartsAt: baseTime.Add(time.Hour),
		RegistrationEndsAt:   baseTime.Add(2 * time.Hour),
		CheckInStartsAt:      baseTime.Add(2 * time.Hour),
		StartsAt:             baseTime.Add(3 * time.Hour),
		EstimatedEndAt:       baseTime.Add(5 * time.Hour),
		MinParticipants:      2,
		MaxParticipants:      32,
		CreatedAt:            baseTime,
	}
}

func (e *testEnv) addTournament(t *testing.T, tournament *models.Tournament) *models.Tournament {
	t.Helper()
	return e.tournamentRepo.add(tournament)
}

// addParticipants registers n users in creation order so registration
// order seeding is deterministic: user 101 becomes seed 1 and so on.
func (e *testEnv) addParticipants(t *testing.T, tournamentID, n int, checkedIn bool) []*models.Participant {
	t.Helper()
	out := make([]*models.Participant, 0, n)
	for i := 0; i < n; i++ {
		p := e.participantRepo.add(&models.Participant{
			TournamentID: tournamentID,
			UserID:       101 + i,
			CheckedIn:    checkedIn,
			CreatedAt:    baseTime.Add(time.Duration(i) * time.Minute),
		})
		out = append(out, p)
	}
	return out
}

func (e *testEnv) generateBracket(t *testing.T, tournament *models.Tournament) {
	t.Helper()
	err := e.bracketSvc.GenerateForTournament(context.Background(), nil, tournament)
	require.NoError(t, err)
}

func (e *testEnv) tournamentMatches(t *testing.T, tournamentID int) []*models.Match {
	t.Helper()
	matches, err := e.matchRepo.ListByTournament(context.Background(), nil, tournamentID)
	require.NoError(t, err)
	return matches
}

func (e *testEnv) readyMatches(t *testing.T, tournamentID int) []*models.Match {
	t.Helper()
	var ready []*models.Match
	for _, m := range e.tournamentMatches(t, tournamentID) {
		if m.Status == models.MatchReady {
			ready = append(ready, m)
		}
	}
	return ready
}

func (e *testEnv) reloadTournament(t *testing.T, id int) *models.Tournament {
	t.Helper()
	tournament, err := e.tournamentRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tournament
}

func (e *testEnv) reloadParticipant(t *testing.T, id int) *models.Participant {
	t.Helper()
	p, err := e.participantRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

var _ repositories.TournamentRepository = (*fakeTournamentRepo)(nil)
var _ repositories.ParticipantRepository = (*fakeParticipantRepo)(nil)
var _ repositories.BracketRepository = (*fakeBracketRepo)(nil)
var _ repositories.MatchRepository = (*fakeMatchRepo)(nil)
var _ repositories.Transactor = fakeTransactor{}
var _ EventDispatcher = (*recordingDispatcher)(nil)
