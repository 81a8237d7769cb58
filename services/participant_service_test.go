package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bracketforge/tournament-engine/models"
)

func TestRegisterWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.addTournament(t, tournamentFixture(models.StatusRegistration, models.FormatSingleElimination))
	env.clock.Advance(90 * time.Minute) // inside the registration window

	p, err := env.participantSvc.Register(context.Background(), tournament.ID, 501)
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, 501, p.UserID)
	assert.False(t, p.CheckedIn)

	_, err = env.participantSvc.Register(context.Background(), tournament.ID, 501)
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestRegisterOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.addTournament(t, tournamentFixture(models.StatusRegistration, models.FormatSingleElimination))

	// The sweep has not opened registration yet relative to the clock.
	_, err := env.participantSvc.Register(context.Background(), tournament.ID, 501)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)

	env.clock.Advance(3 * time.Hour) // past registration end
	_, err = env.participantSvc.Register(context.Background(), tournament.ID, 501)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestRegisterWrongStatus(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.addTournament(t, tournamentFixture(models.StatusDraft, models.FormatSingleElimination))
	env.clock.Advance(90 * time.Minute)

	_, err := env.participantSvc.Register(context.Background(), tournament.ID, 501)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestRegisterFullTournament(t *testing.T) {
	env := newTestEnv(t)
	fixture := tournamentFixture(models.StatusRegistration, models.FormatSingleElimination)
	fixture.MaxParticipants = 2
	tournament := env.addTournament(t, fixture)
	env.addParticipants(t, tournament.ID, 2, false)
	env.clock.Advance(90 * time.Minute)

	_, err := env.participantSvc.Register(context.Background(), tournament.ID, 501)
	assert.ErrorIs(t, err, ErrTournamentFull)
}

func TestCheckIn(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.addTournament(t, tournamentFixture(models.StatusCheckIn, models.FormatSingleElimination))
	registered := env.addParticipants(t, tournament.ID, 1, false)[0]

	// Check-in has not opened yet.
	_, err := env.participantSvc.CheckIn(context.Background(), tournament.ID, registered.UserID)
	assert.ErrorIs(t, err, ErrCheckInNotOpen)

	env.clock.Advance(2 * time.Hour)
	p, err := env.participantSvc.CheckIn(context.Background(), tournament.ID, registered.UserID)
	require.NoError(t, err)
	assert.True(t, p.CheckedIn)
	assert.True(t, env.reloadParticipant(t, registered.ID).CheckedIn)

	// Checking in twice is a no-op.
	p, err = env.participantSvc.CheckIn(context.Background(), tournament.ID, registered.UserID)
	require.NoError(t, err)
	assert.True(t, p.CheckedIn)

	// A user who never registered cannot check in.
	_, err = env.participantSvc.CheckIn(context.Background(), tournament.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByTournamentUnknownTournament(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.participantSvc.ListByTournament(context.Background(), 55)
	assert.ErrorIs(t, err, ErrNotFound)
}
