package services

import "github.com/bracketforge/tournament-engine/models"

// EventDispatcher fans out lifecycle and match events to interested
// collaborators (live websocket rooms, notification delivery).
// Dispatch is fire-and-forget: implementations log failures and never
// propagate them, so a dispatch problem cannot roll back a committed
// transition.
type EventDispatcher interface {
	StatusChanged(tournamentID int, oldStatus, newStatus models.TournamentStatus)
	MatchCompleted(match *models.Match)
	BracketGenerated(tournamentID int)
}

type nopDispatcher struct{}

// NewNopDispatcher returns a dispatcher that drops every event.
func NewNopDispatcher() EventDispatcher {
	return nopDispatcher{}
}

func (nopDispatcher) StatusChanged(int, models.TournamentStatus, models.TournamentStatus) {}
func (nopDispatcher) MatchCompleted(*models.Match)                                       {}
func (nopDispatcher) BracketGenerated(int)                                               {}
