package realtime

import (
	"github.com/google/uuid"

	"github.com/bracketforge/tournament-engine/models"
)

const (
	EventStatusChanged    = "TOURNAMENT_STATUS_CHANGED"
	EventMatchCompleted   = "MATCH_COMPLETED"
	EventBracketGenerated = "BRACKET_GENERATED"
)

// Event is the wire envelope pushed to room subscribers.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type statusChangedPayload struct {
	TournamentID int                     `json:"tournament_id"`
	OldStatus    models.TournamentStatus `json:"old_status"`
	NewStatus    models.TournamentStatus `json:"new_status"`
}

// Dispatcher pushes lifecycle and match events into the hub's rooms.
// Satisfies the services event-dispatch contract; all methods are
// fire-and-forget.
type Dispatcher struct {
	hub *Hub
}

func NewDispatcher(hub *Hub) *Dispatcher {
	return &Dispatcher{hub: hub}
}

func (d *Dispatcher) StatusChanged(tournamentID int, oldStatus, newStatus models.TournamentStatus) {
	d.hub.BroadcastToRoom(tournamentID, Event{
		ID:   uuid.NewString(),
		Type: EventStatusChanged,
		Payload: statusChangedPayload{
			TournamentID: tournamentID,
			OldStatus:    oldStatus,
			NewStatus:    newStatus,
		},
	})
}

func (d *Dispatcher) MatchCompleted(match *models.Match) {
	if match == nil {
		return
	}
	d.hub.BroadcastToRoom(match.TournamentID, Event{
		ID:      uuid.NewString(),
		Type:    EventMatchCompleted,
		Payload: match,
	})
}

func (d *Dispatcher) BracketGenerated(tournamentID int) {
	d.hub.BroadcastToRoom(tournamentID, Event{
		ID:      uuid.NewString(),
		Type:    EventBracketGenerated,
		Payload: map[string]int{"tournament_id": tournamentID},
	})
}
