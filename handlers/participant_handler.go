package handlers

import (
	"net/http"

	"github.com/bracketforge/tournament-engine/middleware"
	"github.com/bracketforge/tournament-engine/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(participantService services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService}
}

func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	participant, err := h.participantService.Register(r.Context(), tournamentID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil)
}

func (h *ParticipantHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	participant, err := h.participantService.CheckIn(r.Context(), tournamentID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil)
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	participants, err := h.participantService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil)
}
