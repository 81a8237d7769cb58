package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bracketforge/tournament-engine/middleware"
	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
	"github.com/bracketforge/tournament-engine/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	bracketService    services.BracketService
}

func NewTournamentHandler(tournamentService services.TournamentService, bracketService services.BracketService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: tournamentService,
		bracketService:    bracketService,
	}
}

type tournamentInput struct {
	Name                 string                   `json:"name"`
	Format               models.TournamentFormat  `json:"format"`
	Seeding              models.SeedingMethod     `json:"seeding"`
	RegistrationStartsAt time.Time                `json:"registration_starts_at"`
	RegistrationEndsAt   time.Time                `json:"registration_ends_at"`
	CheckInStartsAt      time.Time                `json:"check_in_starts_at"`
	StartsAt             time.Time                `json:"starts_at"`
	EstimatedEndAt       time.Time                `json:"estimated_end_at"`
	MinParticipants      int                      `json:"min_participants"`
	MaxParticipants      int                      `json:"max_participants"`
	PrizePool            decimal.Decimal          `json:"prize_pool"`
	PrizeDistribution    models.PrizeDistribution `json:"prize_distribution"`
}

func (in *tournamentInput) toModel() *models.Tournament {
	return &models.Tournament{
		Name:                 in.Name,
		Format:               in.Format,
		Seeding:              in.Seeding,
		RegistrationStartsAt: in.RegistrationStartsAt,
		RegistrationEndsAt:   in.RegistrationEndsAt,
		CheckInStartsAt:      in.CheckInStartsAt,
		StartsAt:             in.StartsAt,
		EstimatedEndAt:       in.EstimatedEndAt,
		MinParticipants:      in.MinParticipants,
		MaxParticipants:      in.MaxParticipants,
		PrizePool:            in.PrizePool,
		PrizeDistribution:    in.PrizeDistribution,
	}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}

	var input tournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament := input.toModel()
	tournament.OrganizerID = userID
	if err := h.tournamentService.CreateTournament(r.Context(), tournament); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	tournament, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{Limit: 50}

	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		status := models.TournamentStatus(raw)
		filter.Status = &status
	}
	if raw := query.Get("format"); raw != "" {
		format := models.TournamentFormat(raw)
		filter.Format = &format
	}
	if raw := query.Get("organizer_id"); raw != "" {
		if organizerID, err := strconv.Atoi(raw); err == nil {
			filter.OrganizerID = &organizerID
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
}

func (h *TournamentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var input tournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament := input.toModel()
	tournament.ID = id
	if err := h.tournamentService.UpdateTournament(r.Context(), userID, tournament); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := h.tournamentService.CancelTournament(r.Context(), userID, id); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": string(models.StatusCancelled)}, nil)
}

func (h *TournamentHandler) GenerateBracket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := h.bracketService.GenerateBracket(r.Context(), userID, id); err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"message": "bracket generated"}, nil)
}

func (h *TournamentHandler) GetBrackets(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	brackets, err := h.bracketService.GetTournamentBrackets(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"brackets": brackets}, nil)
}

func (h *TournamentHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, err.Error())
		return
	}
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	const maxBannerSize = 5 << 20
	if err := r.ParseMultipartForm(maxBannerSize); err != nil {
		badRequestResponse(w, err)
		return
	}
	file, header, err := r.FormFile("banner")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	defer file.Close()

	location, err := h.tournamentService.UploadBanner(r.Context(), userID, id, file, header.Header.Get("Content-Type"))
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"banner_url": location}, nil)
}
