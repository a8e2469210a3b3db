package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"riddlehunt/internal/models"
	"riddlehunt/internal/service"
)

// LeaderboardHandler answers standing queries for the authenticated user
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// GlobalStanding handles GET /leaderboard/{period}/me
func (h *LeaderboardHandler) GlobalStanding(w http.ResponseWriter, r *http.Request) {
	period, err := models.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		respondWithError(w, r, fmt.Errorf("%w: %v", service.ErrBadRequest, err))
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	standing, err := h.leaderboard.GlobalStanding(r.Context(), userID, period)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, standing)
}

// RiddleStanding handles GET /riddles/{riddleID}/leaderboard/me
func (h *LeaderboardHandler) RiddleStanding(w http.ResponseWriter, r *http.Request) {
	riddleID, err := pathID(r, "riddleID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	standing, err := h.leaderboard.RiddleStanding(r.Context(), userID, riddleID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, standing)
}
