package handlers

import (
	"net/http"

	"riddlehunt/internal/service"
)

// GameHandler exposes the game engine over HTTP
type GameHandler struct {
	games *service.GameService
}

// NewGameHandler creates a new game handler
func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

type startGameRequest struct {
	Password string `json:"password"`
}

type unlockHintRequest struct {
	HintOrder int `json:"hint_order"`
}

type validateStepRequest struct {
	Code string `json:"code"`
}

// sessionCommand builds the command shared by every /games/{sessionID} route
func sessionCommand(r *http.Request) (service.SessionCommand, error) {
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		return service.SessionCommand{}, err
	}
	userID, _ := UserIDFromContext(r.Context())
	return service.SessionCommand{SessionID: sessionID, UserID: userID}, nil
}

// StartGame handles POST /riddles/{riddleID}/games
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	riddleID, err := pathID(r, "riddleID")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req startGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	session, err := h.games.StartGame(r.Context(), service.StartGameCommand{
		RiddleID: riddleID,
		UserID:   userID,
		Password: req.Password,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GetCurrentGame handles GET /games/{sessionID}
func (h *GameHandler) GetCurrentGame(w http.ResponseWriter, r *http.Request) {
	cmd, err := sessionCommand(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	view, err := h.games.GetCurrentGame(r.Context(), cmd)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UnlockHint handles POST /games/{sessionID}/hints
func (h *GameHandler) UnlockHint(w http.ResponseWriter, r *http.Request) {
	cmd, err := sessionCommand(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req unlockHintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	view, err := h.games.UnlockHint(r.Context(), service.UnlockHintCommand{
		SessionID: cmd.SessionID,
		UserID:    cmd.UserID,
		HintOrder: req.HintOrder,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ValidateStep handles POST /games/{sessionID}/validate
func (h *GameHandler) ValidateStep(w http.ResponseWriter, r *http.Request) {
	cmd, err := sessionCommand(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req validateStepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.games.ValidateStep(r.Context(), service.ValidateStepCommand{
		SessionID: cmd.SessionID,
		UserID:    cmd.UserID,
		Code:      req.Code,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AbandonGame handles POST /games/{sessionID}/abandon
func (h *GameHandler) AbandonGame(w http.ResponseWriter, r *http.Request) {
	cmd, err := sessionCommand(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	session, err := h.games.AbandonGame(r.Context(), cmd)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GetCompletedGame handles GET /games/{sessionID}/summary
func (h *GameHandler) GetCompletedGame(w http.ResponseWriter, r *http.Request) {
	cmd, err := sessionCommand(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	summary, err := h.games.GetCompletedGame(r.Context(), cmd)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
