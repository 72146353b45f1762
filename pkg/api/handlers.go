package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/decred/slog"
	"github.com/gorilla/mux"

	"github.com/Mr-Super09/Bloker/pkg/bloker"
	"github.com/Mr-Super09/Bloker/pkg/server"
)

// Handlers contains all the API handlers
type Handlers struct {
	srv   *server.Server
	store server.Store
	log   slog.Logger
}

// NewHandlers creates a new instance of Handlers
func NewHandlers(srv *server.Server, store server.Store, log slog.Logger) *Handlers {
	if log == nil {
		log = slog.Disabled
	}
	return &Handlers{
		srv:   srv,
		store: store,
		log:   log,
	}
}

// RegisterRoutes registers all API routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Session endpoints
	r.HandleFunc("/api/session", h.CreateSession).Methods("POST")
	r.HandleFunc("/api/session/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/api/session/{id}/vote", h.Vote).Methods("POST")
	r.HandleFunc("/api/session/{id}/bet", h.Bet).Methods("POST")
	r.HandleFunc("/api/session/{id}/hit", h.Hit).Methods("POST")
	r.HandleFunc("/api/session/{id}/stay", h.Stay).Methods("POST")
	r.HandleFunc("/api/session/{id}/leave", h.Leave).Methods("POST")
	r.HandleFunc("/api/session/{id}/messages", h.Messages).Methods("GET")

	// Player endpoints
	r.HandleFunc("/api/player/{id}/stats", h.GetPlayerStats).Methods("GET")
}

// response helper function to send JSON responses
func response(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// error response helper function
func errorResponse(w http.ResponseWriter, status int, message string) {
	response(w, status, map[string]string{"error": message})
}

// writeGameError maps the game error sentinels onto HTTP statuses.
func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bloker.ErrSessionNotFound):
		errorResponse(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, bloker.ErrNotAParticipant):
		errorResponse(w, http.StatusForbidden, "Not a participant in this session")
	case errors.Is(err, bloker.ErrWrongPhase),
		errors.Is(err, bloker.ErrSideInactive),
		errors.Is(err, bloker.ErrVoteAlreadyCast),
		errors.Is(err, bloker.ErrSessionFinished):
		errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, bloker.ErrInvalidRaise),
		errors.Is(err, bloker.ErrInvalidVote),
		errors.Is(err, bloker.ErrInsufficientReserve):
		errorResponse(w, http.StatusBadRequest, err.Error())
	default:
		errorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

// maskedResponse sends the session state as the acting player sees it.
func maskedResponse(w http.ResponseWriter, status int, sess *bloker.Session, playerID string) {
	side, ok := sess.SideOf(playerID)
	if !ok {
		errorResponse(w, http.StatusForbidden, "Not a participant in this session")
		return
	}
	response(w, status, newSessionView(sess, side))
}

// CreateSession starts a new match between two players
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerA string `json:"player_a"`
		PlayerB string `json:"player_b"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.srv.CreateSession(req.PlayerA, req.PlayerB)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	maskedResponse(w, http.StatusCreated, sess, req.PlayerA)
}

// GetSession returns the session state as seen by the requesting player
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		errorResponse(w, http.StatusBadRequest, "player_id is required")
		return
	}

	sess, err := h.srv.Snapshot(vars["id"], playerID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	maskedResponse(w, http.StatusOK, sess, playerID)
}

// Vote submits a player's settings vote
func (h *Handlers) Vote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		PlayerID  string `json:"player_id"`
		NumDecks  int    `json:"num_decks"`
		AllowPeek bool   `json:"allow_peek"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vote := bloker.SettingsVote{NumDecks: req.NumDecks, AllowPeek: req.AllowPeek}
	sess, err := h.srv.SubmitVote(vars["id"], req.PlayerID, vote)
	if err != nil {
		writeGameError(w, err)
		return
	}

	maskedResponse(w, http.StatusOK, sess, req.PlayerID)
}

// Bet performs a betting action: fold, check or raise
func (h *Handlers) Bet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		PlayerID string `json:"player_id"`
		Action   string `json:"action"`
		Amount   int    `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var kind bloker.BetKind
	switch req.Action {
	case "fold":
		kind = bloker.BetFold
	case "check":
		kind = bloker.BetCheck
	case "raise":
		kind = bloker.BetRaise
	default:
		errorResponse(w, http.StatusBadRequest, "action must be fold, check or raise")
		return
	}

	sess, err := h.srv.Bet(vars["id"], req.PlayerID, kind, req.Amount)
	if err != nil {
		writeGameError(w, err)
		return
	}

	maskedResponse(w, http.StatusOK, sess, req.PlayerID)
}

// Hit draws a card for the player
func (h *Handlers) Hit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		PlayerID string `json:"player_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, res, err := h.srv.Hit(vars["id"], req.PlayerID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	side, ok := sess.SideOf(req.PlayerID)
	if !ok {
		errorResponse(w, http.StatusForbidden, "Not a participant in this session")
		return
	}

	// The draw result is private to the actor.
	response(w, http.StatusOK, map[string]interface{}{
		"card":      cardView(res.Card, false),
		"value":     res.Value,
		"busted":    res.Busted,
		"lost_game": res.LostGame,
		"session":   newSessionView(sess, side),
	})
}

// Stay freezes the player's hand for the round
func (h *Handlers) Stay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		PlayerID string `json:"player_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.srv.Stay(vars["id"], req.PlayerID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	maskedResponse(w, http.StatusOK, sess, req.PlayerID)
}

// Leave forfeits the match for the player
func (h *Handlers) Leave(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		PlayerID string `json:"player_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.srv.Leave(vars["id"], req.PlayerID)
	if err != nil {
		writeGameError(w, err)
		return
	}

	maskedResponse(w, http.StatusOK, sess, req.PlayerID)
}

// Messages returns the session's system message feed for polling
func (h *Handlers) Messages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		errorResponse(w, http.StatusBadRequest, "player_id is required")
		return
	}

	// Snapshot doubles as the participant check.
	if _, err := h.srv.Snapshot(vars["id"], playerID); err != nil {
		writeGameError(w, err)
		return
	}

	var afterID int64
	if after := r.URL.Query().Get("after"); after != "" {
		parsed, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "after must be an integer")
			return
		}
		afterID = parsed
	}

	msgs, err := h.store.Messages(vars["id"], afterID)
	if err != nil {
		h.log.Errorf("Failed to load messages for session %s: %v", vars["id"], err)
		errorResponse(w, http.StatusInternalServerError, "Error retrieving messages")
		return
	}

	response(w, http.StatusOK, msgs)
}

// GetPlayerStats returns player statistics
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	stats, err := h.store.PlayerStats(vars["id"])
	if err != nil {
		h.log.Errorf("Failed to load stats for player %s: %v", vars["id"], err)
		errorResponse(w, http.StatusInternalServerError, "Error retrieving player statistics")
		return
	}

	response(w, http.StatusOK, stats)
}
