package moderation

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"guardian-core/internal/player"
)

// IssueBanRequest is the body of POST /v1/bans.
type IssueBanRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason"`
	ExpiresAt  string `json:"expires_at,omitempty"` // RFC 3339, empty for permanent
}

// RevokeBanRequest is the body of DELETE /v1/bans/{player_id}.
type RevokeBanRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func playerIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["player_id"])
	return id, err == nil
}

func (s *Service) IssueBanHandler(w http.ResponseWriter, r *http.Request) {
	var req IssueBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	subject, err := player.NewRef(req.PlayerID, req.PlayerName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expires_at must be RFC 3339")
			return
		}
		expiresAt = &parsed
	}

	ban, err := s.IssueBan(r.Context(), subject, req.Actor, req.Reason, expiresAt)
	switch {
	case errors.Is(err, ErrAlreadyBanned):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidExpiry):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Printf("Failed to issue ban for %s: %v", subject.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to issue ban")
	default:
		writeJSON(w, http.StatusCreated, ban)
	}
}

func (s *Service) RevokeBanHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	var req RevokeBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	err := s.RevokeBan(r.Context(), playerID, req.Actor, req.Reason)
	switch {
	case errors.Is(err, ErrNoActiveBan):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		log.Printf("Failed to revoke ban for %s: %v", playerID, err)
		writeError(w, http.StatusInternalServerError, "failed to revoke ban")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Service) GetBanHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	ban, err := s.ActiveBan(r.Context(), playerID)
	if err != nil {
		log.Printf("Failed to load active ban for %s: %v", playerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load active ban")
		return
	}
	if ban == nil {
		writeError(w, http.StatusNotFound, ErrNoActiveBan.Error())
		return
	}
	writeJSON(w, http.StatusOK, ban)
}

func (s *Service) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	entries, err := s.History(r.Context(), playerID)
	if err != nil {
		log.Printf("Failed to load history for %s: %v", playerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
