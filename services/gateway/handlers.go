package gateway

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"guardian-core/services/presence"
)

// PresenceSnapshot is the authoritative state a refreshing observer
// re-fetches after a refresh signal.
type PresenceSnapshot struct {
	Online  int              `json:"online"`
	Players []presence.Entry `json:"players"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Service) PresenceSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	players := s.registry.Snapshot()
	if players == nil {
		players = []presence.Entry{}
	}
	writeJSON(w, http.StatusOK, PresenceSnapshot{
		Online:  s.registry.Online(),
		Players: players,
	})
}

func (s *Service) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(mux.Vars(r)["player_id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player_id"})
		return
	}

	entry, ok := s.registry.Get(playerID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown player"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
