package httpapi

import (
	"net/http"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/store"
)

type ProfileHandler struct {
	Profiles *store.ProfileStore
	Matches  *store.MatchStore
}

// Leaderboard serves GET /api/leaderboard?by=wins|impostor.
func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	order := store.ByWins
	if r.URL.Query().Get("by") == "impostor" {
		order = store.ByImpostorWins
	}

	entries, err := h.Profiles.Leaderboard(r.Context(), order, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load leaderboard")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"userId":       e.UserID,
			"displayName":  e.DisplayName,
			"xp":           e.XP,
			"totalWins":    e.TotalWins,
			"impostorWins": e.ImpostorWins,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// History serves GET /api/matches/history for the authenticated user.
func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	entries, err := h.Matches.HistoryForUser(r.Context(), userID, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"matchId":     e.ID,
			"roomCode":    e.RoomCode,
			"winner":      e.Winner,
			"secretWord":  e.SecretWord,
			"language":    e.Language,
			"durationMs":  e.Duration.Milliseconds(),
			"playedAt":    e.PlayedAt,
			"wasImpostor": e.WasImpostor,
			"won":         e.Won,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}
