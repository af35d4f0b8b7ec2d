package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/store"
)

// MatchHandler accepts finished-game reports from hosts and folds them into
// match history and player profiles.
type MatchHandler struct {
	Matches  *store.MatchStore
	Profiles *store.ProfileStore
	Log      *slog.Logger
}

func (h *MatchHandler) Report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var report session.MatchReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if report.Winner != session.WinnerHackers && report.Winner != session.WinnerImpostor {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown winner")
		return
	}
	if len(report.Participants) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "no participants")
		return
	}

	matchID := uuid.NewString()
	m := store.Match{
		ID:         matchID,
		RoomCode:   report.RoomCode,
		Winner:     string(report.Winner),
		SecretWord: report.SecretWord,
		Language:   report.Language,
		Duration:   time.Duration(report.DurationSeconds) * time.Second,
	}

	players := make([]store.MatchPlayer, 0, len(report.Participants))
	for _, p := range report.Participants {
		players = append(players, store.MatchPlayer{
			MatchID:     matchID,
			UserID:      p.UserID,
			PlayerName:  p.Name,
			WasImpostor: p.WasImpostor,
			Won:         p.Won,
			Eliminated:  p.Eliminated,
		})
	}

	if err := h.Matches.Create(r.Context(), m, players); err != nil {
		h.log().Error("match insert failed", "room", report.RoomCode, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to record match")
		return
	}

	// profile updates are best effort; the match row is the ledger
	for _, p := range report.Participants {
		if p.UserID == "" {
			continue
		}
		if err := h.Profiles.RecordResult(r.Context(), p.UserID, p.Won, p.WasImpostor); err != nil {
			h.log().Error("profile update failed", "user", p.UserID, "err", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"matchId": matchID})
}

func (h *MatchHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
