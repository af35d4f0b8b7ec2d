package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/store"
)

type FriendHandler struct {
	Friends *store.FriendStore
	Users   *store.UserStore
}

type friendRequest struct {
	UserID string `json:"userId"`
}

func (h *FriendHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, userID)
	case http.MethodPost:
		h.request(w, r, userID)
	case http.MethodPut:
		h.accept(w, r, userID)
	case http.MethodDelete:
		h.remove(w, r, userID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET, POST, PUT or DELETE")
	}
}

func (h *FriendHandler) list(w http.ResponseWriter, r *http.Request, userID string) {
	friends, err := h.Friends.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load friends")
		return
	}

	out := make([]map[string]any, 0, len(friends))
	for _, f := range friends {
		out = append(out, map[string]any{
			"userId":      f.UserID,
			"displayName": f.DisplayName,
			"status":      f.Status,
			"outgoing":    f.Requested,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": out})
}

func (h *FriendHandler) request(w http.ResponseWriter, r *http.Request, userID string) {
	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}
	if req.UserID == userID {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot befriend yourself")
		return
	}
	if _, err := h.Users.GetByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no such user")
		return
	}

	if err := h.Friends.Request(r.Context(), userID, req.UserID); err != nil {
		if errors.Is(err, store.ErrFriendRequestExists) {
			writeError(w, http.StatusConflict, "already_exists", "request already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to create request")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *FriendHandler) accept(w http.ResponseWriter, r *http.Request, userID string) {
	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}

	if err := h.Friends.Accept(r.Context(), userID, req.UserID); err != nil {
		if errors.Is(err, store.ErrFriendNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no pending request")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to accept request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendHandler) remove(w http.ResponseWriter, r *http.Request, userID string) {
	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}

	if err := h.Friends.Remove(r.Context(), userID, req.UserID); err != nil {
		if errors.Is(err, store.ErrFriendNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such friendship")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to remove friend")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
