package api

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/posai/scan-gateway/internal/store"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	PlanType string `json:"plan_type"`
}

// handleLogin verifies credentials and issues a bearer token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	plan := user.PlanType
	if user.PlanExpiresAt != nil && user.PlanExpiresAt.Before(time.Now()) {
		plan = "expired"
	}

	token, err := s.auth.Issue(user.ID, user.Username, req.DeviceID, plan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if req.DeviceID != "" {
		// Best-effort: the login still succeeds if this write fails.
		_ = s.store.UpdateUserDevice(r.Context(), user.ID, req.DeviceID)
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		PlanType: plan,
	})
}
