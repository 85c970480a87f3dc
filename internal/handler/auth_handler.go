package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/session"

	"go.uber.org/zap"
)

// ============================================================
// Auth — POST /v1/auth/login, POST /v1/auth/logout, GET /v1/me
// ============================================================

func loginHandler(sessions *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		resp, err := sessions.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func logoutHandler(sessions *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		sessions.Logout(ctx, SessionIDFromContext(ctx))
		w.WriteHeader(http.StatusNoContent)
	}
}

func currentUserHandler(sessions *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		user, err := sessions.CurrentUser(SessionIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
