// Package admin is the request/response surface consumed by the platform's
// HTTP layer: stream listing, flagging, and administrative termination.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/proctorlive/backend/internal/auth"
	"github.com/proctorlive/backend/internal/proctor"
)

const terminateReason = "Terminated by mentor"

// Handler exposes the coordinator over HTTP. All routes require a bearer
// token; termination additionally requires the admin role.
type Handler struct {
	verifier *auth.Verifier
	ctrl     *proctor.Controller
	log      *slog.Logger
}

func NewHandler(verifier *auth.Verifier, ctrl *proctor.Controller, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{verifier: verifier, ctrl: ctrl, log: log}
}

// Routes mounts the admin API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireObserver)
	r.Get("/streams", h.listStreams)
	r.Post("/streams/{sessionID}/flag", h.flagStream)
	r.With(h.requireAdmin).Delete("/streams/{sessionID}", h.terminateStream)
	return r
}

type identityKey struct{}

// requireObserver authenticates the bearer token and rejects learners; the
// admin surface is for observers only.
func (h *Handler) requireObserver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		identity, err := h.verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !identity.Role.CanObserve() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := r.Context().Value(identityKey{}).(auth.Identity)
		if identity.Role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"streams": h.ctrl.ListActiveStreams(),
	})
}

type flagRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) flagStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason required")
		return
	}
	if err := h.ctrl.Flag(r.Context(), sessionID, req.Reason); err != nil {
		if errors.Is(err, proctor.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "flag failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"flagged": true})
}

func (h *Handler) terminateStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !h.ctrl.Terminate(r.Context(), sessionID, terminateReason) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"terminated": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
