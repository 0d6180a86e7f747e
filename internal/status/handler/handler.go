// Package handler exposes the status query API over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veristat/internal/platform/middleware"
	"veristat/internal/status/models"
	"veristat/internal/status/service"
	"veristat/pkg/domain"
	dErrors "veristat/pkg/domain-errors"
	"veristat/pkg/platform/httputil"
	mwauth "veristat/pkg/platform/middleware/auth"
	strutil "veristat/pkg/platform/strings"
)

// requestTimeout bounds every status route. Batch queries block through the
// debounce window plus paced fetches, so this is generous.
const requestTimeout = 30 * time.Second

// Service is the facade slice the handler consumes.
type Service interface {
	RequestMany(ctx context.Context, ids []domain.ClientID) (<-chan service.Snapshot, error)
	RequestOne(ctx context.Context, id domain.ClientID) (models.StatusInfo, error)
	ReadCached(ctx context.Context, ids []domain.ClientID) (service.Snapshot, error)
	Invalidate(ctx context.Context, id domain.ClientID) error
	InvalidateAll(ctx context.Context) error
	IsVerified(ctx context.Context, id domain.ClientID) (bool, error)
}

// Handler serves the status endpoints.
type Handler struct {
	status       Service
	logger       *slog.Logger
	jwtValidator mwauth.JWTValidator
}

// New creates a status Handler.
func New(status Service, logger *slog.Logger, jwtValidator mwauth.JWTValidator) *Handler {
	return &Handler{status: status, logger: logger, jwtValidator: jwtValidator}
}

// Register mounts the status routes. Reads are open to the console;
// invalidation mutates shared state and requires an authenticated operator.
func (h *Handler) Register(r chi.Router) {
	statusRouter := chi.NewRouter()
	statusRouter.Use(middleware.Recovery(h.logger))
	statusRouter.Use(middleware.RequestID)
	statusRouter.Use(middleware.Logger(h.logger))
	statusRouter.Use(middleware.Timeout(requestTimeout))

	statusRouter.Post("/status/query", h.handleQuery)
	statusRouter.Get("/status/{clientID}", h.handleGet)
	statusRouter.Get("/status/{clientID}/cached", h.handleGetCached)
	statusRouter.Get("/status/{clientID}/verified", h.handleVerified)

	statusRouter.Group(func(admin chi.Router) {
		admin.Use(mwauth.RequireAuth(h.jwtValidator, h.logger))
		admin.Delete("/status/{clientID}", h.handleInvalidate)
		admin.Delete("/status", h.handleInvalidateAll)
	})

	r.Mount("/", statusRouter)
}

type queryRequest struct {
	ClientIDs []string `json:"client_ids"`
}

type queryResponse struct {
	Statuses map[string]models.StatusInfo `json:"statuses"`
}

// handleQuery resolves a batch of clients and returns the final snapshot.
// Intermediate snapshots are drained; HTTP callers only ever see the settled
// view, the incremental stream is for in-process subscribers.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[queryRequest](w, r, h.logger)
	if !ok {
		return
	}

	ids, err := parseClientIDs(req.ClientIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshots, err := h.status.RequestMany(ctx, ids)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var final service.Snapshot
	for snap := range snapshots {
		final = snap
	}
	if ctx.Err() != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "status resolution timed out"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, queryResponse{Statuses: keyByString(final)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status, err := h.status.RequestOne(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// handleGetCached reads the cache without triggering a fetch; an absent or
// stale entry is a 404, not a resolution.
func (h *Handler) handleGetCached(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.status.ReadCached(r.Context(), []domain.ClientID{id})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, ok := snap[id]
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no fresh cached status"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

type verifiedResponse struct {
	ClientID string `json:"client_id"`
	Verified bool   `json:"verified"`
}

func (h *Handler) handleVerified(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verified, err := h.status.IsVerified(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifiedResponse{ClientID: id.String(), Verified: verified})
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.status.Invalidate(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "status invalidated by operator",
		"client_id", id,
		"user_id", mwauth.GetUserID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if err := h.status.InvalidateAll(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "status cache cleared by operator",
		"user_id", mwauth.GetUserID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func parseClientIDs(raw []string) ([]domain.ClientID, error) {
	raw = strutil.DedupeAndTrim(raw)
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "client_ids must not be empty")
	}
	ids := make([]domain.ClientID, 0, len(raw))
	for _, s := range raw {
		id, err := domain.ParseClientID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func keyByString(snap service.Snapshot) map[string]models.StatusInfo {
	out := make(map[string]models.StatusInfo, len(snap))
	for id, status := range snap {
		out[id.String()] = status
	}
	return out
}
