package statusserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/internal/core/history"
	"github.com/oxleyk/drawhub/internal/core/session"
)

// Handler routes status API requests.
type Handler struct {
	registry *session.Registry
	metrics  http.Handler
	logger   *slog.Logger
	mux      *http.ServeMux
}

func newHandler(registry *session.Registry, metrics http.Handler, logger *slog.Logger) *Handler {
	h := &Handler{
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)

	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}

	h.mux.HandleFunc("GET /api/v1/sessions", h.handleListSessions)
	h.mux.HandleFunc("POST /api/v1/sessions", h.handleOpenSession)
	h.mux.HandleFunc("GET /api/v1/sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.handleCloseSession)
	h.mux.HandleFunc("GET /api/v1/sessions/{id}/invites", h.handleListInvites)
	h.mux.HandleFunc("GET /api/v1/sessions/{id}/bans", h.handleListBans)
	h.mux.HandleFunc("POST /api/v1/sessions/{id}/bans", h.handleAddBan)
	h.mux.HandleFunc("DELETE /api/v1/sessions/{id}/bans/{banID}", h.handleRemoveBan)
}

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": h.registry.Count(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListSessions handles GET /api/v1/sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	live := h.registry.List()
	summaries := make([]SessionSummary, 0, len(live))

	for _, s := range live {
		var st history.Status
		err := h.registry.Dispatch(r.Context(), s.ID, func(hist *history.History) error {
			st = hist.Describe()
			return nil
		})
		if err != nil {
			// The session may have been removed between List and
			// Dispatch. Skip it rather than failing the listing.
			continue
		}
		summaries = append(summaries, SessionSummary{
			ID:          st.ID,
			StartedAt:   st.StartedAt,
			SizeBytes:   st.SizeBytes,
			LastIndex:   st.LastIndex,
			InviteCount: st.InviteCount,
			Resetting:   st.ResetStream != nil,
		})
	}

	h.writeJSON(w, r, http.StatusOK, ListSessionsResponse{
		Sessions: summaries,
		Total:    len(summaries),
	})
}

// handleOpenSession handles POST /api/v1/sessions.
func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, http.StatusBadRequest, "DH-SYS-4000", "invalid request body", nil)
			return
		}
	}

	var (
		s   *session.Session
		err error
	)
	if req.ID == "" {
		s, err = h.registry.Create(r.Context())
	} else {
		s, err = h.registry.Open(r.Context(), req.ID)
	}
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, s.History.Describe())
}

// handleGetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var st history.Status
	err := h.registry.Dispatch(r.Context(), sessionID, func(hist *history.History) error {
		st = hist.Describe()
		return nil
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, st)
}

// handleCloseSession handles DELETE /api/v1/sessions/{id}.
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if !h.registry.Remove(sessionID) {
		h.handleDomainError(w, r, domain.ErrSessionNotFound.WithDetails(sessionID))
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"removed": true})
}

// handleListInvites handles GET /api/v1/sessions/{id}/invites.
// Secrets are included only when ?full=true is given.
func (h *Handler) handleListInvites(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	full := r.URL.Query().Get("full") == "true"

	var invites []map[string]any
	err := h.registry.Dispatch(r.Context(), sessionID, func(hist *history.History) error {
		invites = hist.DescribeInvites(full)
		return nil
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, InvitesResponse{
		SessionID: sessionID,
		Invites:   invites,
	})
}

// handleListBans handles GET /api/v1/sessions/{id}/bans.
func (h *Handler) handleListBans(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var bans []*domain.BanEntry
	err := h.registry.Dispatch(r.Context(), sessionID, func(hist *history.History) error {
		bans = hist.Bans()
		return nil
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, BansResponse{
		SessionID: sessionID,
		Bans:      bans,
	})
}

// handleAddBan handles POST /api/v1/sessions/{id}/bans.
func (h *Handler) handleAddBan(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req AddBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "DH-SYS-4000", "invalid request body", nil)
		return
	}
	if req.AuthID == "" && req.ClientKey == "" {
		h.writeError(w, r, http.StatusBadRequest, "DH-ARG-1001", "ban needs an auth ID or client key", nil)
		return
	}

	var (
		entry *domain.BanEntry
		added bool
	)
	err := h.registry.Dispatch(r.Context(), sessionID, func(hist *history.History) error {
		entry, added = hist.AddBan(req.Username, req.AuthID, req.ClientKey, req.BannedBy)
		return nil
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	h.writeJSON(w, r, status, entry)
}

// handleRemoveBan handles DELETE /api/v1/sessions/{id}/bans/{banID}.
func (h *Handler) handleRemoveBan(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	banID, convErr := strconv.Atoi(r.PathValue("banID"))
	if convErr != nil {
		h.writeError(w, r, http.StatusBadRequest, "DH-ARG-1001", "ban ID must be numeric", nil)
		return
	}

	var removed bool
	err := h.registry.Dispatch(r.Context(), sessionID, func(hist *history.History) error {
		removed = hist.RemoveBan(banID)
		return nil
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, r, http.StatusNotFound, "DH-SESS-4040", "no such ban entry", nil)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"removed": true})
}

// writeJSON writes a JSON response with the standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewResponse(getRequestID(r), data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with the standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	response := NewErrorResponse(getRequestID(r), code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleDomainError converts domain errors to HTTP responses.
func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if code := domain.GetErrorCode(err); code != "" {
		h.writeError(w, r, errorCodeToHTTPStatus(code), code, err.Error(), nil)
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "DH-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4130"):
		return http.StatusRequestEntityTooLarge
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "DH-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// getRequestID extracts the request ID set by the RequestID middleware.
func getRequestID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
