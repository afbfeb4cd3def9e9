package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/catalog"
	"github.com/beaconcoach/beacon/internal/db"
)

// ListSessions handles GET /v1/sessions?limit=&offset=.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 50)

	sessions, err := h.sessions.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*db.RecordedSession{}
	}

	h.writeSuccess(w, map[string]any{"sessions": sessions})
}

// SyncProducts handles POST /v1/sync/products. With a body it is the
// inbound product webhook; with an empty body it triggers a full pull
// from the platform API.
func (h *Handler) SyncProducts(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		h.writeError(w, http.StatusServiceUnavailable, "catalog sync is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if len(body) == 0 {
		sum, err := h.sync.SyncProducts(r.Context())
		if err != nil {
			h.logger.Error("product sync failed", zap.Error(err))
			h.writeError(w, http.StatusBadGateway, "product sync failed: "+err.Error())
			return
		}
		h.writeSuccess(w, map[string]any{"summary": sum})
		return
	}

	product, err := catalog.ParseProductWebhook(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sum catalog.Summary
	h.sync.UpsertProduct(r.Context(), product, &sum)

	h.writeSuccess(w, map[string]any{"summary": sum})
}

type syncSessionsRequest struct {
	Sessions []catalog.SessionInput `json:"sessions"`
}

// SyncSessions handles POST /v1/sync/sessions with an explicit list of
// session objects.
func (h *Handler) SyncSessions(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		h.writeError(w, http.StatusServiceUnavailable, "catalog sync is not configured")
		return
	}

	var req syncSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if len(req.Sessions) == 0 {
		h.writeError(w, http.StatusBadRequest, "sessions list is empty")
		return
	}

	sum := h.sync.SyncSessions(r.Context(), req.Sessions)
	h.writeSuccess(w, map[string]any{"summary": sum})
}

type syncURLsRequest struct {
	URLs []string `json:"urls"`
}

// SyncURLs handles POST /v1/sync/urls: scrape each page title, upsert
// by URL.
func (h *Handler) SyncURLs(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		h.writeError(w, http.StatusServiceUnavailable, "catalog sync is not configured")
		return
	}

	var req syncURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if len(req.URLs) == 0 {
		h.writeError(w, http.StatusBadRequest, "urls list is empty")
		return
	}

	sum := h.sync.SyncURLs(r.Context(), req.URLs)
	h.writeSuccess(w, map[string]any{"summary": sum})
}

// SyncContacts handles POST /v1/sync/contacts: import tagged platform
// contacts as hosted-auth users.
func (h *Handler) SyncContacts(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		h.writeError(w, http.StatusServiceUnavailable, "contact sync is not configured")
		return
	}

	sum, err := h.sync.SyncContacts(r.Context())
	if err != nil {
		h.logger.Error("contact sync failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "contact sync failed: "+err.Error())
		return
	}

	h.writeSuccess(w, map[string]any{"summary": sum})
}
