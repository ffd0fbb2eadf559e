package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/errors"
	"github.com/hpungsan/tether/internal/pipeline"
	"github.com/hpungsan/tether/internal/store"
)

// Handlers contains HTTP route handlers for the connection API.
type Handlers struct {
	store     store.Store
	pipeline  *pipeline.Lazy
	selection store.Selection
	maxBody   int64
	logger    *slog.Logger
}

// HandleCreate handles POST /connections.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req, h.maxBody); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	c, err := h.store.Create(r.Context(), req.input())
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/connections/"+c.ID)
	renderJSON(w, http.StatusCreated, c)
}

// HandleList handles GET /connections.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.GetAll(r.Context())
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, all)
}

// HandleGet handles GET /connections/{id}.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, c)
}

// HandleUpdate handles PATCH /connections/{id}. Omitted fields keep their value.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req, h.maxBody); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	c, err := h.store.Update(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, c)
}

// HandleAnalyze handles POST /connections/{id}/analyze.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipeline.Get(r.Context(), connection.StepAnalyze)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	result, err := p.Analyze(r.Context(), r.PathValue("id"))
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandlePoster handles POST /connections/{id}/poster.
// With ?async=true the poster is generated in the background and the caller
// polls GET /connections/{id} until posterImageUrl is set.
func (h *Handlers) HandlePoster(w http.ResponseWriter, r *http.Request) {
	async, err := parseBoolParam(r, "async")
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	id := r.PathValue("id")
	p, err := h.pipeline.Get(r.Context(), connection.StepPoster)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	if async {
		c, err := p.StartPoster(r.Context(), id)
		if err != nil {
			renderError(w, r, h.logger, err)
			return
		}
		renderJSON(w, http.StatusAccepted, map[string]any{
			"status":     "pending",
			"connection": c,
		})
		return
	}

	result, err := p.Poster(r.Context(), id)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleFollowUp handles POST /connections/{id}/followup. Nothing is persisted.
func (h *Handlers) HandleFollowUp(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipeline.Get(r.Context(), connection.StepFollowUp)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	result, err := p.FollowUp(r.Context(), r.PathValue("id"))
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /healthz. The process is live either way; a degraded
// storage selection is reported so operators notice data is not durable.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.selection.Degraded {
		status = "degraded"
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"storage": h.selection,
	})
}

func parseBoolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.NewValidation(name + " must be a boolean")
	}
	return v, nil
}
