package httpapp

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/adfreecast/internal/http/dto"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := dto.HealthResponse{Status: "ok", Database: "ok", Processor: "ok"}
	status := http.StatusOK

	if err := h.Library.PingContext(r.Context()); err != nil {
		h.Logger.Error("Database ping failed", "error", err)
		resp.Status, resp.Database = "degraded", "unreachable"
		status = http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if health, err := h.Processor.Health(ctx); err != nil {
		h.Logger.Warn("Processor health check failed", "error", err)
		resp.Status, resp.Processor = "degraded", "unreachable"
	} else {
		resp.Processor = health.Status
		resp.Backend = health.Backend
		resp.Jobs = health.Jobs
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Subscriptions.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req dto.SubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	sub, n, err := h.Subscriptions.Subscribe(r.Context(), req.FeedURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, dto.SubscribeResponse{Subscription: sub, Episodes: n})
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.Subscriptions.Unsubscribe(r.Context(), chi.URLParam(r, "podcastID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RefreshSubscription(w http.ResponseWriter, r *http.Request) {
	n, err := h.Subscriptions.Refresh(r.Context(), chi.URLParam(r, "podcastID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.CountResponse{Count: int64(n)})
}

func (h *Handler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	eps, err := h.Subscriptions.Episodes(r.Context(), chi.URLParam(r, "podcastID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, eps)
}

func (h *Handler) EnqueuePodcast(w http.ResponseWriter, r *http.Request) {
	var req dto.EnqueuePodcastRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	n, err := h.Queue.EnqueuePodcast(r.Context(), chi.URLParam(r, "podcastID"), req.Priority)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.CountResponse{Count: int64(n)})
}

func (h *Handler) GetProcessing(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Queue.Processing(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Queue.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewQueueResponse(st))
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req dto.EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	if err := h.Queue.Enqueue(r.Context(), req.EpisodeID, req.Priority, req.Retry); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.Queue.Processing(r.Context(), strings.TrimSpace(req.EpisodeID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, rec)
}

func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.Queue.Clear(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func (h *Handler) RemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.Queue.Remove(r.Context(), r.URL.Query().Get("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	n, err := h.Queue.Recover(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if errs := dto.ValidateSettingKey(key); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	value, err := h.SettingsRepo.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.SettingResponse{Key: key, Value: value})
}

// PutSetting stores a feed override. An empty value removes it.
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if errs := dto.ValidateSettingKey(key); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	var req dto.SettingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	value := strings.TrimSpace(req.Value)
	var err error
	if value == "" {
		err = h.SettingsRepo.Delete(r.Context(), key)
	} else {
		err = h.SettingsRepo.Set(r.Context(), key, value)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.SettingResponse{Key: key, Value: value})
}
