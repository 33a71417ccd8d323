package httpapp

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/storage"
)

func (h *Handler) CombinedFeed(w http.ResponseWriter, r *http.Request) {
	eps, err := h.Library.ListAllReady(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := h.Publisher.CombinedFeed(r.Context(), eps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRSS(w, body)
}

func (h *Handler) PodcastFeed(w http.ResponseWriter, r *http.Request) {
	podcastID := chi.URLParam(r, "podcastID")
	sub, err := h.Library.GetSubscription(r.Context(), podcastID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	eps, err := h.Library.ListReadyForPodcast(r.Context(), podcastID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := h.Publisher.PodcastFeed(r.Context(), sub, eps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeRSS(w, body)
}

func writeRSS(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", constants.MimeTypeRSS)
	_, _ = w.Write([]byte(body))
}

// ServeAudio streams a processed file. Range requests are honoured so
// podcast players can seek.
func (h *Handler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	path, err := h.Audio.Path(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.Logger.Error("Failed to open audio", "path", path, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", storage.ContentTypeForName(name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
