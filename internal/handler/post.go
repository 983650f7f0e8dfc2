package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/auth"
	"github.com/sakif/poemblog/internal/feed"
	"github.com/sakif/poemblog/internal/service"
)

// PostHandler serves the feed, profile, and post CRUD endpoints.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:  posts,
		logger: logger,
	}
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Feed returns the global feed ranked by the ?sort= criterion. Unknown or
// missing criteria fall back to newest-first; sorting never fails.
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	criterion := feed.ParseCriterion(r.URL.Query().Get("sort"))

	posts, err := h.posts.Feed(r.Context(), criterion)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

// Profile returns the caller's own posts, ranked like the feed.
func (h *PostHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())
	criterion := feed.ParseCriterion(r.URL.Query().Get("sort"))

	posts, err := h.posts.Profile(r.Context(), actor, criterion)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

// Get returns a single post by id.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// Create publishes a new post authored by the caller.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	post, err := h.posts.Create(r.Context(), actor, req.Title, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// Edit replaces a post's title and content. Author-only.
func (h *PostHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())

	id, err := postID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	post, err := h.posts.Edit(r.Context(), actor, id, req.Title, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// Delete removes a post. Author-only.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())

	id, err := postID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.posts.Delete(r.Context(), actor, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Like increments a post's like counter. Self-likes are rejected.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())

	id, err := postID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.posts.Like(r.Context(), actor, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func postID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "invalid post id")
	}
	return id, nil
}
