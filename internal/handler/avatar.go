package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/poemblog/internal/avatar"
	"github.com/sakif/poemblog/internal/model"
)

// UserLookup is the slice of the user repository the avatar handler needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// AvatarHandler serves user avatars: the provider picture when one is on
// record, otherwise a deterministic generated letter avatar.
type AvatarHandler struct {
	users  UserLookup
	logger *slog.Logger
}

// NewAvatarHandler creates an AvatarHandler.
func NewAvatarHandler(users UserLookup, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{
		users:  users,
		logger: logger,
	}
}

// Get resolves /avatar/{username}. Unknown users are 404 — avatars exist only
// for real accounts.
func (h *AvatarHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if user.AvatarURL != "" {
		http.Redirect(w, r, user.AvatarURL, http.StatusFound)
		return
	}

	png, err := avatar.Generate(user.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// The generated image depends only on the username, which never changes
	// once established, so it can be cached hard.
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.Error("failed to write avatar", slog.String("error", err.Error()))
	}
}
