package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/auth"
	"github.com/sakif/poemblog/internal/model"
	"github.com/sakif/poemblog/internal/service"
)

// stateCookie holds the OAuth CSRF state between the redirect to Google and
// the callback. Short-lived: the flow either completes or is abandoned.
const (
	stateCookie   = "oauth_state"
	stateLifetime = 10 * time.Minute
)

// OAuthProvider is the slice of the Google provider the auth handler needs.
// Tests substitute a fake so no network is involved.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler serves the login flow, the one-time username selection, and
// session lifecycle endpoints.
type AuthHandler struct {
	identity *service.IdentityService
	provider OAuthProvider
	tokens   *auth.TokenService
	logger   *slog.Logger

	// secureCookies should be true whenever the app is served over HTTPS.
	secureCookies bool
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(identity *service.IdentityService, provider OAuthProvider, tokens *auth.TokenService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		identity:      identity,
		provider:      provider,
		tokens:        tokens,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// userView is the API shape of a user. Provisional is surfaced as an explicit
// flag so the client knows to route the user to the username selection step.
type userView struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatarUrl"`
	MemberSince time.Time `json:"memberSince"`
	Provisional bool      `json:"provisional"`
}

func viewOf(u *model.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
		MemberSince: u.MemberSince,
		Provisional: u.Provisional(),
	}
}

// GoogleLogin starts the OAuth flow: generates a random state, stores it in
// a short-lived cookie, and redirects to Google's consent screen.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback completes the OAuth flow. It verifies the CSRF state,
// exchanges the code for the Google subject, resolves the subject to a local
// user, and issues the session cookie. Provisional users land on the
// username selection page; established users go home.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, h.logger, apperror.Unauthorized("OAuth state mismatch"))
		return
	}
	h.clearCookie(w, stateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing authorization code"))
		return
	}

	gUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("OAuth exchange failed", slog.String("error", err.Error()))
		writeError(w, h.logger, apperror.Unauthorized("could not verify Google identity"))
		return
	}

	res, err := h.identity.Resolve(r.Context(), gUser.Sub, gUser.Picture)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.tokens.Generate(res.User.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, token)

	if res.Provisional {
		http.Redirect(w, r, "/username", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// FinalizeUsername performs the one-time username selection for the logged-in
// provisional user. Conflicts (name taken, already established) come back as
// 409 so the client can prompt again.
func (h *AuthHandler) FinalizeUsername(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("must log in"))
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	updated, err := h.identity.FinalizeUsername(r.Context(), user.IdentityHash, req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(updated))
}

// Me returns the current user, provisional or not.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("must log in"))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

// Logout clears the session cookie. The JWT itself simply expires; there is
// no server-side session state to revoke.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w, auth.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes the caller's posts and account, then ends the
// session. Routed behind RequireEstablished.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("must log in"))
		return
	}

	if err := h.identity.DeleteAccount(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.clearCookie(w, auth.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
