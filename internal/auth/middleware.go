package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/model"
)

// SessionCookie is the name of the HttpOnly cookie carrying the JWT.
const SessionCookie = "token"

// UserSource is the lookup the guards need to turn a token subject into a
// live user record. Satisfied by repository.UserRepository.
type UserSource interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// contextKey is an unexported type for context keys so no other package can
// collide with or shadow our values.
type contextKey string

const userKey contextKey = "user"

// RequireUser enforces a verified identity: the session cookie must hold a
// valid token AND the referenced user must still exist. A stale token for a
// deleted user is treated as unauthenticated, not as a fault.
//
// Provisional users pass — use this on routes a user needs before choosing
// a username (the finalize endpoint itself, /api/me, logout).
func RequireUser(tokens *TokenService, users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := extractUser(r, tokens, users)
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireEstablished is RequireUser plus the username gate: a provisional
// user who has not completed the one-time username selection is rejected
// with a distinct outcome so the client can route them to the finalization
// step instead of the login page.
func RequireEstablished(tokens *TokenService, users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := extractUser(r, tokens, users)
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			if user.Provisional() {
				denyJSON(w, http.StatusForbidden, "provisional_identity", "choose a username before continuing")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// OptionalUser attaches the user to the context if a valid session is
// present, but never blocks the request. Used on public reads like the
// global feed.
func OptionalUser(tokens *TokenService, users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := extractUser(r, tokens, users); err == nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext retrieves the authenticated user from the request context.
// Returns (nil, false) when the request is anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

func withUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// denyJSON writes a rejection in the same {error, message} shape the handler
// layer uses, so guarded routes never answer with a text/plain body.
func denyJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"message":%q}`, code, message)
}

// extractUser reads the session cookie, validates the token, and loads the
// user row. Any failure — missing cookie, bad token, deleted user — comes
// back as a plain error; the caller decides whether that means 401 or
// "anonymous".
func extractUser(r *http.Request, tokens *TokenService, users UserSource) (*model.User, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, err
	}

	userID, err := tokens.Validate(cookie.Value)
	if err != nil {
		return nil, err
	}

	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errors.New("auth: session references a deleted user")
		}
		return nil, err
	}

	return user, nil
}
