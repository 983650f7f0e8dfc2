// Package service contains the business logic layer: the identity resolver
// that reconciles an external OAuth principal with a local user record, and
// the post service that enforces the mutation rules. Handlers parse HTTP and
// delegate here; repositories do the storage. Neither concern leaks across.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/model"
	"github.com/sakif/poemblog/internal/repository"
)

const MaxUsernameLength = 32

// HashPrincipal computes the one-way identity hash for an external OAuth
// subject id. SHA-256 is deterministic, so a returning principal can be
// looked up by hash, and collision-resistant, so two principals never share
// a record. The raw subject id is never persisted.
func HashPrincipal(externalID string) string {
	sum := sha256.Sum256([]byte(externalID))
	return hex.EncodeToString(sum[:])
}

// IdentityService resolves external principals to local users, gates the
// one-time username selection, and runs the account-deletion cascade.
type IdentityService struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	logger *slog.Logger
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(users repository.UserRepository, posts repository.PostRepository, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		posts:  posts,
		logger: logger,
	}
}

// Resolution is the result of resolving an external principal.
type Resolution struct {
	User        *model.User
	Provisional bool
}

// Resolve maps an external OAuth subject id to a local user, provisioning a
// placeholder on first sight. The new record's username is the identity hash
// itself — a placeholder that satisfies the uniqueness constraint until the
// human picks a real name — and its status is provisional.
//
// Resolve is idempotent for a returning principal. Two concurrent first
// logins for the same principal race on the identity_hash UNIQUE constraint;
// the loser re-reads the winner's row instead of failing, so a duplicate
// user is never invented.
func (s *IdentityService) Resolve(ctx context.Context, externalID, avatarURL string) (*Resolution, error) {
	if externalID == "" {
		return nil, apperror.Unauthorized("missing external principal")
	}

	hash := HashPrincipal(externalID)

	user, err := s.users.GetByIdentityHash(ctx, hash)
	if err == nil {
		return &Resolution{User: user, Provisional: user.Provisional()}, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: looking up principal: %w", err)
	}

	// First sight of this principal: provision a placeholder user.
	user = &model.User{
		Username:     hash,
		IdentityHash: hash,
		Status:       model.StatusProvisional,
		AvatarURL:    avatarURL,
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		// Lost a concurrent first-login race; the row exists now.
		user, err = s.users.GetByIdentityHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("service/identity: re-reading after create race: %w", err)
		}
		return &Resolution{User: user, Provisional: user.Provisional()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/identity: provisioning user: %w", err)
	}

	s.logger.Info("provisional user created", slog.Int64("userID", user.ID))

	return &Resolution{User: user, Provisional: true}, nil
}

// FinalizeUsername performs the one-time username selection for the
// provisional user matching identityHash.
//
// Rejections, in order: invalid name (validation), name taken by another
// user (conflict, case-sensitive exact match), caller already established
// (conflict — finalize happens at most once, re-submitting even the same
// name is rejected). Nothing is mutated on any rejection path.
func (s *IdentityService) FinalizeUsername(ctx context.Context, identityHash, chosen string) (*model.User, error) {
	chosen = strings.TrimSpace(chosen)
	if chosen == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(chosen) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if strings.ContainsAny(chosen, "/ \t\n") {
		return nil, apperror.ValidationFailed("username", "username must not contain spaces or slashes")
	}

	user, err := s.users.GetByIdentityHash(ctx, identityHash)
	if err != nil {
		return nil, err
	}
	if !user.Provisional() {
		return nil, apperror.Conflict("username already chosen")
	}

	// Pre-check for a friendlier rejection; the UNIQUE constraint still
	// backstops a race between two finalizes choosing the same name.
	if _, err := s.users.GetByUsername(ctx, chosen); err == nil {
		return nil, apperror.Conflict("username taken")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: checking username availability: %w", err)
	}

	if err := s.users.Finalize(ctx, identityHash, chosen); err != nil {
		return nil, err
	}

	s.logger.Info("username finalized",
		slog.Int64("userID", user.ID),
		slog.String("username", chosen),
	)

	user.Username = chosen
	user.Status = model.StatusEstablished
	return user, nil
}

// DeleteAccount removes every post authored by the user, then the user row.
// The caller is responsible for invalidating the session afterwards. Posts
// go first so a failure between the two steps never leaves posts whose
// author no longer resolves.
func (s *IdentityService) DeleteAccount(ctx context.Context, user *model.User) error {
	if user == nil {
		return apperror.Unauthorized("must log in")
	}

	deleted, err := s.posts.DeleteByAuthor(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("service/identity: deleting posts for %q: %w", user.Username, err)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("service/identity: deleting user %d: %w", user.ID, err)
	}

	s.logger.Info("account deleted",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.Int64("postsDeleted", deleted),
	)

	return nil
}
