package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/model"
	"github.com/sakif/poemblog/internal/repository"
)

// UserRepository implements repository.UserRepository on SQLite.
type UserRepository struct {
	db *DB
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a SQLite-backed user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, identity_hash, status, avatar_url, member_since`

// Create inserts a new user and fills in its ID. A uniqueness violation on
// username or identity_hash comes back as apperror.ErrConflict — the caller
// decides whether that means "username taken" or a concurrent first login.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now().UTC()
	}

	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx,
			`INSERT INTO users (username, identity_hash, status, avatar_url, member_since)
			 VALUES (?, ?, ?, ?, ?)`,
			user.Username, user.IdentityHash, user.Status, user.AvatarURL, user.MemberSince,
		)
	})
	if err != nil {
		if isConstraint(err) {
			return apperror.Conflict("user already exists")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.scanOne(ctx, `WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return user, nil
}

func (r *UserRepository) GetByIdentityHash(ctx context.Context, hash string) (*model.User, error) {
	user, err := r.scanOne(ctx, `WHERE identity_hash = ?`, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundNamed("user", "identity")
		}
		return nil, fmt.Errorf("sqlite: getting user by identity hash: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := r.scanOne(ctx, `WHERE username = ?`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundNamed("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return user, nil
}

// Finalize atomically sets the chosen username and flips the user to
// established. The WHERE clause restricts the update to a still-provisional
// row, so a second finalize matches nothing and reports not-found; a
// username collision surfaces as conflict from the UNIQUE constraint.
func (r *UserRepository) Finalize(ctx context.Context, identityHash, username string) error {
	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx,
			`UPDATE users SET username = ?, status = ?
			 WHERE identity_hash = ? AND status = ?`,
			username, model.StatusEstablished, identityHash, model.StatusProvisional,
		)
	})
	if err != nil {
		if isConstraint(err) {
			return apperror.Conflict("username taken")
		}
		return fmt.Errorf("sqlite: finalizing username %q: %w", username, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFoundNamed("provisional user", "identity")
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	})
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

func (r *UserRepository) scanOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users `+where, arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.IdentityHash,
		&u.Status,
		&u.AvatarURL,
		&u.MemberSince,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
