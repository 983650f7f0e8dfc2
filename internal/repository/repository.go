// Package repository defines the storage contracts the services depend on.
// The concrete implementation lives in repository/sqlite; services only see
// these interfaces, tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/poemblog/internal/model"
)

// UserRepository is the durable store of user accounts. The store enforces
// the uniqueness of both username and identity hash; violations surface as
// apperror.ErrConflict.
type UserRepository interface {
	// Create inserts a new user and fills in its ID.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIdentityHash(ctx context.Context, hash string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// Finalize atomically sets the chosen username and flips the user
	// matching identityHash to established. This is the only username
	// mutation the store permits.
	Finalize(ctx context.Context, identityHash, username string) error
	Delete(ctx context.Context, id int64) error
}

// PostRepository is the durable store of posts. Listing returns posts in
// storage order; the feed ranker imposes the requested total order.
type PostRepository interface {
	// Create inserts a new post and fills in its ID.
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	List(ctx context.Context) ([]model.Post, error)
	ListByAuthor(ctx context.Context, author string) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
	// DeleteByAuthor removes every post by the author and returns how many
	// were deleted. Used by the account-deletion cascade.
	DeleteByAuthor(ctx context.Context, author string) (int64, error)
	// IncrementLikes bumps the like counter by one as a single atomic
	// store-side update.
	IncrementLikes(ctx context.Context, id int64) error
}
