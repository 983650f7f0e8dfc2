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

// PostRepository implements repository.PostRepository on SQLite.
type PostRepository struct {
	db *DB
}

var _ repository.PostRepository = (*PostRepository)(nil)

// NewPostRepository creates a SQLite-backed post repository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, title, content, author, timestamp, edited, likes`

// Create inserts a new post and fills in its ID and timestamp.
func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now().UTC()
	}

	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx,
			`INSERT INTO posts (title, content, author, timestamp, edited, likes)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			post.Title, post.Content, post.Author, post.Timestamp, post.Edited, post.Likes,
		)
	})
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new post id: %w", err)
	}
	post.ID = id

	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Author, &p.Timestamp, &p.Edited, &p.Likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return &p, nil
}

// List returns every post. Ordering is left to the feed ranker.
func (r *PostRepository) List(ctx context.Context) ([]model.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts`)
}

// ListByAuthor returns every post with the given denormalized author name.
func (r *PostRepository) ListByAuthor(ctx context.Context, author string) ([]model.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts WHERE author = ?`, author)
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Author, &p.Timestamp, &p.Edited, &p.Likes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// Update replaces title, content, timestamp and the edited flag of an
// existing post. Author and likes are never touched here.
func (r *PostRepository) Update(ctx context.Context, post *model.Post) error {
	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx,
			`UPDATE posts SET title = ?, content = ?, timestamp = ?, edited = ?
			 WHERE id = ?`,
			post.Title, post.Content, post.Timestamp, post.Edited, post.ID,
		)
	})
	if err != nil {
		return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", post.ID)
	}

	return nil
}

// Delete removes a post. Deleting an already-deleted post reports not-found,
// which is exactly what a lost race between two concurrent deletes should
// look like.
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	})
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}

// DeleteByAuthor removes every post by the author. Zero deletions is not an
// error — a user may never have posted.
func (r *PostRepository) DeleteByAuthor(ctx context.Context, author string) (int64, error) {
	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx, `DELETE FROM posts WHERE author = ?`, author)
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting posts by %q: %w", author, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// IncrementLikes bumps the like counter in a single store-side update, the
// store's atomic unit of mutation — no read-modify-write from the app.
func (r *PostRepository) IncrementLikes(ctx context.Context, id int64) error {
	result, err := withRetry(ctx, func() (sql.Result, error) {
		return r.db.conn.ExecContext(ctx,
			`UPDATE posts SET likes = likes + 1 WHERE id = ?`, id)
	})
	if err != nil {
		return fmt.Errorf("sqlite: incrementing likes on post %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}
