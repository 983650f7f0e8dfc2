package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/feed"
	"github.com/sakif/poemblog/internal/model"
	"github.com/sakif/poemblog/internal/repository"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 10000
)

// PostService owns post reads and the mutation rules: who may like, edit,
// and delete. Every mutation resolves its checks — existence first, then
// authorization — before touching the store, so a rejected call never
// mutates anything, and "absent" is always distinguishable from
// "present but forbidden".
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
}

// NewPostService creates a PostService.
func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		logger: logger,
	}
}

// Feed returns all posts in the order given by the criterion.
func (s *PostService) Feed(ctx context.Context, criterion feed.Criterion) ([]model.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return feed.Rank(posts, criterion), nil
}

// Profile returns the actor's own posts, ranked with the same ranker as the
// global feed — only the input set differs.
func (s *PostService) Profile(ctx context.Context, actor *model.User, criterion feed.Criterion) ([]model.Post, error) {
	if err := requireEstablished(actor); err != nil {
		return nil, err
	}

	posts, err := s.posts.ListByAuthor(ctx, actor.Username)
	if err != nil {
		s.logger.Error("failed to list posts by author",
			slog.String("author", actor.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing posts by author: %w", err)
	}
	return feed.Rank(posts, criterion), nil
}

// GetByID retrieves a single post.
func (s *PostService) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// Create validates and saves a new post authored by the actor. The post
// carries a denormalized copy of the actor's username.
func (s *PostService) Create(ctx context.Context, actor *model.User, title, content string) (*model.Post, error) {
	if err := requireEstablished(actor); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if err := validatePostFields(title, content); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:   title,
		Content: content,
		Author:  actor.Username,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("author", actor.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.String("author", post.Author),
	)

	return post, nil
}

// Edit replaces a post's title and content. Only the author may edit; the
// timestamp moves to the edit time and the edited flag is set for good.
func (s *PostService) Edit(ctx context.Context, actor *model.User, id int64, title, content string) (*model.Post, error) {
	if err := requireEstablished(actor); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if err := validatePostFields(title, content); err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Author != actor.Username {
		return nil, apperror.Forbidden("only the author can edit this post")
	}

	post.Title = title
	post.Content = content
	post.Timestamp = time.Now().UTC()
	post.Edited = true

	if err := s.posts.Update(ctx, post); err != nil {
		s.logger.Error("failed to update post",
			slog.Int64("postID", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post edited", slog.Int64("postID", id))

	return post, nil
}

// Delete removes a post. Only the author may delete. A post that is already
// gone — including one lost to a concurrent delete — reports not-found.
func (s *PostService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if err := requireEstablished(actor); err != nil {
		return err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Author != actor.Username {
		return apperror.Forbidden("only the author can delete this post")
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("post deleted",
		slog.Int64("postID", id),
		slog.String("author", actor.Username),
	)

	return nil
}

// Like increments a post's like counter. Self-likes are always rejected.
// There is no per-actor ledger: repeated likes from the same actor each
// increment the counter, matching the reference behavior.
func (s *PostService) Like(ctx context.Context, actor *model.User, id int64) error {
	if err := requireEstablished(actor); err != nil {
		return err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Author == actor.Username {
		return apperror.Forbidden("you cannot like your own post")
	}

	return s.posts.IncrementLikes(ctx, id)
}

// requireEstablished is the actor predicate shared by every mutation: a
// verified, established identity. The HTTP middleware enforces the same
// gate, but the service does not rely on being called from HTTP.
func requireEstablished(actor *model.User) error {
	if actor == nil {
		return apperror.Unauthorized("must log in")
	}
	if actor.Provisional() {
		return apperror.Forbidden("choose a username before continuing")
	}
	return nil
}

func validatePostFields(title, content string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if content == "" {
		return apperror.ValidationFailed("content", "content is required")
	}
	if len(content) > MaxContentLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	return nil
}
