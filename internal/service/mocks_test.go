package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/model"
	"github.com/sakif/poemblog/internal/repository"
)

// In-memory fakes for both repositories. They enforce the same uniqueness
// and not-found semantics as the SQLite implementation so the services can
// be tested without a database.

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username || u.IdentityHash == user.IdentityHash {
			return apperror.Conflict("user already exists")
		}
	}
	m.nextID++
	user.ID = m.nextID
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) GetByIdentityHash(_ context.Context, hash string) (*model.User, error) {
	for _, u := range m.users {
		if u.IdentityHash == hash {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFoundNamed("user", "identity")
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFoundNamed("user", username)
}

func (m *mockUserRepo) Finalize(_ context.Context, identityHash, username string) error {
	for _, u := range m.users {
		if u.Username == username {
			return apperror.Conflict("username taken")
		}
	}
	for _, u := range m.users {
		if u.IdentityHash == identityHash && u.Status == model.StatusProvisional {
			u.Username = username
			u.Status = model.StatusEstablished
			return nil
		}
	}
	return apperror.NotFoundNamed("provisional user", "identity")
}

func (m *mockUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

type mockPostRepo struct {
	posts  map[int64]*model.Post
	nextID int64
}

var _ repository.PostRepository = (*mockPostRepo)(nil)

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[int64]*model.Post)}
}

func (m *mockPostRepo) Create(_ context.Context, post *model.Post) error {
	m.nextID++
	post.ID = m.nextID
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	copied := *p
	return &copied, nil
}

func (m *mockPostRepo) List(_ context.Context) ([]model.Post, error) {
	out := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPostRepo) ListByAuthor(_ context.Context, author string) ([]model.Post, error) {
	var out []model.Post
	for _, p := range m.posts {
		if p.Author == author {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPostRepo) Update(_ context.Context, post *model.Post) error {
	if _, ok := m.posts[post.ID]; !ok {
		return apperror.NotFound("post", post.ID)
	}
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	return nil
}

func (m *mockPostRepo) DeleteByAuthor(_ context.Context, author string) (int64, error) {
	var deleted int64
	for id, p := range m.posts {
		if p.Author == author {
			delete(m.posts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockPostRepo) IncrementLikes(_ context.Context, id int64) error {
	p, ok := m.posts[id]
	if !ok {
		return apperror.NotFound("post", id)
	}
	p.Likes++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// establishedUser seeds an established user directly into the mock repo.
func establishedUser(t *testing.T, users *mockUserRepo, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		IdentityHash: HashPrincipal("ext-" + username),
		Status:       model.StatusEstablished,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user %q: %v", username, err)
	}
	return u
}
