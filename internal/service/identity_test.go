package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/poemblog/internal/apperror"
	"github.com/sakif/poemblog/internal/model"
)

func newTestIdentityService(t *testing.T) (*IdentityService, *mockUserRepo, *mockPostRepo) {
	t.Helper()
	users := newMockUserRepo()
	posts := newMockPostRepo()
	return NewIdentityService(users, posts, testLogger()), users, posts
}

func TestResolve_FirstSightProvisionsPlaceholder(t *testing.T) {
	svc, _, _ := newTestIdentityService(t)

	res, err := svc.Resolve(context.Background(), "ext-123", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if !res.Provisional {
		t.Error("first resolve should return a provisional user")
	}
	if res.User.ID == 0 {
		t.Error("expected the new user to have an id")
	}
	if want := HashPrincipal("ext-123"); res.User.Username != want {
		t.Errorf("placeholder username = %q, want the identity hash %q", res.User.Username, want)
	}
	if res.User.Status != model.StatusProvisional {
		t.Errorf("status = %q, want provisional", res.User.Status)
	}
}

func TestResolve_RepeatIsIdempotent(t *testing.T) {
	svc, _, _ := newTestIdentityService(t)

	first, err := svc.Resolve(context.Background(), "ext-123", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := svc.Resolve(context.Background(), "ext-123", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if first.User.ID != second.User.ID {
		t.Errorf("repeat resolve returned a different user: %d vs %d", first.User.ID, second.User.ID)
	}
}

func TestResolve_DistinctPrincipalsGetDistinctUsers(t *testing.T) {
	svc, _, _ := newTestIdentityService(t)

	a, _ := svc.Resolve(context.Background(), "ext-aaa", "")
	b, _ := svc.Resolve(context.Background(), "ext-bbb", "")

	if a.User.ID == b.User.ID {
		t.Error("different principals resolved to the same user")
	}
}

// racingUserRepo simulates losing a concurrent first-login race: the loser's
// lookup runs before the winner's insert lands, so it misses once; the insert
// then collides with the winner's row.
type racingUserRepo struct {
	*mockUserRepo
	missed bool
}

func (r *racingUserRepo) GetByIdentityHash(ctx context.Context, hash string) (*model.User, error) {
	if !r.missed {
		r.missed = true
		return nil, apperror.NotFoundNamed("user", "identity")
	}
	return r.mockUserRepo.GetByIdentityHash(ctx, hash)
}

func TestResolve_LostCreateRaceReturnsWinner(t *testing.T) {
	users := &racingUserRepo{mockUserRepo: newMockUserRepo()}
	svc := NewIdentityService(users, newMockPostRepo(), testLogger())
	ctx := context.Background()

	hash := HashPrincipal("ext-123")
	winner := &model.User{Username: hash, IdentityHash: hash, Status: model.StatusProvisional}
	if err := users.mockUserRepo.Create(ctx, winner); err != nil {
		t.Fatalf("seeding winner: %v", err)
	}

	res, err := svc.Resolve(ctx, "ext-123", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if res.User.ID != winner.ID {
		t.Errorf("race loser resolved to user %d, want the winner's row %d", res.User.ID, winner.ID)
	}
	if !res.Provisional {
		t.Error("winner's row is provisional; resolution should report that")
	}
	if n := len(users.mockUserRepo.users); n != 1 {
		t.Errorf("store holds %d users, want 1 — the race must never invent a duplicate", n)
	}
}

func TestResolve_EmptyPrincipal(t *testing.T) {
	svc, _, _ := newTestIdentityService(t)

	_, err := svc.Resolve(context.Background(), "", "")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

// Scenario from the identity flow: ext-123 resolves provisional, finalizes
// as carol, and afterwards resolves as the established user carol.
func TestResolveFinalizeRoundTrip(t *testing.T) {
	svc, _, _ := newTestIdentityService(t)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "ext-123", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	hash := res.User.IdentityHash

	user, err := svc.FinalizeUsername(ctx, hash, "carol")
	if err != nil {
		t.Fatalf("FinalizeUsername() error = %v", err)
	}
	if user.Username != "carol" {
		t.Errorf("username = %q, want carol", user.Username)
	}

	again, err := svc.Resolve(ctx, "ext-123", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if again.Provisional {
		t.Error("resolve after finalize should not be provisional")
	}
	if again.User.Username != "carol" {
		t.Errorf("resolved username = %q, want carol", again.User.Username)
	}
}

func TestFinalizeUsername_Taken(t *testing.T) {
	svc, users, _ := newTestIdentityService(t)
	ctx := context.Background()

	establishedUser(t, users, "carol")

	res, err := svc.Resolve(ctx, "ext-456", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	_, err = svc.FinalizeUsername(ctx, res.User.IdentityHash, "carol")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}

	// The rejected caller's record is untouched.
	u, err := users.GetByIdentityHash(ctx, res.User.IdentityHash)
	if err != nil {
		t.Fatalf("GetByIdentityHash() error = %v", err)
	}
	if u.Status != model.StatusProvisional {
		t.Errorf("status = %q, want provisional after a rejected finalize", u.Status)
	}
	if u.Username != res.User.Username {
		t.Errorf("username changed on a rejected finalize: %q", u.Username)
	}
}

func TestFinalizeUsername_SecondCallRejected(t *testing.T) {
	svc, users, _ := newTestIdentityService(t)
	ctx := context.Background()

	res, _ := svc.Resolve(ctx, "ext-123", "")
	hash := res.User.IdentityHash

	if _, err := svc.FinalizeUsername(ctx, hash, "carol"); err != nil {
		t.Fatalf("first FinalizeUsername() error = %v", err)
	}

	// Even re-submitting the same name is rejected once established.
	_, err := svc.FinalizeUsername(ctx, hash, "carol")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second finalize error = %v, want ErrConflict", err)
	}

	u, _ := users.GetByIdentityHash(ctx, hash)
	if u.Username != "carol" || u.Status != model.StatusEstablished {
		t.Errorf("user mutated by rejected second finalize: %+v", u)
	}
}

func TestFinalizeUsername_CaseSensitive(t *testing.T) {
	svc, users, _ := newTestIdentityService(t)
	ctx := context.Background()

	establishedUser(t, users, "carol")

	res, _ := svc.Resolve(ctx, "ext-456", "")
	// Exact-match semantics: "Carol" is a different name from "carol".
	if _, err := svc.FinalizeUsername(ctx, res.User.IdentityHash, "Carol"); err != nil {
		t.Fatalf("FinalizeUsername(\"Carol\") error = %v", err)
	}
}

func TestFinalizeUsername_Validation(t *testing.T) {
	tests := []struct {
		name   string
		chosen string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"contains space", "two words"},
		{"contains slash", "a/b"},
		{"too long", string(make([]byte, MaxUsernameLength+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestIdentityService(t)
			res, _ := svc.Resolve(context.Background(), "ext-123", "")

			_, err := svc.FinalizeUsername(context.Background(), res.User.IdentityHash, tt.chosen)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDeleteAccount_Cascades(t *testing.T) {
	svc, users, posts := newTestIdentityService(t)
	ctx := context.Background()

	alice := establishedUser(t, users, "alice")
	bob := establishedUser(t, users, "bob")

	postSvc := NewPostService(posts, testLogger())
	mine, _ := postSvc.Create(ctx, alice, "T1", "C1")
	_, _ = postSvc.Create(ctx, alice, "T2", "C2")
	theirs, _ := postSvc.Create(ctx, bob, "T3", "C3")

	if err := svc.DeleteAccount(ctx, alice); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	if _, err := users.GetByID(ctx, alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user still retrievable after account deletion: %v", err)
	}
	if _, err := posts.GetByID(ctx, mine.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("authored post survived the cascade: %v", err)
	}
	if _, err := posts.GetByID(ctx, theirs.ID); err != nil {
		t.Errorf("another author's post was deleted by the cascade: %v", err)
	}
}

func TestHashPrincipal_DeterministicAndDistinct(t *testing.T) {
	if HashPrincipal("ext-123") != HashPrincipal("ext-123") {
		t.Error("HashPrincipal is not deterministic")
	}
	if HashPrincipal("ext-123") == HashPrincipal("ext-124") {
		t.Error("HashPrincipal collided on distinct inputs")
	}
	if len(HashPrincipal("x")) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(HashPrincipal("x")))
	}
}
