package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gastos/internal/core"
	"gastos/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "gastos.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewService(repo, "test-secret", time.Hour), repo
}

func TestSignUpNewFamilySeedsCategories(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	id, token, err := svc.SignUp(ctx, "Ana@Example.com", "secret1", "Ana", "")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if token == "" || id.UserID == "" || id.FamilyCode == "" {
		t.Fatalf("incomplete identity: %+v token=%q", id, token)
	}
	if id.Email != "ana@example.com" {
		t.Fatalf("email not normalized: %s", id.Email)
	}

	expCats, err := repo.ListCategories(ctx, core.Expense, id.FamilyCode)
	if err != nil {
		t.Fatalf("list expense categories: %v", err)
	}
	if len(expCats) != len(defaultExpenseCategories) {
		t.Fatalf("expected %d seeded expense categories, got %d", len(defaultExpenseCategories), len(expCats))
	}
	incCats, err := repo.ListCategories(ctx, core.Income, id.FamilyCode)
	if err != nil {
		t.Fatalf("list income categories: %v", err)
	}
	if len(incCats) != len(defaultIncomeCategories) {
		t.Fatalf("expected %d seeded income categories, got %d", len(defaultIncomeCategories), len(incCats))
	}
}

func TestSignUpJoinExistingFamilyDoesNotReseed(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.SignUp(ctx, "ana@example.com", "secret1", "Ana", "")
	if err != nil {
		t.Fatalf("first sign up: %v", err)
	}

	second, _, err := svc.SignUp(ctx, "ben@example.com", "secret1", "Ben", first.FamilyCode)
	if err != nil {
		t.Fatalf("second sign up: %v", err)
	}
	if second.FamilyCode != first.FamilyCode {
		t.Fatalf("family codes differ: %s vs %s", second.FamilyCode, first.FamilyCode)
	}

	cats, _ := repo.ListCategories(ctx, core.Expense, first.FamilyCode)
	if len(cats) != len(defaultExpenseCategories) {
		t.Fatalf("joining a family must not reseed categories: %d", len(cats))
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "ana@example.com", "secret1", "Ana", ""); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, _, err := svc.SignUp(ctx, "ana@example.com", "secret2", "Ana2", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, _, err := svc.SignUp(ctx, "ana@example.com", "secret1", "Ana", "")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	id, token, err := svc.SignIn(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if id.UserID != created.UserID {
		t.Fatalf("identity mismatch: %s vs %s", id.UserID, created.UserID)
	}

	verified, err := svc.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.FamilyCode != created.FamilyCode {
		t.Fatalf("family mismatch after verify: %+v", verified)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "ana@example.com", "secret1", "Ana", ""); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestVerifyRejectsGarbageAndExpired(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, ""); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for empty token, got %v", err)
	}
	if _, err := svc.Verify(ctx, "not.a.token"); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for garbage, got %v", err)
	}

	// Token from an expired session.
	expired := NewService(svc.repo, "test-secret", -time.Minute)
	_, token, err := expired.SignUp(ctx, "old@example.com", "secret1", "Old", "")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := svc.Verify(ctx, token); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for expired token, got %v", err)
	}
}

func TestGenerateFamilyCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := generateFamilyCode()
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("family codes collide too often: %d unique of 50", len(seen))
	}
}
