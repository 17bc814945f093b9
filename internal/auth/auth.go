// Package auth is the identity provider of the tracker: sign-up, sign-in
// and session verification. The rest of the system only ever sees the
// resulting user id, email and family code, never tokens or hashes.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gastos/internal/core"
	"gastos/internal/storage"
)

var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrProfileMissing     = errors.New("profile not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// Identity is the authenticated caller as seen by the rest of the system.
type Identity struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	FamilyCode string `json:"family_code"`
}

// Taxonomies seeded for a brand-new family, mirroring the categories the
// tracker has always offered to fresh households.
var (
	defaultExpenseCategories = []string{
		"Alimentación", "Transporte", "Vivienda", "Entretenimiento",
		"Salud", "Educación", "Ropa", "Otros",
	}
	defaultIncomeCategories = []string{
		"Salario", "Freelance", "Inversiones", "Ventas",
		"Bonos", "Regalos", "Otros Ingresos",
	}
)

type Service struct {
	repo     *storage.Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(repo *storage.Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// SignUp registers a profile. An empty family code starts a new family:
// a code is generated and the default category taxonomies are seeded so
// the first forms are usable immediately.
func (s *Service) SignUp(ctx context.Context, email, password, fullName, familyCode string) (Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, "", fmt.Errorf("%w: email", ErrInvalidCredentials)
	}
	if len(password) < 6 {
		return Identity{}, "", fmt.Errorf("%w: password too short", ErrInvalidCredentials)
	}

	if _, err := s.repo.GetProfileByEmail(ctx, email); err == nil {
		return Identity{}, "", ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Identity{}, "", fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, "", fmt.Errorf("hash password: %w", err)
	}

	newFamily := familyCode == ""
	if newFamily {
		familyCode = generateFamilyCode()
	}

	profile, err := s.repo.CreateProfile(ctx, storage.Profile{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		FamilyCode:   familyCode,
	})
	if err != nil {
		return Identity{}, "", fmt.Errorf("create profile: %w", err)
	}

	if newFamily {
		s.seedDefaultCategories(ctx, familyCode)
	}

	token, err := s.issueToken(profile.ID)
	if err != nil {
		return Identity{}, "", err
	}

	slog.InfoContext(ctx, "Profile registered",
		"user_id", profile.ID,
		"family_code", familyCode,
		"new_family", newFamily)

	return identityOf(profile), token, nil
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	profile, err := s.repo.GetProfileByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return Identity{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, "", fmt.Errorf("load profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return Identity{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(profile.ID)
	if err != nil {
		return Identity{}, "", err
	}
	return identityOf(profile), token, nil
}

// Verify resolves a bearer token to the current identity. An unknown or
// expired token is ErrAuthRequired; a valid token whose profile has been
// removed is ErrProfileMissing.
func (s *Service) Verify(ctx context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrAuthRequired
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrAuthRequired
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrAuthRequired
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return Identity{}, ErrAuthRequired
	}

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return Identity{}, ErrProfileMissing
	}
	if err != nil {
		return Identity{}, fmt.Errorf("load profile: %w", err)
	}
	return identityOf(profile), nil
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) seedDefaultCategories(ctx context.Context, familyCode string) {
	seed := func(kind core.TransactionKind, names []string) {
		for _, name := range names {
			if _, err := s.repo.CreateCategory(ctx, kind, core.Category{
				Name:       name,
				FamilyCode: familyCode,
			}); err != nil {
				// Seeding is best effort; the family can add categories later.
				slog.WarnContext(ctx, "Failed to seed default category",
					"kind", string(kind), "name", name, "error", err)
			}
		}
	}
	seed(core.Expense, defaultExpenseCategories)
	seed(core.Income, defaultIncomeCategories)
}

func identityOf(p storage.Profile) Identity {
	return Identity{
		UserID:     p.ID,
		Email:      p.Email,
		FullName:   p.FullName,
		FamilyCode: p.FamilyCode,
	}
}

const familyCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateFamilyCode() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Extremely unlikely; fall back to a time-based code.
		return fmt.Sprintf("F%07d", time.Now().UnixNano()%10000000)
	}
	for i := range b {
		b[i] = familyCodeAlphabet[int(b[i])%len(familyCodeAlphabet)]
	}
	return string(b)
}
