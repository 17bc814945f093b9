package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Profile is a registered household member. The identity layer owns the
// password hash; the rest of the system only ever sees id, email and
// family code.
type Profile struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	FamilyCode   string
	CreatedAt    time.Time
}

func (r *Repository) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, password_hash, full_name, family_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.PasswordHash, p.FullName, p.FamilyCode,
		p.CreatedAt.Format(timeLayout))
	if err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return r.getProfile(ctx, `SELECT id, email, password_hash, full_name, family_code, created_at
		FROM profiles WHERE email = ?`, email)
}

func (r *Repository) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	return r.getProfile(ctx, `SELECT id, email, password_hash, full_name, family_code, created_at
		FROM profiles WHERE id = ?`, id)
}

func (r *Repository) getProfile(ctx context.Context, query string, arg any) (Profile, error) {
	var (
		p         Profile
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.FamilyCode, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}
