// Package profile reads and writes LINE user profiles.
//
// Profiles carry the role used to personalize replies. The store is a thin
// pgx layer over the line_users table; callers that can tolerate lookup
// failure should fall back to Unknown.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freyabot/freya/internal/log"
)

// Known role values, enforced by a CHECK constraint on line_users.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleUnknown = "unknown"
)

// Profile describes a LINE user as known to the bot.
type Profile struct {
	UserID     string
	Username   string
	Role       string
	Department string
	TeacherID  string
}

// Unknown returns the default profile for a user the bot has never seen,
// or whose lookup failed.
func Unknown(userID string) Profile {
	return Profile{UserID: userID, Role: RoleUnknown}
}

// Store persists user profiles in PostgreSQL.
// Safe for concurrent use; all synchronization is row-level in the database.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a profile store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Get returns the profile for userID. A user without a row gets the
// Unknown profile and no error; only infrastructure failures are errors.
func (s *Store) Get(ctx context.Context, userID string) (Profile, error) {
	const q = `
		SELECT COALESCE(username, ''), role, COALESCE(department, ''), COALESCE(teacher_id, '')
		FROM line_users
		WHERE line_user_id = $1`

	p := Profile{UserID: userID}
	err := s.pool.QueryRow(ctx, q, userID).Scan(&p.Username, &p.Role, &p.Department, &p.TeacherID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unknown(userID), nil
	}
	if err != nil {
		return Unknown(userID), fmt.Errorf("querying profile for %q: %w", userID, err)
	}
	return p, nil
}

// Upsert inserts or updates the profile and refreshes last_active.
func (s *Store) Upsert(ctx context.Context, p Profile) error {
	const q = `
		INSERT INTO line_users (line_user_id, username, role, department, teacher_id, last_active)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), now())
		ON CONFLICT (line_user_id) DO UPDATE SET
			username = EXCLUDED.username,
			role = EXCLUDED.role,
			department = EXCLUDED.department,
			teacher_id = EXCLUDED.teacher_id,
			last_active = EXCLUDED.last_active`

	role := p.Role
	if role == "" {
		role = RoleUnknown
	}

	if _, err := s.pool.Exec(ctx, q, p.UserID, p.Username, role, p.Department, p.TeacherID); err != nil {
		return fmt.Errorf("upserting profile for %q: %w", p.UserID, err)
	}

	s.logger.Debug("profile upserted", "user_id", p.UserID, "role", role)
	return nil
}
