package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users table.
type UserStore struct{ db *DB }

// Users returns the user repository.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

const userColumns = `id, email, password_hash, first_name, last_name, role, created_at`

// Create inserts a new user. Email is stored lower-cased so lookups are
// case-insensitive.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	u.ID = xid.New().String()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = time.Now().UTC()
	if u.Role == "" {
		u.Role = model.RoleDefault
	}

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", u.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}
	return nil
}

// GetByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.db.conn, "id", id)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return getUser(ctx, s.db.conn, "email", strings.ToLower(strings.TrimSpace(email)))
}

// getUser backs GetByID and GetByEmail. column is always a literal from
// those callers, never user input.
func getUser(ctx context.Context, q sqlx.QueryerContext, column, value string) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return &u, nil
}

// List returns every user, newest first.
func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.db.conn.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	return users, nil
}

// ListByRoles returns users holding any of roles, ordered by name.
func (s *UserStore) ListByRoles(ctx context.Context, roles ...model.Role) ([]model.User, error) {
	users := []model.User{}
	if len(roles) == 0 {
		return users, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+userColumns+` FROM users WHERE role IN (?) ORDER BY first_name, last_name, id`,
		roles,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: building role query: %w", err)
	}

	if err := s.db.conn.SelectContext(ctx, &users, s.db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing users by role: %w", err)
	}
	return users, nil
}

// UpdateProfile changes first and/or last name. Nil keeps the stored value.
func (s *UserStore) UpdateProfile(ctx context.Context, id string, firstName, lastName *string) (*model.User, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE users SET first_name = COALESCE(?, first_name), last_name = COALESCE(?, last_name)
		 WHERE id = ?`,
		firstName, lastName, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating profile %s: %w", id, err)
	}
	if err := requireAffected(res, "user", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// UpdateRole sets a user's role.
func (s *UserStore) UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	res, err := s.db.conn.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating role %s: %w", id, err)
	}
	if err := requireAffected(res, "user", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// requireAffected turns "0 rows affected" into a NotFound.
func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
