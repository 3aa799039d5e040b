package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/oprema/internal/model"
)

const userColumns = `id, username, full_name, password_hash, role, holder_id, created_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	var fullName sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &fullName, &u.PasswordHash, &u.Role, &u.HolderID, &u.CreatedAt, &u.DeletedAt); err != nil {
		return err
	}
	u.FullName = fullName.String
	return nil
}

// CreateUser creates a new user together with the person holder that
// equipment is checked out to.
func CreateUser(ctx context.Context, db *sql.DB, username, fullName, passwordHash, role string) (*model.User, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	holderName := fullName
	if holderName == "" {
		holderName = username
	}
	holderID, err := insertHolder(ctx, tx, holderName, model.HolderTypePerson)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, full_name, password_hash, role, holder_id) VALUES (?, ?, ?, ?, ?)`,
		username, nullString(fullName), passwordHash, role, holderID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q DBTX, id int64) (*model.User, error) {
	u := &model.User{}
	err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	), u)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, q DBTX, username string) (*model.User, error) {
	u := &model.User{}
	err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	), u)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, q DBTX) ([]model.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SearchUsers returns up to limit active users whose username or full name
// contains query, case-insensitively.
func SearchUsers(ctx context.Context, q DBTX, query string, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE deleted_at IS NULL
		   AND (lower(username) LIKE ? ESCAPE '\' OR lower(COALESCE(full_name, '')) LIKE ? ESCAPE '\')
		 ORDER BY username LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser updates a user's role.
func UpdateUser(ctx context.Context, q DBTX, id int64, role string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q DBTX, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user together with their person holder. It fails
// with ErrHolderHasItems while equipment is still checked out to them, so
// callers outside a transaction should pass a *sql.Tx.
func DeleteUser(ctx context.Context, q DBTX, id int64) error {
	var holderID sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT holder_id FROM users WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&holderID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting user holder: %w", err)
	}
	if holderID.Valid {
		if err := DeleteHolder(ctx, q, holderID.Int64); err != nil {
			return err
		}
	}

	_, err = q.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
