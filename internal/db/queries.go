// Package db contains database query helpers for photokeep.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// nowUnix returns the current Unix timestamp in seconds.
func nowUnix() int64 { return time.Now().Unix() }

// GetConfig fetches a single config key from the database.
// The boolean indicates whether the key exists.
func (d *DB) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&v)
	if err == nil {
		return v, true, nil
	}
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return "", false, err
}

// SetConfig upserts a config key/value pair and updates its timestamp.
func (d *DB) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("config key is required")
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO config(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, value, nowUnix())
	return err
}

// IsInitialized reports whether setup has completed.
func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	v, ok, err := d.GetConfig(ctx, "initialized")
	if err != nil {
		return false, err
	}
	return ok && v == "1", nil
}

// SetInitialized marks the database as setup-complete.
func (d *DB) SetInitialized(ctx context.Context) error {
	return d.SetConfig(ctx, "initialized", "1")
}

// CreateUser inserts a new account and returns its database ID.
func (d *DB) CreateUser(ctx context.Context, login, passHash, displayName, role string) (int64, error) {
	if login == "" || passHash == "" || displayName == "" {
		return 0, errors.New("login, password hash, and display name are required")
	}
	if role != RoleOperator && role != RoleAdmin {
		return 0, errors.New("invalid role")
	}
	res, err := d.sql.ExecContext(ctx, `
INSERT INTO users(login, password_hash, display_name, role, enabled, created_at, updated_at)
VALUES(?, ?, ?, ?, 1, ?, ?)
`, login, passHash, displayName, role, nowUnix(), nowUnix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetUserByLogin looks up an account by login.
func (d *DB) GetUserByLogin(ctx context.Context, login string) (*User, bool, error) {
	var u User
	var enabled int
	err := d.sql.QueryRowContext(ctx, `
SELECT id, login, password_hash, display_name, role, enabled, created_at, updated_at
FROM users WHERE login=?
`, login).Scan(&u.ID, &u.Login, &u.PassHash, &u.DisplayName, &u.Role, &enabled, &u.CreatedAt, &u.UpdatedAt)
	if err == nil {
		u.Enabled = enabled != 0
		return &u, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// SetUserPasswordHash updates an account's password hash.
func (d *DB) SetUserPasswordHash(ctx context.Context, id int64, passHash string) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	if passHash == "" {
		return errors.New("password hash is required")
	}
	_, err := d.sql.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, passHash, nowUnix(), id)
	return err
}

// SetUserEnabled toggles an account on or off.
func (d *DB) SetUserEnabled(ctx context.Context, id int64, enabled bool) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	_, err := d.sql.ExecContext(ctx, `UPDATE users SET enabled=?, updated_at=? WHERE id=?`, boolToInt(enabled), nowUnix(), id)
	return err
}

// ListUsers returns all accounts sorted by login.
func (d *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, login, password_hash, display_name, role, enabled, created_at, updated_at
FROM users ORDER BY login ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var enabled int
		if err := rows.Scan(&u.ID, &u.Login, &u.PassHash, &u.DisplayName, &u.Role, &enabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Enabled = enabled != 0
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendAudit writes one append-only audit row.
func (d *DB) AppendAudit(ctx context.Context, actor, action string) error {
	if actor == "" || action == "" {
		return errors.New("actor and action are required")
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO audit_log(actor, action, created_at) VALUES(?, ?, ?)
`, actor, action, nowUnix())
	return err
}

// ListAudit returns the most recent audit rows, newest first.
func (d *DB) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, actor, action, created_at FROM audit_log ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// boolToInt maps booleans to SQLite-friendly integer flags.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
