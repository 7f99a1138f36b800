// Package db defines persistence models for photokeep.
package db

// Operator and admin are the only roles the bot knows about.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// User represents a bot account. Password hashes use the argon2id
// PHC format produced by the auth package.
type User struct {
	ID          int64
	Login       string
	PassHash    string
	DisplayName string
	Role        string
	Enabled     bool
	CreatedAt   int64
	UpdatedAt   int64
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        int64
	Actor     string
	Action    string
	CreatedAt int64
}
