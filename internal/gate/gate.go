// Package gate decides login attempts: credential checks, consecutive
// failure counting, and the temporary lockout.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photokeep/internal/auth"
	"photokeep/internal/db"
	"photokeep/internal/session"
)

const (
	// MaxFailures is the number of consecutive bad passwords that
	// triggers a lockout.
	MaxFailures = 3
	// LockoutDuration suspends one session's login processing.
	LockoutDuration = 60 * time.Second
)

// Verdict tags the outcome of one login attempt.
type Verdict int

const (
	// Granted means the credentials matched an enabled account.
	Granted Verdict = iota
	// Denied means the credentials did not match.
	Denied
	// LockedOut means this attempt was the third consecutive failure.
	LockedOut
	// Unavailable means the credential store could not be reached.
	Unavailable
)

// Result carries the verdict plus the matched account on success and
// the lockout deadline on LockedOut.
type Result struct {
	Verdict Verdict
	User    *db.User
	Until   time.Time
}

// Store is the slice of the persistence collaborator the gate needs.
type Store interface {
	GetUserByLogin(ctx context.Context, login string) (*db.User, bool, error)
	AppendAudit(ctx context.Context, actor, action string) error
}

// Gate validates credentials against the store and tracks per-session
// failures. It never blocks: a lockout is a deadline on the session,
// not a sleeping worker.
type Gate struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func New(store Store, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{store: store, log: log, now: time.Now}
}

// WithClock overrides the time source, for lockout tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Attempt checks one login/password pair for a session and updates the
// session's failure count. On the MaxFailures-th consecutive failure it
// locks the session for LockoutDuration, resets the counter, and
// returns the session to the initial phase.
func (g *Gate) Attempt(ctx context.Context, sess *session.Session, login, password string) Result {
	u, found, err := g.store.GetUserByLogin(ctx, login)
	if err != nil {
		g.log.Error("credential lookup failed", "err", err)
		return Result{Verdict: Unavailable}
	}

	matched := false
	if found && u.Enabled {
		ok, verr := auth.VerifyPassword(password, u.PassHash)
		if verr != nil {
			// A corrupt stored hash is an operator problem, not a
			// user-visible one; treat it as a mismatch.
			g.log.Error("password hash verify failed", "login", login, "err", verr)
		}
		matched = ok && verr == nil
	}

	if matched {
		sess.Failures = 0
		if err := g.store.AppendAudit(ctx, u.DisplayName, "logged in"); err != nil {
			g.log.Error("audit write failed", "err", err)
		}
		g.log.Info("login succeeded", "login", login, "role", u.Role)
		return Result{Verdict: Granted, User: u}
	}

	sess.Failures++
	g.log.Warn("login failed", "login", login, "failures", sess.Failures)
	if sess.Failures >= MaxFailures {
		until := g.now().Add(LockoutDuration)
		sess.Lock(until)
		if err := g.store.AppendAudit(ctx, login, fmt.Sprintf("locked out after %d failed login attempts", MaxFailures)); err != nil {
			g.log.Error("audit write failed", "err", err)
		}
		return Result{Verdict: LockedOut, Until: until}
	}
	return Result{Verdict: Denied}
}
