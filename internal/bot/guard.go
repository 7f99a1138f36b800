package bot

import (
	"errors"

	"photokeep/internal/auth"
	"photokeep/internal/db"
	"photokeep/internal/session"
)

// Guard replies. Expired and malformed tokens answer identically; the
// distinction shows up only in logs.
const (
	replyNoToken       = "You are not logged in. Use /start to authenticate."
	replyStaleToken    = "Your session is no longer valid. Use /start to authenticate again."
	replyNotAuthorized = "Insufficient access rights."
)

// requireToken verifies the session's token before a guarded handler
// runs. On failure it returns the user-facing reply and ok=false; the
// session keeps its state except that a dead token is discarded.
func (b *Bot) requireToken(sess *session.Session) (*auth.Claims, string, bool) {
	if sess.Token == "" {
		return nil, replyNoToken, false
	}
	claims, err := b.tokens.Verify(sess.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpired):
			b.log.Info("token expired", "chat", sess.ChatID)
		case errors.Is(err, auth.ErrMalformed):
			b.log.Warn("malformed token in session", "chat", sess.ChatID)
		}
		sess.Logout()
		return nil, replyStaleToken, false
	}
	return claims, "", true
}

// requireAdmin composes the token guard with a role check. Operators
// are rejected without any state change.
func (b *Bot) requireAdmin(sess *session.Session) (*auth.Claims, string, bool) {
	claims, reply, ok := b.requireToken(sess)
	if !ok {
		return nil, reply, false
	}
	if claims.Role != db.RoleAdmin {
		b.log.Warn("admin command rejected", "chat", sess.ChatID, "login", claims.Login)
		return nil, replyNotAuthorized, false
	}
	return claims, "", true
}
