package bot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"photokeep/internal/artifacts"
	"photokeep/internal/auth"
	"photokeep/internal/gate"
	"photokeep/internal/pathkey"
	"photokeep/internal/session"
	"photokeep/internal/telegram"
)

const (
	pathExample = "category/locality/street/building/unit, e.g. fttx/Moscow/Lenina/5/12"

	replyHelp = "Commands:\n" +
		"/send <path> — choose the upload destination\n" +
		"/view <path> — review stored photos (admins)\n" +
		"/exit — log out\n" +
		"Path format: " + pathExample

	replyLocked      = "Too many failed attempts. You are locked out for 60 seconds."
	replyStillLocked = "You are temporarily locked out. Try /start again shortly."
	replyUnavailable = "Service is temporarily unavailable. Please try again later."
)

// handleMessage is the per-session entry point. All errors are
// converted to user-facing replies here; nothing may panic or crash
// the worker.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	sess := b.sessions.Get(msg.Chat.ID)

	// The lockout deadline gates everything for this session; other
	// sessions keep their own workers running.
	if sess.Locked(b.now()) {
		b.reply(ctx, sess.ChatID, replyStillLocked)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, sess, msg)
		return
	}

	cmd, args := splitCommand(msg.Text)
	switch cmd {
	case "/start":
		b.cmdStart(ctx, sess)
	case "/help":
		b.cmdHelp(ctx, sess)
	case "/send":
		b.cmdSend(ctx, sess, args)
	case "/view":
		b.cmdView(ctx, sess, args)
	case "/exit", "/logout":
		b.cmdExit(ctx, sess)
	case "":
		b.handleText(ctx, sess, msg.Text)
	default:
		b.reply(ctx, sess.ChatID, "Unknown command. Use /help.")
	}
}

// splitCommand separates a leading /command from its arguments.
// Non-command text returns an empty command.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ = strings.Cut(text, " ")
	return cmd, strings.TrimSpace(args)
}

// cmdStart begins the login dialogue. Re-entering /start mid-flow is
// a no-op: the session keeps its place.
func (b *Bot) cmdStart(ctx context.Context, sess *session.Session) {
	switch sess.Phase {
	case session.Anonymous:
		sess.Phase = session.AwaitingLogin
		b.reply(ctx, sess.ChatID, "Enter your login:")
	case session.AwaitingLogin, session.AwaitingPassword:
		b.reply(ctx, sess.ChatID, "Login is already in progress. Enter the requested value.")
	default:
		b.reply(ctx, sess.ChatID, "You are already logged in. Use /help.")
	}
}

func (b *Bot) cmdHelp(ctx context.Context, sess *session.Session) {
	if _, reply, ok := b.requireToken(sess); !ok {
		b.reply(ctx, sess.ChatID, reply)
		return
	}
	b.reply(ctx, sess.ChatID, replyHelp)
}

// cmdExit logs the session out. Allowed in every state.
func (b *Bot) cmdExit(ctx context.Context, sess *session.Session) {
	sess.Logout()
	b.reply(ctx, sess.ChatID, "You are logged out. Use /start to log in again.")
}

// handleText routes plain text by the session's phase.
func (b *Bot) handleText(ctx context.Context, sess *session.Session, text string) {
	switch sess.Phase {
	case session.AwaitingLogin:
		// Captured verbatim: no validation at this step.
		sess.PendingLogin = text
		sess.Phase = session.AwaitingPassword
		b.reply(ctx, sess.ChatID, "Now enter the password:")
	case session.AwaitingPassword:
		b.handlePassword(ctx, sess, text)
	case session.AwaitingPath:
		b.handlePathEntry(ctx, sess, text)
	case session.Anonymous:
		b.reply(ctx, sess.ChatID, "Use /start to log in.")
	default:
		b.reply(ctx, sess.ChatID, "Use /help for the command list.")
	}
}

func (b *Bot) handlePassword(ctx context.Context, sess *session.Session, password string) {
	res := b.gate.Attempt(ctx, sess, sess.PendingLogin, password)
	switch res.Verdict {
	case gate.Granted:
		tok, err := b.tokens.Issue(res.User.Login, res.User.DisplayName, roleOf(res.User))
		if err != nil {
			b.log.Error("token issue failed", "err", err)
			b.reply(ctx, sess.ChatID, replyUnavailable)
			return
		}
		sess.Token = tok
		sess.PendingLogin = ""
		sess.Phase = session.Authenticated
		b.reply(ctx, sess.ChatID, fmt.Sprintf("Welcome, %s!\nUse /help for the command list.", res.User.DisplayName))
	case gate.Denied:
		sess.Phase = session.AwaitingLogin
		sess.PendingLogin = ""
		b.reply(ctx, sess.ChatID, "Wrong login or password. Enter your login:")
	case gate.LockedOut:
		b.reply(ctx, sess.ChatID, replyLocked)
	case gate.Unavailable:
		// State unchanged: the user may retry the same password.
		b.reply(ctx, sess.ChatID, replyUnavailable)
	}
}

// cmdSend selects the upload destination. Without arguments it asks
// for the path as the next message.
func (b *Bot) cmdSend(ctx context.Context, sess *session.Session, args string) {
	claims, reply, ok := b.requireToken(sess)
	if !ok {
		b.reply(ctx, sess.ChatID, reply)
		return
	}
	if args == "" {
		sess.Phase = session.AwaitingPath
		sess.PathAction = actionUpload
		b.reply(ctx, sess.ChatID, "Send the destination path:\n"+pathExample)
		return
	}
	b.resolveUpload(ctx, sess, claims, args)
}

// cmdView reviews stored photos. Admin only; operators are rejected
// without any state change.
func (b *Bot) cmdView(ctx context.Context, sess *session.Session, args string) {
	claims, reply, ok := b.requireAdmin(sess)
	if !ok {
		b.reply(ctx, sess.ChatID, reply)
		return
	}
	if args == "" {
		sess.Phase = session.AwaitingPath
		sess.PathAction = actionView
		b.reply(ctx, sess.ChatID, "Send the path to view:\n"+pathExample)
		return
	}
	b.viewPhotos(ctx, sess, claims, args)
}

const (
	actionUpload = "upload"
	actionView   = "view"
)

// handlePathEntry consumes the free-text path requested by /send or
// /view without arguments.
func (b *Bot) handlePathEntry(ctx context.Context, sess *session.Session, text string) {
	action := sess.PathAction
	var claims *auth.Claims
	var reply string
	var ok bool
	if action == actionView {
		claims, reply, ok = b.requireAdmin(sess)
	} else {
		claims, reply, ok = b.requireToken(sess)
	}
	if !ok {
		b.reply(ctx, sess.ChatID, reply)
		return
	}
	if action == actionView {
		b.viewPhotos(ctx, sess, claims, text)
		return
	}
	b.resolveUpload(ctx, sess, claims, text)
}

// resolveUpload parses and validates the destination, creates its
// directory, and arms the session for photo uploads.
func (b *Bot) resolveUpload(ctx context.Context, sess *session.Session, claims *auth.Claims, raw string) {
	key, ok := b.parsePath(ctx, sess, raw)
	if !ok {
		return
	}
	if err := b.store.EnsureDir(key); err != nil {
		// Session state is untouched; the user may retry the command.
		b.log.Error("directory create failed", "dir", key.Dir(), "err", err)
		b.reply(ctx, sess.ChatID, "Could not create the destination directory. Try again.")
		return
	}
	sess.Path = &key
	sess.PathAction = ""
	sess.Phase = session.ReadyForUpload
	b.writeAudit(ctx, claims.DisplayName, "selected upload directory photos/"+key.Dir())
	b.reply(ctx, sess.ChatID, fmt.Sprintf("Photos will be uploaded to %s.\nSend your photos now.", key.Dir()))
}

// viewPhotos lists a directory and sends back every stored image.
func (b *Bot) viewPhotos(ctx context.Context, sess *session.Session, claims *auth.Claims, raw string) {
	key, ok := b.parsePath(ctx, sess, raw)
	if !ok {
		return
	}
	b.leavePathEntry(sess)

	ids, err := b.store.List(key)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			b.reply(ctx, sess.ChatID, "That directory does not exist.\nUse /help.")
			return
		}
		b.log.Error("listing failed", "dir", key.Dir(), "err", err)
		b.reply(ctx, sess.ChatID, replyUnavailable)
		return
	}
	b.writeAudit(ctx, claims.DisplayName, "viewed photos in photos/"+key.Dir())
	if len(ids) == 0 {
		b.reply(ctx, sess.ChatID, "No images in that directory.\nUse /help.")
		return
	}
	for _, id := range ids {
		payload, err := b.store.Read(id)
		if err != nil {
			b.log.Error("artifact read failed", "id", id, "err", err)
			b.reply(ctx, sess.ChatID, "Failed to read "+path.Base(id)+".")
			continue
		}
		if err := b.api.SendPhoto(ctx, sess.ChatID, payload, path.Base(id)); err != nil {
			b.log.Error("send photo failed", "chat", sess.ChatID, "err", err)
		}
	}
}

// handlePhoto stores an inbound photo attachment under the session's
// resolved path.
func (b *Bot) handlePhoto(ctx context.Context, sess *session.Session, msg *telegram.Message) {
	claims, reply, ok := b.requireToken(sess)
	if !ok {
		b.reply(ctx, sess.ChatID, reply)
		return
	}
	if sess.Path == nil {
		b.reply(ctx, sess.ChatID, "No upload destination selected. Use /send first.")
		return
	}

	// The last photo size is the largest rendition.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	filePath, err := b.api.FilePath(ctx, fileID)
	if err != nil {
		b.log.Error("file path lookup failed", "err", err)
		b.reply(ctx, sess.ChatID, replyUnavailable)
		return
	}
	payload, err := b.api.Download(ctx, filePath)
	if err != nil {
		b.log.Error("photo download failed", "err", err)
		b.reply(ctx, sess.ChatID, replyUnavailable)
		return
	}

	id, err := b.store.Save(*sess.Path, payload, path.Base(filePath))
	if err != nil {
		b.log.Error("photo save failed", "dir", sess.Path.Dir(), "err", err)
		b.reply(ctx, sess.ChatID, "Could not store the photo. Try again.")
		return
	}
	b.writeAudit(ctx, claims.DisplayName, "uploaded photo to photos/"+sess.Path.Dir())
	b.log.Info("photo stored", "chat", sess.ChatID, "id", id)
	b.reply(ctx, sess.ChatID, "Photo saved to "+sess.Path.Dir()+".")
}

// parsePath converts a raw descriptor into a key, answering each
// validation failure with its own message.
func (b *Bot) parsePath(ctx context.Context, sess *session.Session, raw string) (pathkey.Key, bool) {
	key, err := b.resolver.Parse(raw)
	if err == nil {
		return key, true
	}
	switch {
	case errors.Is(err, pathkey.ErrMissingArguments):
		b.reply(ctx, sess.ChatID, "No path given. Expected: "+pathExample)
	case errors.Is(err, pathkey.ErrMalformedPath):
		b.reply(ctx, sess.ChatID, "Wrong path format. Expected: "+pathExample)
	case errors.Is(err, pathkey.ErrUnknownCategory):
		b.reply(ctx, sess.ChatID, "Unknown category. Allowed: "+strings.Join(b.resolver.Categories(), ", "))
	case errors.Is(err, pathkey.ErrIllegalCharacter):
		b.reply(ctx, sess.ChatID, `Illegal directory name. Avoid / \ : * ? " < > |`)
	default:
		b.reply(ctx, sess.ChatID, "Invalid path.")
	}
	return pathkey.Key{}, false
}

// leavePathEntry returns a session from path entry to its steady
// state once the pending action completes.
func (b *Bot) leavePathEntry(sess *session.Session) {
	if sess.Phase != session.AwaitingPath {
		return
	}
	sess.PathAction = ""
	if sess.Path != nil {
		sess.Phase = session.ReadyForUpload
	} else {
		sess.Phase = session.Authenticated
	}
}
