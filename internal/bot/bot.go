// Package bot routes inbound chat updates through the login and
// upload dialogue. One worker goroutine serves each chat, so a slow
// or locked-out session never stalls the others.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"photokeep/internal/artifacts"
	"photokeep/internal/auth"
	"photokeep/internal/db"
	"photokeep/internal/gate"
	"photokeep/internal/pathkey"
	"photokeep/internal/session"
	"photokeep/internal/telegram"
)

// API is the slice of the Telegram client the bot drives.
type API interface {
	GetUpdates(ctx context.Context, offset, timeoutSec int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, payload []byte, name string) error
	FilePath(ctx context.Context, fileID string) (string, error)
	Download(ctx context.Context, filePath string) ([]byte, error)
}

// AuditLog is the slice of the persistence collaborator the handlers
// write to.
type AuditLog interface {
	AppendAudit(ctx context.Context, actor, action string) error
}

// Options wires the bot's collaborators.
type Options struct {
	API      API
	Gate     *gate.Gate
	Tokens   *auth.TokenService
	Resolver *pathkey.Resolver
	Store    *artifacts.Store
	Audit    AuditLog
	Logger   *slog.Logger

	// PollTimeoutSec is the getUpdates long-poll timeout.
	PollTimeoutSec int
	// QueueSize bounds each per-chat inbound queue.
	QueueSize int
}

// Bot is the dispatcher plus handler state.
type Bot struct {
	api      API
	gate     *gate.Gate
	tokens   *auth.TokenService
	resolver *pathkey.Resolver
	store    *artifacts.Store
	audit    AuditLog
	log      *slog.Logger
	now      func() time.Time

	pollTimeout int
	queueSize   int

	sessions *session.Manager

	mu      sync.Mutex
	workers map[int64]chan telegram.Update
	wg      sync.WaitGroup
}

func New(opt Options) (*Bot, error) {
	if opt.API == nil || opt.Gate == nil || opt.Tokens == nil || opt.Store == nil || opt.Audit == nil {
		return nil, errors.New("api, gate, tokens, store, and audit are required")
	}
	if opt.Resolver == nil {
		opt.Resolver = pathkey.NewResolver(nil)
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.PollTimeoutSec <= 0 {
		opt.PollTimeoutSec = 30
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = 16
	}
	return &Bot{
		api:         opt.API,
		gate:        opt.Gate,
		tokens:      opt.Tokens,
		resolver:    opt.Resolver,
		store:       opt.Store,
		audit:       opt.Audit,
		log:         opt.Logger,
		now:         time.Now,
		pollTimeout: opt.PollTimeoutSec,
		queueSize:   opt.QueueSize,
		sessions:    session.NewManager(),
		workers:     make(map[int64]chan telegram.Update),
	}, nil
}

// Run polls for updates until the context is cancelled, dispatching
// each update to its chat's worker. It returns after all workers have
// drained.
func (b *Bot) Run(ctx context.Context) error {
	defer b.stopWorkers()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Error("getUpdates failed", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.dispatch(ctx, u)
		}
	}
}

// dispatch hands an update to the chat's worker, creating the worker
// on first contact. A full queue drops the update rather than
// blocking the poll loop.
func (b *Bot) dispatch(ctx context.Context, u telegram.Update) {
	if u.Message == nil {
		return
	}
	chatID := u.Message.Chat.ID

	b.mu.Lock()
	ch, ok := b.workers[chatID]
	if !ok {
		ch = make(chan telegram.Update, b.queueSize)
		b.workers[chatID] = ch
		b.wg.Add(1)
		go b.worker(ctx, ch)
	}
	b.mu.Unlock()

	select {
	case ch <- u:
	default:
		b.log.Warn("dropping update, session queue full", "chat", chatID)
	}
}

func (b *Bot) worker(ctx context.Context, ch chan telegram.Update) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-ch:
			b.handleMessage(ctx, u.Message)
		}
	}
}

func (b *Bot) stopWorkers() {
	b.wg.Wait()
	b.mu.Lock()
	b.workers = make(map[int64]chan telegram.Update)
	b.mu.Unlock()
}

// reply sends a text answer, logging send failures instead of
// propagating them; a lost reply must not wedge the session.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		b.log.Error("send message failed", "chat", chatID, "err", err)
	}
}

// writeAudit appends an audit row, logging store faults.
func (b *Bot) writeAudit(ctx context.Context, actor, action string) {
	if err := b.audit.AppendAudit(ctx, actor, action); err != nil {
		b.log.Error("audit write failed", "err", err)
	}
}

// roleOf maps a stored user to its token role claim.
func roleOf(u *db.User) string {
	if u.Role == db.RoleAdmin {
		return db.RoleAdmin
	}
	return db.RoleOperator
}
