// Package daemon wires the bot's collaborators and runs the poll loop.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"photokeep/internal/artifacts"
	"photokeep/internal/auth"
	"photokeep/internal/bot"
	"photokeep/internal/db"
	"photokeep/internal/gate"
	"photokeep/internal/jailfs"
	"photokeep/internal/pathkey"
	"photokeep/internal/telegram"
)

type Options struct {
	DBPath    string
	PhotosDir string

	BotToken   string
	SigningKey []byte

	// APIBase overrides the Bot API endpoint; empty means production.
	APIBase        string
	PollTimeoutSec int
	Categories     []string

	Logger *slog.Logger
}

func Run(ctx context.Context, opt Options) error {
	if opt.DBPath == "" {
		return errors.New("db path is required")
	}
	if opt.PhotosDir == "" {
		return errors.New("photos dir is required")
	}
	if opt.BotToken == "" || len(opt.SigningKey) == 0 {
		return errors.New("bot token and signing key are required")
	}
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}

	d, err := db.Open(ctx, opt.DBPath)
	if err != nil {
		return err
	}
	defer d.Close()
	initialized, err := d.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return errors.New("not initialized; run setup")
	}

	if err := os.MkdirAll(opt.PhotosDir, 0o700); err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(opt.SigningKey)
	if err != nil {
		return err
	}
	api, err := telegram.New(opt.BotToken, opt.APIBase)
	if err != nil {
		return err
	}

	b, err := bot.New(bot.Options{
		API:            api,
		Gate:           gate.New(d, lg),
		Tokens:         tokens,
		Resolver:       pathkey.NewResolver(opt.Categories),
		Store:          artifacts.New(jailfs.New(opt.PhotosDir)),
		Audit:          d,
		Logger:         lg,
		PollTimeoutSec: opt.PollTimeoutSec,
	})
	if err != nil {
		return err
	}

	lg.Info("photokeep bot starting", "db", opt.DBPath, "photos", opt.PhotosDir)
	return b.Run(ctx)
}
