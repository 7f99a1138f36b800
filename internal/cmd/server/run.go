package server

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"photokeep/internal/config"
	"photokeep/internal/daemon"
	"photokeep/internal/logging"
	"photokeep/internal/version"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var (
		configPath  string
		logLevel    string
		dbPath      string
		photosDir   string
		pollTimeout int
		showVersion bool
	)
	fs.StringVar(&configPath, "config", "", "path to photokeep.yaml (when set, other flags are ignored)")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warning|error")
	fs.StringVar(&dbPath, "db", "./data/photokeep.db", "sqlite database path")
	fs.StringVar(&photosDir, "photos-dir", "./photos", "photo storage root")
	fs.IntVar(&pollTimeout, "poll-timeout", 30, "getUpdates long-poll timeout in seconds")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("photokeep server %s\n", version.Version)
		return nil
	}

	c := config.Config{
		Log:       config.LogConfig{Level: logLevel},
		DB:        config.DBConfig{Path: dbPath},
		PhotosDir: photosDir,
		Bot:       config.BotConfig{PollTimeoutSec: pollTimeout},
	}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		c = loaded
	} else {
		config.ApplyDefaults(&c)
		if err := config.Validate(&c); err != nil {
			return err
		}
	}

	// Missing secrets are a fatal startup error, never a per-request one.
	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}

	lg, _, err := logging.New(logging.Options{Level: c.Log.Level, JSON: c.Log.JSON, DefaultSlog: true})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = daemon.Run(ctx, daemon.Options{
		DBPath:         c.DB.Path,
		PhotosDir:      c.PhotosDir,
		BotToken:       secrets.BotToken,
		SigningKey:     secrets.SigningKey,
		APIBase:        c.Bot.APIBase,
		PollTimeoutSec: c.Bot.PollTimeoutSec,
		Categories:     c.Categories,
		Logger:         lg,
	})
	if ctx.Err() != nil {
		lg.Info("shutting down")
		return nil
	}
	return err
}
