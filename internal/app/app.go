// Package app assembles the engine's services from configuration.
package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/redis/go-redis/v9"

	"amalnama/internal/attendance"
	"amalnama/internal/audit"
	"amalnama/internal/auth"
	"amalnama/internal/backup"
	"amalnama/internal/config"
	"amalnama/internal/directory"
	"amalnama/internal/grading"
	"amalnama/internal/ident"
	"amalnama/internal/mail"
	"amalnama/internal/notify"
	"amalnama/internal/queue"
	"amalnama/internal/seed"
	"amalnama/internal/session"
	"amalnama/internal/store"
)

var logger = loggo.GetLogger("amalnama.app")

// ConfigureLogging sets the root log level, e.g. "DEBUG" or "WARNING".
func ConfigureLogging(level string) error {
	if level == "" {
		level = "INFO"
	}
	return errors.Annotate(loggo.ConfigureLoggers("<root>="+level), "configure logging")
}

// App holds the wired services of one process.
type App struct {
	Config  config.App
	Backend store.Backend
	Clock   clock.Clock
	Signer  auth.Signer

	Audit      *audit.Log
	Directory  *directory.Service
	Notify     *notify.Sink
	Attendance *attendance.Service
	Grading    *grading.Service
	Sessions   *session.Manager
	Backup     *backup.Service
	Seeder     *seed.Seeder

	Queue      queue.Queue
	Outbox     *mail.Outbox
	Relay      *mail.Relay
	Dispatcher *mail.Dispatcher

	redis *redis.Client
}

// New opens the configured store and queue and wires every service.
func New(cfg config.App) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := store.Open(store.Options{
		Backend:     cfg.StoreBackend,
		BoltPath:    cfg.BoltPath,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "open %s store", cfg.StoreBackend)
	}

	var client *redis.Client
	if cfg.QueueBackend == "redis" {
		client = store.NewRedis(cfg.RedisAddr).Client
	}
	q, err := queue.New(cfg.QueueBackend, client, cfg.QueueKey)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	a := Wire(cfg, b, q, clock.WallClock, ident.UUID{})
	a.redis = client
	return a, nil
}

// Wire builds the services over an already opened backend and queue.
func Wire(cfg config.App, b store.Backend, q queue.Queue, clk clock.Clock, ids ident.Generator) *App {
	a := &App{
		Config:  cfg,
		Backend: b,
		Clock:   clk,
		Queue:   q,
		Signer: auth.Signer{
			Issuer:     cfg.JWTIssuer,
			Key:        cfg.JWTSigningKey,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
			Now:        clk.Now,
		},
	}

	a.Audit = audit.New(b, ids, clk)
	a.Directory = directory.NewService(b, a.Audit, clk)
	a.Notify = notify.NewSink(b, ids, clk)
	a.Outbox = mail.NewOutbox(q)

	repo := attendance.NewRepository(b)
	a.Attendance = attendance.NewService(repo, a.Directory, a.Notify, a.Audit, a.Outbox, ids, clk)
	a.Grading = grading.NewService(b, a.Directory, a.Notify, a.Audit, a.Outbox, ids, clk,
		grading.Options{GradeEmails: cfg.GradeEmails})
	a.Sessions = session.NewManager(a.Directory, a.Audit, a.Signer)

	a.Backup = backup.New(b, clk,
		a.Directory.Users(),
		a.Directory.CoursesCollection(),
		repo.Collection(),
		a.Grading.Collection(),
		a.Notify.Collection(),
		a.Audit.Collection(),
	)
	a.Seeder = seed.New(b, seed.Stores{
		Users:         a.Directory.Users(),
		Courses:       a.Directory.CoursesCollection(),
		Attendance:    repo.Collection(),
		Grades:        a.Grading.Collection(),
		Notifications: a.Notify.Collection(),
		Audit:         a.Audit.Collection(),
	}, ids, clk, rand.New(rand.NewSource(clk.Now().UnixNano())))

	provider := mail.NewProvider(cfg.EmailProvider, cfg.EmailFrom,
		cfg.ResendAPIKey, cfg.ResendURL, cfg.SendGridAPIKey, cfg.SendGridHost)
	a.Relay = mail.NewRelay(provider)

	a.Dispatcher = mail.NewDispatcher(mail.NewDeliverer(cfg.RelayURL, provider), mail.RetryPolicy{
		Attempts: cfg.EmailAttempts,
		Delay:    cfg.EmailDelay,
		MaxDelay: cfg.EmailMaxDelay,
	}, clk)
	return a
}

// SeedIfEnabled seeds an empty store when the configuration asks for it.
func (a *App) SeedIfEnabled(ctx context.Context) error {
	if !a.Config.SeedOnStart {
		return nil
	}
	wrote, err := a.Seeder.Seed(ctx, false)
	if err != nil {
		return errors.Annotate(err, "seed on start")
	}
	if wrote {
		logger.Infof("seeded demo data")
	}
	return nil
}

// Healthy reports whether the store answers a read within a second.
func (a *App) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := store.Flag(ctx, a.Backend, store.SeededKey)
	return err == nil
}

// Close releases the store and any queue connection.
func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.Backend.Close()
}
