// Command reconcile compares every user's object namespace with the
// metadata store and reports objects and images that have no counterpart.
// It exits with status 1 when any user is out of sync.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/leca/image-vault/internal/config"
	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/imagestore"
	"github.com/leca/image-vault/internal/metrics"
	"github.com/leca/image-vault/internal/model"
	"github.com/leca/image-vault/internal/storage"
)

var errOutOfSync = errors.New("stores out of sync")

func main() {
	workers := flag.Int("workers", 4, "users reconciled concurrently")
	username := flag.String("user", "", "reconcile a single user")
	flag.Parse()

	if err := run(*workers, *username); err != nil {
		if !errors.Is(err, errOutOfSync) {
			log.Error().Err(err).Msg("reconcile failed")
		}
		os.Exit(1)
	}
}

func run(workers int, username string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s object store: %w", cfg.Storage.Driver, err)
	}

	users, err := selectUsers(ctx, db, username)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	store := imagestore.New(db, objects, logger, metrics.New())

	var (
		mu    sync.Mutex
		dirty int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for _, user := range users {
		g.Go(func() error {
			rec, err := store.Reconcile(gctx, user)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", user.Username, err)
			}
			ev := logger.Info()
			if !rec.Clean() {
				ev = logger.Warn()
				mu.Lock()
				dirty++
				mu.Unlock()
			}
			ev.Str("username", rec.Username).
				Int("objects", rec.Objects).
				Int("images", rec.Images).
				Strs("orphan_objects", rec.OrphanObjects).
				Strs("orphan_images", rec.OrphanImages).
				Msg("reconciled")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Int("users", len(users)).Int("out_of_sync", dirty).Msg("done")
	if dirty > 0 {
		return errOutOfSync
	}
	return nil
}

func selectUsers(ctx context.Context, db database.Database, username string) ([]*model.UserInfo, error) {
	if username == "" {
		return db.ListUsers(ctx)
	}
	user, err := db.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return []*model.UserInfo{user}, nil
}
