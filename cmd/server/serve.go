package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/internal/httpapi"
	"github.com/wordduel/wordduel-backend/internal/hub"
	"github.com/wordduel/wordduel-backend/internal/words"
)

func serve(parent context.Context, cfg *Config) error {
	_ = godotenv.Load()

	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	list, err := words.Load(cfg.wordsFile)
	if err != nil {
		return fmt.Errorf("load words: %w", err)
	}
	log.Info("word list loaded",
		zap.Int("words", list.Size()), zap.Ints("lengths", list.Lengths()))

	deps := engine.Deps{
		Words: list,
		NewID: uuid.NewString,
		Now:   time.Now,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, log, deps, cfg.abandonGrace)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler: httpapi.SetupRoutes(h, list, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	h.Inbox() <- hub.ShutdownHub{}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
