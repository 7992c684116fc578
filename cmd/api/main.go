package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/JoshiAarya/ai-ticket-app/internal/config"
	"github.com/JoshiAarya/ai-ticket-app/internal/database"
	"github.com/JoshiAarya/ai-ticket-app/internal/events"
	"github.com/JoshiAarya/ai-ticket-app/internal/handlers"
	"github.com/JoshiAarya/ai-ticket-app/internal/notify"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository/memory"
	"github.com/JoshiAarya/ai-ticket-app/internal/repository/postgres"
	"github.com/JoshiAarya/ai-ticket-app/internal/router"
	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/triage"
	"github.com/JoshiAarya/ai-ticket-app/internal/workflow"
	"github.com/JoshiAarya/ai-ticket-app/pkg/logger"
)

const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

type stores struct {
	users   repository.UserRepository
	tickets repository.TicketRepository
	queue   events.Queue
	db      handlers.Pinger
	close   func()
}

func main() {
	configPath := pflag.String("config", "", "optional YAML config file")
	mode := pflag.String("mode", modeAll, "what to run: api, worker or all")
	migrate := pflag.Bool("migrate", false, "apply the embedded schema on start")
	pflag.Parse()

	// config + logger
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	l := logger.New(cfg.Env)

	switch *mode {
	case modeAPI, modeWorker, modeAll:
	default:
		l.Fatal().Str("mode", *mode).Msg("unknown mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, *migrate, l)
	if err != nil {
		l.Fatal().Err(err).Msg("storage init failed")
	}
	defer st.close()

	if cfg.DBURL == "" && *mode != modeAll {
		l.Warn().Str("mode", *mode).Msg("in-memory queue is process-local, running api and worker together")
		*mode = modeAll
	}

	var wg sync.WaitGroup
	if *mode == modeWorker || *mode == modeAll {
		w := newWorker(cfg, st, l)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error().Err(err).Msg("event worker stopped")
			}
		}()
	}

	if *mode == modeAPI || *mode == modeAll {
		serve(ctx, cfg, st, l)
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	l.Info().Msg("shutdown complete")
}

func openStores(ctx context.Context, cfg config.Config, migrate bool, l zerolog.Logger) (*stores, error) {
	if cfg.DBURL == "" {
		l.Warn().Msg("DB_DSN not set, using in-memory store")
		users := memory.NewUserRepo()
		return &stores{
			users:   users,
			tickets: memory.NewTicketRepo(users),
			queue:   events.NewMemoryQueue(),
			close:   func() {},
		}, nil
	}

	pool, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		l.Info().Msg("schema applied")
	}
	return &stores{
		users:   postgres.NewUserRepo(pool),
		tickets: postgres.NewTicketRepo(pool),
		queue:   postgres.NewOutboxRepo(pool),
		db:      pool,
		close:   pool.Close,
	}, nil
}

func newWorker(cfg config.Config, st *stores, l zerolog.Logger) *events.Worker {
	var classifier triage.Classifier = triage.Disabled{}
	if cfg.AI.APIKey != "" {
		classifier = triage.NewOpenAIClient(cfg.AI)
	} else {
		l.Warn().Msg("AI_API_KEY not set, tickets get the fallback classification")
	}
	analyzer := triage.NewAnalyzer(classifier, triage.Policy(cfg.AI.FailurePolicy), l)

	var sender notify.Sender = notify.LogSender{Log: l}
	if cfg.SMTP.Host != "" {
		s, err := notify.NewSMTPSender(cfg.SMTP)
		if err != nil {
			l.Fatal().Err(err).Msg("smtp init failed")
		}
		sender = s
	}

	tr := workflow.NewTriage(st.tickets, st.users, analyzer, sender, workflow.Config{
		StepMaxAttempts: cfg.Worker.StepMaxAttempts,
		NotifyPolicy:    notify.Policy(cfg.SMTP.FailurePolicy),
	}, l)

	return events.NewWorker(st.queue, workflow.Handlers(tr, workflow.NewWelcome(sender)), events.Config{
		Consumer:     events.NewConsumerID(),
		PollInterval: cfg.Worker.PollInterval,
		LeaseTTL:     cfg.Worker.LeaseTTL,
		MaxAttempts:  cfg.Worker.MaxAttempts,
	}, l)
}

func serve(ctx context.Context, cfg config.Config, st *stores, l zerolog.Logger) {
	auth := service.NewAuthService(st.users, st.queue, cfg.SessionSecret, l)
	tickets := service.NewTicketService(st.tickets, st.queue, l)

	// http
	r := router.New(l, router.Deps{Auth: auth, Tickets: tickets, DB: st.db}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
