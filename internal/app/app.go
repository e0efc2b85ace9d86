package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NDK-Games/AITaskBot/internal/config"
	"github.com/NDK-Games/AITaskBot/internal/domain"
	"github.com/NDK-Games/AITaskBot/internal/scheduler"
	"github.com/NDK-Games/AITaskBot/internal/store"
	"github.com/NDK-Games/AITaskBot/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg      config.Config
	log      *zap.Logger
	bot      *tgbotapi.BotAPI
	registry *prometheus.Registry
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{cfg: cfg, log: log, bot: bot, registry: reg}, nil
}

// Run serves until SIGINT/SIGTERM or ctx cancellation. A failing component
// stops the others.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting aitaskbot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("tick", a.cfg.TickInterval),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath, a.log.Named("store"))
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	accounts, err := config.LoadRoster(a.cfg.AccountsFile)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if err := seedAccounts(ctx, repo, accounts, a.log); err != nil {
		return err
	}

	zones := domain.NewZoneResolver(a.log.Named("tz"), a.cfg.DefaultZone())
	a.log.Info("default time zone", zap.String("zone", zones.Fallback().Name()))

	vacations := scheduler.NewVacationRegistry()
	router := telegram.NewRouter(telegram.Options{
		Bot:       a.bot,
		Repo:      repo,
		Vacations: vacations,
		Log:       a.log.Named("telegram"),
		Cooldown:  a.cfg.ReportCooldown,
	})
	sched := scheduler.New(scheduler.Options{
		Roster:    repo,
		Reports:   repo,
		Sender:    router,
		Vacations: vacations,
		Zones:     zones,
		Metrics:   scheduler.NewMetrics(a.registry),
		Log:       a.log.Named("scheduler"),
		Interval:  a.cfg.TickInterval,
	})
	httpSrv := newHTTPServer(a.cfg.HTTPAddr, repo.Ping, a.registry)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case upd, ok := <-updCh:
				if !ok {
					return nil
				}
				router.HandleUpdate(gctx, upd)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown signal received")
		a.bot.StopReceivingUpdates()

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		a.log.Error("stopped with error", zap.Error(err))
		return err
	}
	a.log.Info("stopped")
	return nil
}

// seedAccounts upserts the roster file entries; accounts added with commands
// are left alone.
func seedAccounts(ctx context.Context, repo store.Repo, accounts []domain.Account, log *zap.Logger) error {
	for i := range accounts {
		if err := repo.UpsertAccount(ctx, &accounts[i]); err != nil {
			return fmt.Errorf("seed account %d: %w", accounts[i].TelegramUserID, err)
		}
	}
	if len(accounts) > 0 {
		log.Info("roster seeded", zap.Int("accounts", len(accounts)))
	}
	return nil
}

func newHTTPServer(addr string, health func(context.Context) error, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := health(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}
