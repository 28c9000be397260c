package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/element-battle-backend/internal/arbiter"
	"github.com/DoyleJ11/element-battle-backend/internal/config"
	"github.com/DoyleJ11/element-battle-backend/internal/engine"
	"github.com/DoyleJ11/element-battle-backend/internal/feed"
	"github.com/DoyleJ11/element-battle-backend/internal/httpapi"
	"github.com/DoyleJ11/element-battle-backend/internal/hub"
	"github.com/DoyleJ11/element-battle-backend/internal/lobby"
	"github.com/DoyleJ11/element-battle-backend/internal/storage"
	"github.com/DoyleJ11/element-battle-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger depends on config
		fallback, _ := zap.NewProduction()
		fallback.Fatal("load config", zap.Error(err))
	}

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher feed.Publisher = feed.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = feed.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("battle feed enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() { err = multierr.Append(err, publisher.Close()) }()

	var archive storage.Recorder = storage.Nop{}
	if cfg.DatabaseURL != "" {
		rec, openErr := storage.Open(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		archive = rec
		log.Info("match archive enabled")
	}
	defer func() { err = multierr.Append(err, archive.Close()) }()

	judge := arbiter.New(arbiter.Config{
		URL:     cfg.ArbiterURL,
		APIKey:  cfg.ArbiterAPIKey,
		Model:   cfg.ArbiterModel,
		Timeout: cfg.ArbiterTimeout,
	})
	if _, disabled := judge.(arbiter.Disabled); disabled {
		log.Warn("ability arbitration disabled, battles use random powers")
	}

	var engineOpts []engine.Option
	if cfg.RoundType != "" {
		engineOpts = append(engineOpts, engine.WithRoundType(cfg.RoundType))
	}

	h := hub.NewHub(ctx, lobby.Deps{
		Judge:         judge,
		JudgeTimeout:  cfg.ArbiterTimeout,
		Feed:          publisher,
		Archive:       archive,
		Log:           log,
		EngineOptions: engineOpts,
	})
	defer h.Shutdown()

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, httpapi.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		WS: ws.Options{
			OriginPatterns:  originPatterns(cfg.AllowedOrigins),
			ReadIdleTimeout: cfg.ReadIdleTimeout,
			EventsPerSecond: cfg.EventsPerSecond,
			EventBurst:      cfg.EventBurst,
		},
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// originPatterns strips schemes; websocket.Accept matches on host only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}
