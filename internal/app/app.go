package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/httpserver"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/memstore"
	"github.com/videotube/backend/internal/middleware"
)

// Run bootstraps the VideoTube backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return runMigrations(ctx, cfg, args[1:])
	case "seed":
		return runSeed(ctx, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	deps, err := buildDependencies(ctx, st, cfg)
	if err != nil {
		return err
	}
	deps.Metrics = promhttp.Handler()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger, handlers.WriteError)(mux)

	srv := httpserver.New(cfg.AppPort, handler, cfg.ShutdownTimeout)

	logger.Info("starting http server", "addr", srv.Addr(), "store", cfg.StoreDriver, "media_uploads", cfg.ObjectStore.Enabled())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx, logger)
}

// openStores selects the persistence backend named by the configured driver.
func openStores(ctx context.Context, cfg config.Config) (stores, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		logging.FromContext(ctx).Warn("using in-memory store; data is lost on restart")
		return memoryStores(memstore.New()), func() {}, nil
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, nil, err
		}
		return postgresStores(pool), pool.Close, nil
	}
}
