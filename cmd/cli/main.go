package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/certhub/internal/buildinfo"
	"github.com/dmitrijs2005/certhub/internal/client/authapi"
	"github.com/dmitrijs2005/certhub/internal/client/cli"
	"github.com/dmitrijs2005/certhub/internal/client/config"
	"github.com/dmitrijs2005/certhub/internal/client/gateway"
	"github.com/dmitrijs2005/certhub/internal/client/session"
	"github.com/dmitrijs2005/certhub/internal/client/storage"
	"github.com/dmitrijs2005/certhub/internal/filex"
	"github.com/dmitrijs2005/certhub/internal/logging"

	_ "github.com/joho/godotenv/autoload"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		log.Fatalf("%v", err)
	}
	db, err := storage.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	store := session.New(
		authapi.New(cfg.APIBaseURL, authapi.WithHTTPClient(httpClient)),
		session.NewSQLitePersister(db),
		session.WithLogger(logger.With("component", "session")),
		session.WithRefreshMargin(cfg.RefreshMargin),
		session.WithFallbackInterval(cfg.FallbackCheckInterval),
		session.WithLogoutTimeout(cfg.LogoutTimeout),
		session.WithRefreshTimeout(cfg.RequestTimeout),
		session.WithRestoreDegraded(cfg.RestoreDegraded),
	)
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logger.Warn(ctx, "starting without a session", "error", err)
	}

	gw := gateway.New(cfg.APIBaseURL, store,
		gateway.WithHTTPClient(httpClient),
		gateway.WithLogger(logger.With("component", "gateway")),
	)

	cli.NewApp(store, gw, logger).Run(ctx)
}
