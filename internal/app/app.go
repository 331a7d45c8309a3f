package app

import (
	"context"
	"fmt"
	"net/http"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App wires the wallet engine and its backing stores together once at
// startup. Assets and Wallet are the in-process API consumed by whatever
// hosts the engine; the HTTP surface it serves is operational only.
type App struct {
	Assets ports.AssetService
	Wallet ports.WalletService

	pool   *pgxpool.Pool
	rdb    *goredis.Client
	server *http.Server
	log    zerolog.Logger
}

// New builds the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting postgres: %w", err)
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting redis: %w", err)
	}

	assetRepo := pgStorage.NewAssetRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	balCache := redisStorage.NewBalanceCache(rdb)

	assetSvc := service.NewAssetService(assetRepo, transactor, logger.For(log, "asset-registry"))
	walletSvc := service.NewWalletService(
		assetRepo, ledgerRepo, txRepo, balCache, transactor, cfg.Retry,
		logger.For(log, "wallet-engine"),
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
		Logger: logger.For(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &App{
		Assets: assetSvc,
		Wallet: walletSvc,
		pool:   pool,
		rdb:    rdb,
		server: &http.Server{Addr: addr, Handler: router},
		log:    log,
	}, nil
}

// Serve runs the operational HTTP server until it is shut down.
func (a *App) Serve() error {
	a.log.Info().Str("addr", a.server.Addr).Msg("HTTP server listening")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and releases store connections.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.rdb.Close()
	a.pool.Close()
	return err
}
