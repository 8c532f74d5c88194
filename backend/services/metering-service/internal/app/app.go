package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "submeter/backend/libs/redis"
	"submeter/backend/services/metering-service/internal/config"
	"submeter/backend/services/metering-service/internal/coordinator"
	"submeter/backend/services/metering-service/internal/db"
	httpserver "submeter/backend/services/metering-service/internal/http"
	"submeter/backend/services/metering-service/internal/http/handlers"
	"submeter/backend/services/metering-service/internal/http/middleware"
	"submeter/backend/services/metering-service/internal/meter"
	"submeter/backend/services/metering-service/internal/redisstore"
	"submeter/backend/services/metering-service/internal/registry"
	"submeter/backend/services/metering-service/internal/repository"
	"submeter/backend/services/metering-service/internal/scheduler"
	"submeter/backend/services/metering-service/internal/sink"
	"submeter/backend/services/metering-service/internal/ws"
)

const (
	schemaTimeout  = 10 * time.Second
	journalTimeout = 3 * time.Second
)

// App wires metering-service dependencies.
type App struct {
	server      *httpserver.Server
	handler     http.Handler
	coord       *coordinator.Coordinator
	hub         *ws.Hub
	settlement  *scheduler.MonthlySettlement
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph. Postgres and Redis are optional.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	limits, err := cfg.Limits()
	if err != nil {
		return nil, err
	}

	a := &App{logger: logger}

	hub := ws.NewHub(cfg.Events.PingInterval, cfg.Events.WriteTimeout, logger)
	opts := []coordinator.Option{coordinator.WithLimits(limits)}

	var history handlers.HistorySource
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN)
		cancel()
		if err != nil {
			return nil, err
		}
		a.db = sqlDB
		journal := repository.NewJournal(repository.NewSettlementRepository(sqlDB), journalTimeout, logger)
		opts = append(opts, coordinator.WithJournal(journal))
		history = journal
	} else {
		logger.Info("settlement journal disabled, no database dsn")
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = redisClient
		opts = append(opts, coordinator.WithPublisher(redisstore.NewSnapshotStore(redisClient, cfg.SnapshotTTL(), logger)))
	}

	coord := coordinator.New(registry.NewMemoryRegistry(), sink.Fanout{sink.NewZapSink(logger), hub}, opts...)
	if err := seedMeters(coord, cfg.Meters); err != nil {
		a.Close()
		return nil, err
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Meters:        handlers.NewMetersHandlers(coord, history, logger),
		Events:        hub.HandleWS,
		HealthHandler: handlers.NewHealthHandler(hub.Subscribers),
	}, middleware.AdminAuth(cfg.Auth.JWTSecret))
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("admin endpoints are not protected, no jwt secret configured")
	}

	a.handler = middleware.Chain(router,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), a.handler, logger)
	a.coord = coord
	a.hub = hub
	if cfg.Settlement.Enabled {
		a.settlement = scheduler.NewMonthlySettlement(coord, cfg.Settlement.CheckInterval, time.Now, logger)
	}
	return a, nil
}

func seedMeters(coord *coordinator.Coordinator, seeds []config.SeedMeter) error {
	for _, seed := range seeds {
		policy, err := meter.PolicyByName(seed.Policy)
		if err != nil {
			return fmt.Errorf("seed meter %q: %w", seed.ID, err)
		}
		balance, err := seed.BalanceDecimal()
		if err != nil {
			return fmt.Errorf("seed meter %q: %w", seed.ID, err)
		}
		if _, err := coord.AddMeter(seed.ID,
			coordinator.WithPolicy(policy),
			coordinator.WithConsumption(seed.Consumption),
			coordinator.WithBalance(balance),
		); err != nil {
			return fmt.Errorf("seed meter %q: %w", seed.ID, err)
		}
	}
	return nil
}

// Coordinator exposes the meter coordinator.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coord
}

// Handler returns the full HTTP handler, middleware included.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts the event hub, the settlement scheduler and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hub.Start(ctx)
	}()
	if a.settlement != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.settlement.Start(ctx)
		}()
	}

	err := a.server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
