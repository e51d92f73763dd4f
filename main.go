package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"propTradeSim/config"
	"propTradeSim/internal/adapters/httpapi"
	"propTradeSim/internal/adapters/logger"
	"propTradeSim/internal/adapters/sqlite"
	"propTradeSim/internal/app"
	"propTradeSim/internal/execution"
	"propTradeSim/internal/marketdata"
	"propTradeSim/internal/ports"
	"propTradeSim/internal/position"
	"propTradeSim/internal/risk"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "json" {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize JSON logger: %v", err)
		}
		defer zl.Sync()
		appLogger = zl
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Market Data Generator
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	generator, err := marketdata.NewGenerator(marketdata.Config{
		Contracts:      marketdata.DefaultContracts(),
		CandleInterval: cfg.CandleInterval,
		HistoryLimit:   cfg.HistoryCandles,
		Seed:           seed,
		Logger:         appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data generator: %v", err)
	}
	appLogger.Info(context.Background(), "Market data generator initialized", map[string]interface{}{"symbols": generator.Symbols(), "seed": seed})

	// 5. Initialize Risk Engine
	riskEngine, err := risk.NewEngine(risk.Config{
		Plan:        cfg.Plan(),
		DayBoundary: cfg.DayBoundaryTZ,
		Logger:      appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk engine: %v", err)
	}

	// Restore persisted accounts so a restart keeps evaluation state.
	accounts, err := repo.FindAllAccounts(context.Background())
	if err != nil {
		log.Fatalf("FATAL: Failed to load persisted accounts: %v", err)
	}
	for _, acct := range accounts {
		riskEngine.Restore(acct)
	}
	appLogger.Info(context.Background(), "Accounts restored", map[string]interface{}{"count": len(accounts)})

	// 6. Initialize Execution Engine and Position Aggregator
	execEngine, err := execution.NewEngine(execution.Config{
		Prices: generator,
		Gate:   riskEngine,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize execution engine: %v", err)
	}
	aggregator, err := position.NewAggregator(generator, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position aggregator: %v", err)
	}

	// 7. Initialize Application Service
	service, err := app.NewService(app.Config{
		Logger:    appLogger,
		Market:    generator,
		Engine:    execEngine,
		Positions: aggregator,
		Risk:      riskEngine,
		Repos: app.Repositories{
			Orders:     repo,
			Executions: repo,
			Accounts:   repo,
		},
		MonitorInterval: cfg.MonitorInterval,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize simulation service: %v", err)
	}

	// 8. Initialize HTTP API
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:    cfg.HTTPAddr,
		Service: service,
		Logger:  appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
	}

	// 9. Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Run(ctx)
	}()

	if err := server.Run(ctx); err != nil {
		appLogger.Error(context.Background(), err, "HTTP server exited with error")
		log.Fatalf("FATAL: HTTP server exited with error: %v", err)
	}
	if err := <-errCh; err != nil {
		appLogger.Error(context.Background(), err, "Simulation service exited with error")
		log.Fatalf("FATAL: Simulation service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
