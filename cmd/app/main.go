// cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fitness_attest/pkg/config"
	"fitness_attest/pkg/consensus"
	"fitness_attest/pkg/data"
	"fitness_attest/pkg/fraud"
	"fitness_attest/pkg/identity"
	"fitness_attest/pkg/ledger"
	"fitness_attest/pkg/oracle"
	"fitness_attest/pkg/submission"
	"fitness_attest/pkg/sweeper"
	"fitness_attest/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	adminFlag  = flag.String("admin", "", "Admin principal (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug mode")
)

// App bundles the wired trust-layer components.
type App struct {
	auth     *identity.StaticAuthorizer
	ledger   *ledger.MemoryLedger
	registry *oracle.Registry
	detector *fraud.Detector
	engine   *consensus.Engine
	store    *submission.Store
	sweeper  *sweeper.Sweeper
	clock    *sweeper.ManualClock
	repo     data.Repository
	logger   *zap.Logger
}

func main() {
	flag.Parse()

	logger, err := initLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration",
			zap.String("path", *configFile),
			zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}

	if cfg.Sweeper.Enabled {
		if err := app.sweeper.Start(); err != nil {
			logger.Fatal("Failed to start sweeper", zap.Error(err))
		}
	}

	// Advance the logical clock one height per second. All deadline checks
	// remain lazy evaluations against whatever height a caller observes.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.clock.Advance(1)
			}
		}
	}()

	logger.Info("Trust layer started",
		zap.Uint64("minStake", cfg.Oracle.MinStake),
		zap.Uint32("quorumThreshold", cfg.Consensus.QuorumThreshold))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down")
	if cfg.Sweeper.Enabled {
		app.sweeper.Stop()
	}
	if app.repo != nil {
		app.persist(context.Background())
		if pg, ok := app.repo.(*data.PostgresRepository); ok {
			pg.Close()
		}
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	admin := cfg.Identity.Admin
	if *adminFlag != "" {
		admin = *adminFlag
	}
	if admin == "" {
		return nil, fmt.Errorf("admin principal not configured")
	}

	auth := identity.NewStaticAuthorizer(admin)
	l := ledger.NewMemoryLedger(logger)

	registry := oracle.NewRegistry(auth, l, logger,
		cfg.Oracle.MinStake, cfg.Oracle.RegistrationFee, cfg.Oracle.Treasury)

	detector, err := fraud.NewDetector(auth, logger, cfg.Fraud.Threshold, cfg.Fraud.AnomalyFactor)
	if err != nil {
		return nil, fmt.Errorf("creating fraud detector: %w", err)
	}

	engine := consensus.NewEngine(auth, registry, logger, consensus.Config{
		ResponseTimeout: cfg.Consensus.ResponseTimeout,
		MinConfidence:   cfg.Consensus.MinConfidence,
		QuorumThreshold: cfg.Consensus.QuorumThreshold,
	})

	store := submission.NewStore(auth, detector, logger)

	clock := sweeper.NewManualClock(0)
	sw := sweeper.NewSweeper(engine, clock, cfg.Sweeper.Schedule, logger)

	app := &App{
		auth:     auth,
		ledger:   l,
		registry: registry,
		detector: detector,
		engine:   engine,
		store:    store,
		sweeper:  sw,
		clock:    clock,
		logger:   logger,
	}

	if cfg.Database.URL != "" {
		repo, err := data.NewPostgresRepository(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting repository: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		app.repo = repo
	}

	return app, nil
}

// persist mirrors the in-memory state into the repository. Best-effort:
// the in-memory components stay authoritative.
func (a *App) persist(ctx context.Context) {
	for _, o := range a.registry.List() {
		if err := a.repo.SaveOracle(ctx, o); err != nil {
			a.logger.Error("Persisting oracle failed", zap.Uint64("oracleID", o.ID), zap.Error(err))
		}
	}
	for _, req := range a.engine.ExportRequests() {
		if err := a.repo.SaveRequest(ctx, req); err != nil {
			a.logger.Error("Persisting request failed", zap.Uint64("requestID", req.ID), zap.Error(err))
		}
		for _, resp := range a.engine.ExportResponses(req.ID) {
			if err := a.repo.SaveResponse(ctx, resp); err != nil {
				a.logger.Error("Persisting response failed", zap.Uint64("requestID", req.ID), zap.Error(err))
			}
		}
	}
	for _, sub := range a.store.Export() {
		if err := a.repo.SaveSubmission(ctx, sub); err != nil {
			a.logger.Error("Persisting submission failed", zap.Uint64("submissionID", sub.ID), zap.Error(err))
		}
	}
	for _, record := range a.detector.Export() {
		if err := a.repo.SaveFraudRecord(ctx, record); err != nil {
			a.logger.Error("Persisting fraud record failed", zap.String("user", record.User), zap.Error(err))
		}
	}
}

func initLogger(debug bool) (*zap.Logger, error) {
	logCfg := utils.DefaultLogConfig()
	if debug {
		logCfg.Level = "debug"
		logCfg.Debug = true
	}
	return utils.NewLogger(logCfg)
}
