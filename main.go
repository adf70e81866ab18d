package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/bloom/config"
	"github.com/Ramsey-B/bloom/internal/repositories/profilestore"
	"github.com/Ramsey-B/bloom/internal/repositories/socialgraph"
	"github.com/Ramsey-B/bloom/pkg/database"
	"github.com/Ramsey-B/bloom/pkg/events"
	"github.com/Ramsey-B/bloom/pkg/graph"
	"github.com/Ramsey-B/bloom/pkg/kafka"
	"github.com/Ramsey-B/bloom/pkg/matching"
	"github.com/Ramsey-B/bloom/pkg/middleware"
	"github.com/Ramsey-B/bloom/pkg/routes/health"
	"github.com/Ramsey-B/bloom/pkg/routes/matches"
	"github.com/Ramsey-B/bloom/pkg/startup"
	"github.com/Ramsey-B/bloom/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		_ = json.NewEncoder(os.Stdout).Encode(msg)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		ServiceName:  cfg.AppName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPProtocol: cfg.OTLPProtocol,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing; continuing without spans")
	}

	var db database.DB
	var graphClient *graph.Client
	var producer *kafka.Producer

	boot := startup.New(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			var err error
			db, err = database.Connect(ctx, database.ConnectConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				Username:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}

			driver, err := postgres.WithInstance(db.Unsafe().DB, &postgres.Config{})
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.Migrate(cfg.DatabaseName, driver)
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	if cfg.GraphEnabled {
		boot.AddDependency(&dependency{
			name: "graph",
			start: func(ctx context.Context) error {
				var err error
				graphClient, err = graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return err
				}
				return graphClient.VerifyConnectivity(ctx)
			},
			stop: func(ctx context.Context) error {
				if graphClient == nil {
					return nil
				}
				return graphClient.Close(ctx)
			},
		})
	}

	if cfg.KafkaEnabled {
		boot.AddDependency(&dependency{
			name: "kafka",
			start: func(ctx context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			stop: func(ctx context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	profiles := profilestore.New(db, logger)

	var socialGraph matching.SocialGraph
	if graphClient != nil {
		socialGraph = socialgraph.New(graphClient, logger)
	}

	var emitter matching.MatchEmitter
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
	}

	engine := matching.NewEngine(logger, profiles, socialGraph, emitter, matching.EngineConfig{
		DefaultLimit:             cfg.MatchDefaultLimit,
		MaxLimit:                 cfg.MatchMaxLimit,
		MinScore:                 cfg.MatchMinScore,
		HighQualityScore:         cfg.MatchHighQualityScore,
		SocialBonusPerConnection: cfg.SocialBonusPerConnection,
		SocialBonusCap:           cfg.SocialBonusCap,
		GraphCandidateLimit:      cfg.GraphCandidateLimit,
		ScanOverfetchFactor:      matching.DefaultEngineConfig().ScanOverfetchFactor,
		AdapterTimeout:           cfg.AdapterTimeout,
	})

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create DI container")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		logger.WithError(err).Error("Failed to register logger")
		os.Exit(1)
	}
	if err := ectoinject.RegisterInstance[*matching.Engine](container, engine); err != nil {
		logger.WithError(err).Error("Failed to register match engine")
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	checker := health.NewChecker(db, graphClient, "1.0.0")
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	matches.Register(api.Group("/matches"))

	go func() {
		checker.SetReady(true)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop dependencies")
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to flush traces")
		}
	}
}

// dependency adapts start/stop closures to the startup.Dependency interface.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string          { return d.name }
func (d *dependency) DependsOn() []string      { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error {
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
