// Package app wires the conversion service from its configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/api/middleware"
	"github.com/celestiaorg/docconv/internal/db"
	"github.com/celestiaorg/docconv/internal/db/repos"
	"github.com/celestiaorg/docconv/internal/events"
	"github.com/celestiaorg/docconv/internal/executor"
	"github.com/celestiaorg/docconv/internal/finalize"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/notify"
	"github.com/celestiaorg/docconv/internal/preconvert"
	"github.com/celestiaorg/docconv/internal/progress"
	"github.com/celestiaorg/docconv/internal/services"
	"github.com/celestiaorg/docconv/internal/worker"
	"github.com/celestiaorg/docconv/pkg/api/v1/handlers"
	"github.com/celestiaorg/docconv/pkg/api/v1/routes"
)

// NotifyPath is where the websocket status feed is served
const NotifyPath = "/ws"

// DefaultBodyLimit bounds uploaded documents
const DefaultBodyLimit = 256 * 1024 * 1024

const shutdownTimeout = 10 * time.Second

// App holds the running service
type App struct {
	cfg         *config.Config
	db          *gorm.DB
	bus         *events.Bus
	hub         *notify.Hub
	registry    *progress.Registry
	progress    *progress.Server
	coordinator *services.Coordinator
	api         *fiber.App
	notifySrv   *http.Server
}

// New builds every component described by cfg
func New(cfg *config.Config) (*App, error) {
	sslEnabled := cfg.Database.SSLEnabled
	gdb, err := db.New(db.Options{
		Driver:     cfg.Database.Driver,
		Host:       cfg.Database.Host,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		DBName:     cfg.Database.Name,
		Port:       cfg.Database.Port,
		SSLEnabled: &sslEnabled,
		Path:       cfg.Database.Path,
		LogLevel:   gormLogLevel(cfg.Log.Level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	uploader, err := finalize.NewUploader(cfg.Storage.Upload)
	if err != nil {
		return nil, fmt.Errorf("failed to configure uploader: %w", err)
	}

	runner := executor.New()
	bus := events.NewBus()
	hub := notify.NewHub()
	bus.Subscribe(events.EventJobUpdated, hub.HandleEvent)
	bus.Subscribe(events.EventJobProgress, hub.HandleEvent)

	registry := progress.NewRegistry()
	coordinator := services.NewCoordinator(services.Dependencies{
		Store:        repos.NewJobRepository(gdb),
		Registry:     registry,
		Preconverter: preconvert.New(runner, cfg.Preconversion.ToolPath, cfg.Preconversion.Timeout, cfg.Preconversion.ProfileRoot),
		Engine: worker.NewCommandEngine(runner, cfg.Conversion.ConverterCommand,
			worker.WithPollInterval(cfg.Conversion.AbortPollInterval),
		),
		Runner:    runner,
		Finalizer: finalize.New(cfg.Storage.OutputPath, cfg.Server.PublicContext, uploader),
		Publisher: bus,
	}, services.OptionsFromConfig(cfg))

	a := &App{
		cfg:         cfg,
		db:          gdb,
		bus:         bus,
		hub:         hub,
		registry:    registry,
		coordinator: coordinator,
		api:         NewAPI(coordinator, cfg.Storage.OutputPath),
	}
	if cfg.Conversion.Mode == config.ModeIsolated {
		a.progress = progress.NewServer(registry)
	}
	if cfg.Notify.Address != "" {
		mux := http.NewServeMux()
		mux.Handle(NotifyPath, hub)
		a.notifySrv = &http.Server{
			Addr:              cfg.Notify.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return a, nil
}

// NewAPI builds the public HTTP API over coordinator
func NewAPI(coordinator handlers.JobCoordinator, outputPath string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		BodyLimit:             DefaultBodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(middleware.Logger())

	jobHandler := handlers.NewJobHandlers(coordinator)
	routes.RegisterRoutes(app, jobHandler, &handlers.RPCHandler{JobHandlers: jobHandler})
	routes.RegisterOutputRoutes(app, outputPath)
	return app
}

// API returns the public fiber app
func (a *App) API() *fiber.App {
	return a.api
}

// Coordinator returns the job coordinator
func (a *App) Coordinator() *services.Coordinator {
	return a.coordinator
}

// Run serves until ctx is cancelled or a listener fails, then shuts everything down
func (a *App) Run(ctx context.Context) error {
	a.bus.Start(ctx)

	if _, err := a.coordinator.RecoverInterrupted(ctx); err != nil {
		logger.Warnf("Failed to recover interrupted jobs: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.progress != nil {
		g.Go(func() error {
			return a.progress.Listen(a.cfg.Progress.Address)
		})
	}
	if a.notifySrv != nil {
		g.Go(func() error {
			logger.Infof("Status feed listening on %s%s", a.cfg.Notify.Address, NotifyPath)
			if err := a.notifySrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Infof("API listening on %s", a.cfg.Server.Address)
		return a.api.Listen(a.cfg.Server.Address)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops accepting requests, interrupts running jobs and closes the store
func (a *App) Shutdown() error {
	var errs []error
	if err := a.api.ShutdownWithTimeout(shutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}

	a.coordinator.Close()
	a.registry.Close()

	if a.progress != nil {
		if err := a.progress.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("progress server: %w", err))
		}
	}
	if a.notifySrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.notifySrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status feed: %w", err))
		}
	}
	a.hub.Close()

	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("job store: %w", err))
		}
	}
	logger.Info("Shutdown complete")
	return errors.Join(errs...)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
