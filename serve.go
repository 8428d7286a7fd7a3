package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"boop/server/internal/handlers"
	"boop/server/internal/ledger"
	"boop/server/internal/proximity"
	"boop/server/internal/routes"
	ws "boop/server/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	tracker, closePresence, err := openPresence(ctx)
	if err != nil {
		return err
	}
	defer closePresence()

	hub := ws.NewHub(logger)
	boopLog := ledger.New(st, st)
	engine := proximity.NewEngine(st, st, tracker, boopLog, ws.NewDispatcher(hub, logger), proximity.Config{
		AlertRadius:       cfg.AlertRadius,
		RealertInterval:   cfg.RealertInterval,
		IdempotencyWindow: cfg.IdempotencyWindow,
	}, logger)
	gateway := ws.NewGateway(hub, engine, st, tracker, cfg.AllowAnonymousJoin, logger)

	h := handlers.New(handlers.Deps{
		Users:    st,
		Groups:   st,
		BoopLog:  boopLog,
		Engine:   engine,
		Presence: tracker,
		Hub:      hub,
		Gateway:  gateway,
		Logger:   logger,
	})

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Boop API v1.0",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
	}))

	routes.SetupRoutes(ctx, app, h, routes.Options{
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowAnonymous: cfg.AllowAnonymousJoin,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			"port", cfg.Port,
			"store", cfg.StoreDriver,
			"presence", cfg.PresenceDriver,
			"alert_radius", cfg.AlertRadius)
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// presence must still be written after the signal cancelled ctx
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		gateway.Shutdown(drainCtx)
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}
