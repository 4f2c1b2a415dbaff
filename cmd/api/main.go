package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/shopfabric/backend/internal/database"
	"github.com/shopfabric/backend/internal/di"
	"github.com/shopfabric/backend/internal/middleware"
	"github.com/shopfabric/backend/internal/response"
)

func main() {
	_ = godotenv.Load()

	app, cleanup, err := di.InitializeApplication()
	if err != nil {
		panic(err)
	}
	defer cleanup()

	app.Logger.Info("starting shopfabric domains api", "version", di.Version)

	if err := app.Config.Validate(); err != nil {
		app.Logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	migrationsPath := getMigrationsPath()
	if err := database.RunMigrations(app.DB, migrationsPath, app.Logger); err != nil {
		app.Logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := verifyDNSCredentials(app); err != nil {
		app.Logger.Error("dns provider credentials rejected", "error", err)
		os.Exit(1)
	}

	app.HealthHandler.Register(app.Server.App())
	app.MetricsHandler.Register(app.Server.App())
	app.DomainHandler.Register(app.Server.App())

	// Everything under /storefront is tenant traffic and only flows once the
	// requesting hostname validates end to end.
	storefront := app.Server.App().Group("/storefront",
		middleware.DomainGate(app.Orchestrator, app.Logger))
	storefront.Get("/", func(c *fiber.Ctx) error {
		return response.OK(c, fiber.Map{"hostname": c.Hostname(), "serving": true})
	})

	reconcileCtx, stopReconcile := context.WithCancel(context.Background())
	app.Reconciler.Start(reconcileCtx)

	go func() {
		if err := app.Server.Start(); err != nil {
			app.Logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopReconcile()
	app.Reconciler.Stop()

	if err := app.Server.Shutdown(); err != nil {
		app.Logger.Error("server forced to shutdown", "error", err)
	}

	app.Logger.Info("server stopped")
}

func verifyDNSCredentials(app *di.Application) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.DNSClient.VerifyCredentials(ctx)
}

func getMigrationsPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return "migrations"
	}

	execDir := filepath.Dir(execPath)

	possiblePaths := []string{
		filepath.Join(execDir, "migrations"),
		filepath.Join(execDir, "..", "..", "migrations"),
		"migrations",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "migrations"
}
