package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v3"

	"github.com/example/eshop/internal/config"
	"github.com/example/eshop/internal/database"
	"github.com/example/eshop/internal/handlers"
	"github.com/example/eshop/internal/middleware"
	"github.com/example/eshop/internal/routes"
	"github.com/example/eshop/internal/seed"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Usage:  "E-shop backend",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Run database migration",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := config.Load()
					db, err := database.Open(cfg.DatabaseURL, cfg.DBLogLevel)
					if err != nil {
						return err
					}
					if err := database.Migrate(db); err != nil {
						return err
					}
					log.Println("Migration complete")
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "Fill the catalog with demo data",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "categories", Value: 3, Usage: "number of leaf categories"},
					&cli.IntFlag{Name: "items", Value: 20, Usage: "number of items"},
					&cli.StringFlag{Name: "admin-email", Usage: "create a staff account with this email"},
					&cli.StringFlag{Name: "admin-password", Value: "changeme123", Usage: "password of the staff account"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := config.Load()
					db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)
					return seed.Run(ctx, db, seed.Options{
						Categories:    int(c.Int("categories")),
						Items:         int(c.Int("items")),
						AdminEmail:    c.String("admin-email"),
						AdminPassword: c.String("admin-password"),
					})
				},
			},
		},
	}
}

func serve(ctx context.Context, _ *cli.Command) error {
	cfg := config.Load()
	cfg.RequireSecret()
	db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)

	app := fiber.New(fiber.Config{
		AppName:      "E-shop Backend",
		ErrorHandler: handlers.ErrorHandler,
	})

	middleware.Setup(app, cfg)
	routes.Register(app, db, cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.AppPort)
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
