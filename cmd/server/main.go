package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parish-portal/internal/authz"
	"parish-portal/internal/config"
	"parish-portal/internal/platform"
	"parish-portal/internal/portal"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, upstream: %s)", cfg.Server.Port, cfg.Upstream.BaseURL)

	// 2. Metrics registry and upstream client
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := platform.NewMetrics(promReg)
	client := platform.New(cfg.Upstream, metrics)

	// 3. Permission store: the platform's own tables, or a local mirror
	var store authz.Store
	switch cfg.Permissions.Driver {
	case "postgres":
		pgStore, err := authz.NewPGStore(ctx, cfg.Permissions.Database)
		if err != nil {
			log.Fatalf("Failed to connect to permissions database: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		log.Println("Permissions store: postgres mirror")
	default:
		store = authz.NewUpstreamStore(client)
		log.Println("Permissions store: upstream platform")
	}

	// 4. Application cache + resolver + role source
	cache := authz.NewAppCache(store, cfg.Permissions.CacheTTL())
	resolver := authz.NewResolver(cache, cfg.AdminRole)
	roleSource := authz.NewPlatformRoleSource(client)

	// 5. Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: portal.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 6. Infra endpoints
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	// 7. Route authorization for page routes
	authorizer := portal.NewAuthorizer(cache, resolver, roleSource, cfg.SessionSecret, cfg.AdminRole, nil)
	app.Use(authorizer.Pages())

	// 8. Auth routes (no session required)
	cred := platform.Credential{
		ClientID:     cfg.Upstream.ClientID,
		ClientSecret: cfg.Upstream.ClientSecret,
		TokenURL:     cfg.Upstream.TokenURL,
		Scope:        cfg.Upstream.Scope,
	}
	portal.RegisterAuthRoutes(app, portal.NewAuthHandler(client, cred, cfg.SessionSecret))

	// 9. Authenticated JSON API
	records := portal.NewRecordsHandler(client, resolver)
	sim := portal.NewSimulationHandler(cfg.AdminRole)
	portal.RegisterAPIRoutes(app, records, sim, authorizer.RequireIdentity())

	// 10. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}
