package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"minutehr/internal/db"
	"minutehr/internal/domain/audit"
	"minutehr/internal/domain/auth"
	"minutehr/internal/domain/permissions"
	"minutehr/internal/domain/settings"
	"minutehr/internal/platform/config"
	"minutehr/internal/platform/metrics"
	audithandler "minutehr/internal/transport/http/handlers/audit"
	authhandler "minutehr/internal/transport/http/handlers/auth"
	permissionshandler "minutehr/internal/transport/http/handlers/permissions"
	reportshandler "minutehr/internal/transport/http/handlers/reports"
	settingshandler "minutehr/internal/transport/http/handlers/settings"
	"minutehr/internal/transport/http/middleware"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			slog.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			slog.Error("seed failed", "err", err)
			os.Exit(1)
		}
	}

	settingsResolver := settings.NewResolver(settings.NewStore(pool))
	settingsResolver.ResizeCache(cfg.SettingsCacheSize)
	settingsResolver.SetFetchTimeout(cfg.SettingsTimeout)

	permResolver, err := permissions.NewResolver(permissions.DefaultPolicySet(), permissions.NewStore(pool))
	if err != nil {
		slog.Error("policy set rejected", "err", err)
		os.Exit(1)
	}
	if err := permResolver.LoadCatalog(ctx); err != nil {
		slog.Error("catalog load failed", "err", err)
		os.Exit(1)
	}

	auditSvc := audit.New(pool)
	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metricsz", func(w http.ResponseWriter, r *http.Request) {
			snapshot := collector.Snapshot()
			hits, misses := settingsResolver.CacheStats()
			snapshot["settingsCacheHits"] = hits
			snapshot["settingsCacheMisses"] = misses
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(snapshot)
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authH := authhandler.NewHandler(auth.NewStore(pool), auditSvc, cfg.JWTSecret, cfg.TokenTTL)
		r.Post("/auth/login", authH.HandleLogin)

		settingsH := settingshandler.NewHandler(settingsResolver, auditSvc)
		r.Route("/settings/{module}", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", settingsH.HandleGetModule)
			r.With(middleware.RequireAction(permResolver, "settings", permissions.ActionUpdate)).Put("/", settingsH.HandleSaveModule)
			r.Post("/refresh", settingsH.HandleRefresh)
			r.Get("/{key}", settingsH.HandleGetKey)
			r.Get("/{key}/check", settingsH.HandleCheck)
			r.With(middleware.RequireAction(permResolver, "settings", permissions.ActionUpdate)).Put("/{key}", settingsH.HandleSaveKey)
		})

		permH := permissionshandler.NewHandler(permResolver, auditSvc)
		r.Route("/permissions", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/me", permH.HandleMe)
			r.Post("/check", permH.HandleCheck)
			r.Post("/fields/check", permH.HandleFieldCheck)
			r.Get("/matrix", permH.HandleMatrix)
			r.Get("/gaps", permH.HandleGaps)
		})

		auditH := audithandler.NewHandler(auditSvc)
		r.Route("/audit", func(r chi.Router) {
			r.With(middleware.RequireAction(permResolver, "audit", permissions.ActionRead)).Get("/events", auditH.HandleListEvents)
			r.With(middleware.RequireAction(permResolver, "audit", permissions.ActionExport)).Get("/events/export", auditH.HandleExportEvents)
		})

		reportsH := reportshandler.NewHandler(settingsResolver, permResolver, auditSvc)
		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/permission-matrix.pdf", reportsH.HandlePermissionMatrixPDF)
			r.Get("/effective-settings.csv", reportsH.HandleSettingsCSV)
		})
	})

	slog.Info("server starting", "addr", cfg.Addr, "env", cfg.Environment)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
