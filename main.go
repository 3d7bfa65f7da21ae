package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/api"
	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/auth"
	"github.com/YousefHassab/Progettino-Natale/internal/config"
	"github.com/YousefHassab/Progettino-Natale/internal/control"
	"github.com/YousefHassab/Progettino-Natale/internal/database"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/game"
	"github.com/YousefHassab/Progettino-Natale/internal/limits"
	"github.com/YousefHassab/Progettino-Natale/internal/rng"
	"github.com/YousefHassab/Progettino-Natale/internal/wallet"
	"github.com/YousefHassab/Progettino-Natale/pkg/profilestore"
)

func main() {
	log.Println("🎰 Casino - Game Outcome Engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	auditSvc := audit.New(db.DB)
	rngSvc := rng.New()
	if _, err := rngSvc.HealthCheck(); err != nil {
		log.Fatalf("RNG health check failed: %v", err)
	}

	walletSvc := wallet.New(db.DB, auditSvc)
	authSvc := auth.New(db.DB, &cfg.Auth, auditSvc, domain.Credits(cfg.Game.StartingCredits))
	limitsSvc := limits.New(db.DB, auditSvc)
	controlSvc := control.New(db.DB, auditSvc)

	ctx := context.Background()
	if err := controlSvc.LoadState(ctx); err != nil {
		log.Fatalf("Failed to load control state: %v", err)
	}

	var profiles *profilestore.Client
	if cfg.ProfileStore.URL != "" {
		profiles = profilestore.NewClient(&profilestore.ClientConfig{
			BaseURL:   cfg.ProfileStore.URL,
			APIKey:    cfg.ProfileStore.APIKey,
			APISecret: cfg.ProfileStore.SecretKey,
			SiteCode:  "casino",
			Timeout:   cfg.ProfileStore.Timeout,
		})
		log.Printf("Profile store mirroring enabled: %s", cfg.ProfileStore.URL)
	}

	gameEngine := game.New(db.DB, rngSvc, walletSvc, auditSvc, limitsSvc, controlSvc, profiles, &cfg.Game)

	handler := api.New(authSvc, walletSvc, gameEngine, limitsSvc, controlSvc, rngSvc, cfg.Auth.OperatorKey)
	router := handler.SetupRouter()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting server on :%s...", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
