package main

import (
	"github.com/opsboard/uatreview/internal/config"
	"github.com/opsboard/uatreview/internal/handlers"
	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/internal/services"
	"github.com/opsboard/uatreview/pkg/logger"
)

// appServices holds the initialized services and handlers the router
// needs.
type appServices struct {
	access         *services.AccessService
	sessionHandler *handlers.SessionHandler
	pmHandler      *handlers.PMHandler
	guestHandler   *handlers.GuestHandler
	auditHandler   *handlers.AuditHandler
}

// bootstrap initializes the database, services and background schedulers.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()

	services.InitAuditLogger(db)
	services.StartAuditCleanupScheduler(db, cfg.Log.AuditRetentionDays)

	links := services.NewLinkBuilder(cfg.Portal.BaseURL)
	sessionService := services.NewSessionService(db, links)

	return &appServices{
		access:         services.NewAccessService(db),
		sessionHandler: handlers.NewSessionHandler(db, sessionService),
		pmHandler:      handlers.NewPMHandler(db, sessionService),
		guestHandler:   handlers.NewGuestHandler(db, sessionService),
		auditHandler:   handlers.NewAuditHandler(db),
	}
}
