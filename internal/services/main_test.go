package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database migrated with the
// full schema. cache=shared with a single connection keeps the database
// alive across the pooled handles gorm opens.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Session{},
		&models.Guest{},
		&models.SessionCollaborator{},
		&models.ChecklistItem{},
		&models.ChecklistItemStep{},
		&models.TestRun{},
		&models.TestStepResult{},
		&models.Response{},
		&models.Comment{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// seedSession creates an active session for tests.
func seedSession(t *testing.T, db *gorm.DB) *models.Session {
	t.Helper()
	session := &models.Session{
		Title:       "Release 2.4 acceptance",
		Status:      models.SessionActive,
		InviteToken: utils.NewAccessToken(),
		OwnerID:     1,
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session
}

// seedGuest registers a guest reviewer on the session.
func seedGuest(t *testing.T, db *gorm.DB, sessionID uint, email string) *models.Guest {
	t.Helper()
	guest := &models.Guest{
		SessionID:   sessionID,
		Email:       email,
		Name:        "Guest " + email,
		AccessToken: utils.NewAccessToken(),
	}
	if err := db.Create(guest).Error; err != nil {
		t.Fatalf("failed to seed guest: %v", err)
	}
	return guest
}

// seedItem creates a checklist item with the given number of required test
// steps.
func seedItem(t *testing.T, db *gorm.DB, sessionID uint, stepCount int) (*models.ChecklistItem, []models.ChecklistItemStep) {
	t.Helper()
	item := &models.ChecklistItem{
		SessionID: sessionID,
		Title:     "Checkout flow",
		Status:    models.ItemOpen,
		SortOrder: 1,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}

	steps := make([]models.ChecklistItemStep, 0, stepCount)
	for i := 0; i < stepCount; i++ {
		step := models.ChecklistItemStep{
			ItemID:     item.ID,
			Title:      fmt.Sprintf("Step %d", i+1),
			StepType:   models.StepTypeTest,
			SortOrder:  i + 1,
			IsRequired: true,
		}
		if err := db.Create(&step).Error; err != nil {
			t.Fatalf("failed to seed step: %v", err)
		}
		steps = append(steps, step)
	}
	return item, steps
}

func internalActor() Actor {
	return Actor{Type: models.ActorInternal, ID: 1, Name: "PM"}
}

func guestActor(guest *models.Guest) Actor {
	return Actor{Type: models.ActorGuest, ID: guest.ID, Name: guest.Name}
}
