package services

import (
	"time"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var auditDB *gorm.DB

// InitAuditLogger wires the package-level audit writer. Audit writes are
// best-effort; a failed insert never fails the request that caused it.
func InitAuditLogger(db *gorm.DB) {
	auditDB = db
}

// Audit records a portal or admin mutation.
func Audit(module, action, message string, actor Actor, ip string) {
	if auditDB == nil {
		return
	}
	entry := &models.AuditLog{
		Module:    module,
		Action:    action,
		Message:   message,
		ActorType: actor.Type,
		IP:        ip,
		CreatedAt: time.Now(),
	}
	if actor.ID != 0 {
		id := actor.ID
		entry.ActorID = &id
	}
	if err := auditDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).
			Msg("failed to write audit log")
	}
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

type AuditListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	ActorType string `form:"actor_type"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type AuditListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.AuditLog `json:"items"`
}

func (s *AuditService) List(req *AuditListRequest) (*AuditListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.AuditLog
	var total int64

	query := s.db.Model(&models.AuditLog{})

	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.ActorType != "" {
		query = query.Where("actor_type = ?", req.ActorType)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &AuditListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes audit rows older than retentionDays and returns
// the number removed. retentionDays <= 0 disables cleanup.
func (s *AuditService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// StartAuditCleanupScheduler runs the retention sweep once at startup and
// then daily.
func StartAuditCleanupScheduler(db *gorm.DB, retentionDays int) *cron.Cron {
	service := NewAuditService(db)
	runAuditCleanup(service, retentionDays)

	c := cron.New()
	c.AddFunc("@daily", func() {
		runAuditCleanup(service, retentionDays)
	})
	c.Start()
	return c
}

func runAuditCleanup(service *AuditService, retentionDays int) {
	if retentionDays <= 0 {
		logger.Info().Msg("audit log cleanup disabled")
		return
	}
	deleted, err := service.CleanupOldLogs(retentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("audit log cleanup failed")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", retentionDays).
			Msg("audit log cleanup completed")
	}
}
