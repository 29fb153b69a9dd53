package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/opsboard/uatreview/internal/services"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

type AuditHandler struct {
	db      *gorm.DB
	service *services.AuditService
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db, service: services.NewAuditService(db)}
}

// List returns paginated audit logs.
// GET /api/uat/audit-logs
func (h *AuditHandler) List(c *gin.Context) {
	var req services.AuditListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
