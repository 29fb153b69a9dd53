package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/internal/services"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// SessionHandler serves the internal management surface. The surrounding
// business application fronts these routes and owns real user
// authentication, which is out of scope for this service.
type SessionHandler struct {
	db       *gorm.DB
	sessions *services.SessionService
}

func NewSessionHandler(db *gorm.DB, sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{db: db, sessions: sessions}
}

// Create opens a new review session and returns its invite link.
// POST /api/uat/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := h.sessions.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	actor := services.Actor{Type: models.ActorInternal, ID: session.OwnerID}
	services.Audit("session", "create", session.Title, actor, c.ClientIP())

	response.Created(c, gin.H{
		"session":     session,
		"invite_link": h.sessions.InviteLink(session),
	})
}

// List returns all sessions, newest first.
// GET /api/uat/sessions
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sessions)
}

// GetByID returns the session overview.
// GET /api/uat/sessions/:id
func (h *SessionHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	overview, err := h.sessions.Overview(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, overview)
}

// Delete removes a session and everything it owns.
// DELETE /api/uat/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.sessions.Delete(id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}
