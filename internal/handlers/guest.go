package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/opsboard/uatreview/internal/middleware"
	"github.com/opsboard/uatreview/internal/services"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// GuestHandler serves the reviewer portal reached through guest access
// tokens.
type GuestHandler struct {
	db        *gorm.DB
	sessions  *services.SessionService
	checklist *services.ChecklistService
	runs      *services.TestRunService
	responses *services.ResponseService
	comments  *services.CommentService
}

func NewGuestHandler(db *gorm.DB, sessions *services.SessionService) *GuestHandler {
	return &GuestHandler{
		db:        db,
		sessions:  sessions,
		checklist: services.NewChecklistService(db),
		runs:      services.NewTestRunService(db),
		responses: services.NewResponseService(db),
		comments:  services.NewCommentService(db),
	}
}

// View returns the session as seen by the guest. Owner and collaborator
// tokens and participant emails are not exposed on this surface.
// GET /api/uat/r/:accessToken
func (h *GuestHandler) View(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	overview, err := h.sessions.Overview(principal.Session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	session := overview.Session
	session.InviteToken = ""

	response.Success(c, gin.H{
		"guest":    principal.Guest,
		"session":  session,
		"items":    overview.Items,
		"progress": overview.Progress,
	})
}

// SubmitStepResult records a step outcome in the item's current run,
// opening run 1 or a remediation retest as needed.
// POST /api/uat/r/:accessToken/items/:id/steps/:stepId/result
func (h *GuestHandler) SubmitStepResult(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseID(c, "stepId")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	var req services.SubmitStepResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, run, err := h.runs.SubmitStepResult(itemID, stepID, principal.Actor(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"result": result, "run": run})
}

// SubmitResponse records the guest's item-level verdict.
// POST /api/uat/r/:accessToken/items/:id/response
func (h *GuestHandler) SubmitResponse(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	var req services.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.responses.Submit(itemID, principal.Guest.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("response", "submit", resp.Status, principal.Actor(), c.ClientIP())
	response.Success(c, resp)
}

// ActiveRun returns the item's open run with its results so far, or null
// when no run is open.
// GET /api/uat/r/:accessToken/items/:id/run
func (h *GuestHandler) ActiveRun(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	run, err := h.runs.ActiveRun(itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, run)
}

// RunHistory returns the run history for an item.
// GET /api/uat/r/:accessToken/items/:id/runs
func (h *GuestHandler) RunHistory(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	runs, err := h.runs.RunHistory(itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, runs)
}

// ListComments returns an item's discussion thread.
// GET /api/uat/r/:accessToken/items/:id/comments
func (h *GuestHandler) ListComments(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	comments, err := h.comments.ListByItem(itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, comments)
}

// CreateComment posts to an item's thread as the guest.
// POST /api/uat/r/:accessToken/items/:id/comments
func (h *GuestHandler) CreateComment(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	var req services.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	comment, err := h.comments.Create(itemID, principal.Actor(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}
