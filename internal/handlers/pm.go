package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opsboard/uatreview/internal/middleware"
	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/internal/services"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// PMHandler serves the owner/collaborator portal. Every route sits behind
// the token-resolution middleware; handlers re-check the permission matrix
// before mutating.
type PMHandler struct {
	db        *gorm.DB
	sessions  *services.SessionService
	checklist *services.ChecklistService
	runs      *services.TestRunService
	responses *services.ResponseService
	comments  *services.CommentService
}

func NewPMHandler(db *gorm.DB, sessions *services.SessionService) *PMHandler {
	return &PMHandler{
		db:        db,
		sessions:  sessions,
		checklist: services.NewChecklistService(db),
		runs:      services.NewTestRunService(db),
		responses: services.NewResponseService(db),
		comments:  services.NewCommentService(db),
	}
}

// permissions is echoed to the client so the UI can hide controls the
// server would reject anyway.
type permissions struct {
	Role     string `json:"role"`
	CanEdit  bool   `json:"can_edit"`
	ReadOnly bool   `json:"read_only"`
}

// Overview returns the full session payload for the PM portal.
// GET /api/uat/pm/:token
func (h *PMHandler) Overview(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	overview, err := h.sessions.Overview(principal.Session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var collaborator *models.SessionCollaborator
	if principal.Collaborator != nil {
		collaborator = principal.Collaborator
	}

	response.Success(c, gin.H{
		"collaborator":  collaborator,
		"session":       overview.Session,
		"items":         overview.Items,
		"guests":        overview.Guests,
		"collaborators": overview.Collaborators,
		"progress":      overview.Progress,
		"permissions": permissions{
			Role:     principal.Role,
			CanEdit:  principal.CanEdit(),
			ReadOnly: principal.ReadOnly(),
		},
	})
}

// UpdateSession updates session metadata.
// PATCH /api/uat/pm/:token/session
func (h *PMHandler) UpdateSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	var req services.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := h.sessions.Update(principal.Session.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// ActivateSession shares the session with reviewers.
// POST /api/uat/pm/:token/session/activate
func (h *PMHandler) ActivateSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	session, err := h.sessions.Activate(principal.Session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("session", "activate", session.Title, principal.Actor(), c.ClientIP())
	response.Success(c, session)
}

// CompleteSession closes the review cycle.
// POST /api/uat/pm/:token/session/complete
func (h *PMHandler) CompleteSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	session, err := h.sessions.Complete(principal.Session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("session", "complete", session.Title, principal.Actor(), c.ClientIP())
	response.Success(c, session)
}

// guestWithLink pairs a guest with their reviewer link so the PM can
// share it.
type guestWithLink struct {
	models.Guest
	ReviewLink string `json:"review_link"`
}

// InviteGuest registers an external reviewer.
// POST /api/uat/pm/:token/guests
func (h *PMHandler) InviteGuest(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	var req services.InviteGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	guest, err := h.sessions.InviteGuest(principal.Session.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("guest", "invite", guest.Email, principal.Actor(), c.ClientIP())
	response.Created(c, guestWithLink{Guest: *guest, ReviewLink: h.sessions.GuestLink(guest)})
}

// ListGuests returns the session's guests with reviewer links.
// GET /api/uat/pm/:token/guests
func (h *PMHandler) ListGuests(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	guests, err := h.sessions.ListGuests(principal.Session.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]guestWithLink, 0, len(guests))
	for _, g := range guests {
		out = append(out, guestWithLink{Guest: g, ReviewLink: h.sessions.GuestLink(&g)})
	}
	response.Success(c, out)
}

// InviteCollaborator registers an internal participant.
// POST /api/uat/pm/:token/collaborators
func (h *PMHandler) InviteCollaborator(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	var req services.InviteCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var invitedBy *uint
	if principal.Collaborator != nil {
		invitedBy = &principal.Collaborator.ID
	}

	collab, err := h.sessions.InviteCollaborator(principal.Session.ID, &req, invitedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("collaborator", "invite", collab.Email, principal.Actor(), c.ClientIP())
	response.Created(c, gin.H{
		"collaborator": collab,
		"portal_link":  h.sessions.CollaboratorLink(collab),
	})
}

// CreateItem adds a checklist item.
// POST /api/uat/pm/:token/items
func (h *PMHandler) CreateItem(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	var req services.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.checklist.CreateItem(principal.Session.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("item", "create", item.Title, principal.Actor(), c.ClientIP())
	response.Created(c, item)
}

// UpdateItem updates a checklist item.
// PATCH /api/uat/pm/:token/items/:id
func (h *PMHandler) UpdateItem(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.checklist.UpdateItem(principal.Session.ID, itemID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// DeleteItem removes an item and all dependent records.
// DELETE /api/uat/pm/:token/items/:id
func (h *PMHandler) DeleteItem(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.checklist.DeleteItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("item", "delete", strconv.FormatUint(uint64(itemID), 10), principal.Actor(), c.ClientIP())
	response.Success(c, gin.H{"deleted": itemID})
}

// DuplicateItem clones an item and its steps.
// POST /api/uat/pm/:token/items/:id/duplicate
func (h *PMHandler) DuplicateItem(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	clone, err := h.checklist.DuplicateItem(principal.Session.ID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("item", "duplicate", clone.Title, principal.Actor(), c.ClientIP())
	response.Created(c, clone)
}

// ResolveItem marks an item resolved after remediation.
// POST /api/uat/pm/:token/items/:id/resolve
func (h *PMHandler) ResolveItem(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	item, err := h.checklist.MarkItemResolved(principal.Session.ID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	services.Audit("item", "resolve", item.Title, principal.Actor(), c.ClientIP())
	response.Success(c, item)
}

type reorderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// ReorderItems renumbers the session's checklist.
// PUT /api/uat/pm/:token/item-order
func (h *PMHandler) ReorderItems(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.checklist.ReorderItems(principal.Session.ID, req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"reordered": len(req.IDs)})
}

// CreateStep adds a step to an item.
// POST /api/uat/pm/:token/items/:id/steps
func (h *PMHandler) CreateStep(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.CreateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	step, err := h.checklist.CreateStep(principal.Session.ID, itemID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, step)
}

// UpdateStep updates a step.
// PATCH /api/uat/pm/:token/items/:id/steps/:stepId
func (h *PMHandler) UpdateStep(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseID(c, "stepId")
	if !ok {
		return
	}

	var req services.UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	step, err := h.checklist.UpdateStep(principal.Session.ID, itemID, stepID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, step)
}

// DeleteStep removes a step.
// DELETE /api/uat/pm/:token/items/:id/steps/:stepId
func (h *PMHandler) DeleteStep(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	stepID, ok := parseID(c, "stepId")
	if !ok {
		return
	}

	if err := h.checklist.DeleteStep(principal.Session.ID, itemID, stepID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": stepID})
}

// ReorderSteps renumbers an item's steps.
// PUT /api/uat/pm/:token/items/:id/step-order
func (h *PMHandler) ReorderSteps(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if !principal.CanEdit() {
		response.Forbidden(c, "insufficient permissions")
		return
	}

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.checklist.ReorderSteps(principal.Session.ID, itemID, req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"reordered": len(req.IDs)})
}

// RunHistory returns all runs for an item.
// GET /api/uat/pm/:token/items/:id/runs
func (h *PMHandler) RunHistory(c *gin.Context) {
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

// ListResponses returns an item's guest verdicts in submission order.
// GET /api/uat/pm/:token/items/:id/responses
func (h *PMHandler) ListResponses(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.checklist.GetItem(principal.Session.ID, itemID); err != nil {
		response.Error(c, err)
		return
	}

	responses, err := h.responses.ListByItem(itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, responses)
}

// ListComments returns an item's discussion thread.
// GET /api/uat/pm/:token/items/:id/comments
func (h *PMHandler) ListComments(c *gin.Context) {
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

// CreateComment posts to an item's thread. Viewers are read-only.
// POST /api/uat/pm/:token/items/:id/comments
func (h *PMHandler) CreateComment(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal.ReadOnly() {
		response.Forbidden(c, "viewers cannot comment")
		return
	}

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

// parseID reads a numeric path parameter, responding with 400 on garbage.
func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+param)
		return 0, false
	}
	return uint(id), true
}
