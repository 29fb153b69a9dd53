package services

import (
	"errors"
	"strings"
	"time"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/internal/utils"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// LinkBuilder renders reviewer and portal links. The base URL is injected
// from deployment configuration, never read from ambient environment
// state.
type LinkBuilder struct {
	baseURL string
}

func NewLinkBuilder(baseURL string) *LinkBuilder {
	return &LinkBuilder{baseURL: strings.TrimRight(baseURL, "/")}
}

// ReviewerLink is the link a guest opens: {baseURL}/r/{accessToken}.
func (b *LinkBuilder) ReviewerLink(accessToken string) string {
	return b.baseURL + "/r/" + accessToken
}

// PMLink is the owner/collaborator portal link.
func (b *LinkBuilder) PMLink(token string) string {
	return b.baseURL + "/pm/" + token
}

type SessionService struct {
	db    *gorm.DB
	links *LinkBuilder
}

func NewSessionService(db *gorm.DB, links *LinkBuilder) *SessionService {
	return &SessionService{db: db, links: links}
}

type CreateSessionRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	OwnerID     uint       `json:"owner_id" binding:"required"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type UpdateSessionRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type InviteGuestRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type InviteCollaboratorRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// Create opens a new review cycle in draft state and issues its invite
// token.
func (s *SessionService) Create(req *CreateSessionRequest) (*models.Session, error) {
	if req.Title == "" {
		return nil, response.NewBadRequest("title is required")
	}

	session := &models.Session{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.SessionDraft,
		InviteToken: utils.NewAccessToken(),
		Priority:    req.Priority,
		OwnerID:     req.OwnerID,
		DueDate:     req.DueDate,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) List() ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionService) GetByID(id uint) (*models.Session, error) {
	var session models.Session
	err := s.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Update(id uint, req *UpdateSessionRequest) (*models.Session, error) {
	session, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, response.NewBadRequest("title cannot be empty")
		}
		session.Title = *req.Title
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.Priority != nil {
		session.Priority = *req.Priority
	}
	if req.DueDate != nil {
		session.DueDate = req.DueDate
	}
	if req.ExpiresAt != nil {
		session.ExpiresAt = req.ExpiresAt
	}

	if err := s.db.Save(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Activate shares a draft session with reviewers.
func (s *SessionService) Activate(id uint) (*models.Session, error) {
	session, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return nil, response.NewBadRequest("session is already completed")
	}
	session.Status = models.SessionActive
	if err := s.db.Save(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Complete closes the review cycle and stamps completedAt.
func (s *SessionService) Complete(id uint) (*models.Session, error) {
	session, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	if err := s.db.Save(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes the session and every item, run, result, response,
// comment, guest and collaborator it owns.
func (s *SessionService) Delete(id uint) error {
	session, err := s.GetByID(id)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var itemIDs []uint
		if err := tx.Model(&models.ChecklistItem{}).Where("session_id = ?", session.ID).
			Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		for _, itemID := range itemIDs {
			if err := deleteItemCascade(tx, itemID); err != nil {
				return err
			}
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&models.Guest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&models.SessionCollaborator{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Session{}, session.ID).Error
	})
}

// InviteGuest registers an external reviewer and issues their access
// token. A session holds at most one guest per email; conflicts leave the
// original guest and token untouched.
func (s *SessionService) InviteGuest(sessionID uint, req *InviteGuestRequest) (*models.Guest, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, response.NewBadRequest("email is required")
	}

	var existing models.Guest
	err := s.db.Where("session_id = ? AND email = ?", sessionID, email).First(&existing).Error
	if err == nil {
		return nil, response.NewConflict("a guest with this email already exists in the session")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	guest := &models.Guest{
		SessionID:   sessionID,
		Email:       email,
		Name:        req.Name,
		AccessToken: utils.NewAccessToken(),
	}
	if err := s.db.Create(guest).Error; err != nil {
		return nil, err
	}
	return guest, nil
}

// InviteCollaborator registers an internal-facing participant with a role
// from the stored enum.
func (s *SessionService) InviteCollaborator(sessionID uint, req *InviteCollaboratorRequest, invitedByID *uint) (*models.SessionCollaborator, error) {
	switch req.Role {
	case models.RolePM, models.RoleEditor, models.RoleViewer:
	default:
		return nil, response.NewBadRequest("role must be pm, editor or viewer")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, response.NewBadRequest("email is required")
	}

	var existing models.SessionCollaborator
	err := s.db.Where("session_id = ? AND email = ?", sessionID, email).First(&existing).Error
	if err == nil {
		return nil, response.NewConflict("a collaborator with this email already exists in the session")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	collab := &models.SessionCollaborator{
		SessionID:   sessionID,
		Email:       email,
		Name:        req.Name,
		Role:        req.Role,
		AccessToken: utils.NewAccessToken(),
		InvitedByID: invitedByID,
	}
	if err := s.db.Create(collab).Error; err != nil {
		return nil, err
	}
	return collab, nil
}

func (s *SessionService) ListGuests(sessionID uint) ([]models.Guest, error) {
	var guests []models.Guest
	if err := s.db.Where("session_id = ?", sessionID).
		Order("created_at ASC").Find(&guests).Error; err != nil {
		return nil, err
	}
	return guests, nil
}

// ItemView is an item enriched with its derived statuses for portal
// payloads.
type ItemView struct {
	models.ChecklistItem
	ReviewStatus string `json:"review_status"`
	TestState    string `json:"test_state"`
}

// SessionOverview is the full portal payload: the session with enriched
// items, participants and aggregate progress.
type SessionOverview struct {
	Session       *models.Session              `json:"session"`
	Items         []ItemView                   `json:"items"`
	Guests        []models.Guest               `json:"guests"`
	Collaborators []models.SessionCollaborator `json:"collaborators"`
	Progress      Progress                     `json:"progress"`
}

// Overview assembles the session payload. Statuses and progress are
// recomputed on every read, never stored.
func (s *SessionService) Overview(sessionID uint) (*SessionOverview, error) {
	var session models.Session
	err := s.db.
		Preload("Items", itemOrdering).
		Preload("Items.Steps", stepOrdering).
		Preload("Items.Runs", func(db *gorm.DB) *gorm.DB { return db.Order("run_number ASC") }).
		Preload("Items.Runs.Results").
		Preload("Items.Responses").
		Preload("Guests").
		Preload("Collaborators").
		First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("session not found")
	}
	if err != nil {
		return nil, err
	}

	items := make([]ItemView, 0, len(session.Items))
	for i := range session.Items {
		item := session.Items[i]
		items = append(items, ItemView{
			ChecklistItem: item,
			ReviewStatus:  StatusOf(item.Responses),
			TestState:     TestStateOf(&item),
		})
	}

	overview := &SessionOverview{
		Session:       &session,
		Items:         items,
		Guests:        session.Guests,
		Collaborators: session.Collaborators,
		Progress:      ProgressOf(session.Items),
	}

	// Avoid duplicating participants and items inside the session blob.
	overview.Session.Items = nil
	overview.Session.Guests = nil
	overview.Session.Collaborators = nil

	return overview, nil
}

// GuestLink renders the reviewer link for an invited guest.
func (s *SessionService) GuestLink(guest *models.Guest) string {
	return s.links.ReviewerLink(guest.AccessToken)
}

// CollaboratorLink renders the portal link for a collaborator. Collaborator
// tokens are honored on the PM surface only; the reviewer portal is for
// guest tokens.
func (s *SessionService) CollaboratorLink(collab *models.SessionCollaborator) string {
	return s.links.PMLink(collab.AccessToken)
}

// InviteLink renders the owner portal link for a session.
func (s *SessionService) InviteLink(session *models.Session) string {
	return s.links.PMLink(session.InviteToken)
}
