package services

import (
	"errors"
	"time"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// Principal roles. Collaborator roles come from the stored enum; owner and
// guest are implied by the token space the lookup succeeded in.
const (
	RoleOwner = "owner"
	RoleGuest = "guest"
)

// ErrAccessDenied is returned for every resolution failure: unknown token,
// expired session, stale link. Callers must not distinguish the cases —
// the portal shows one generic access-denied page.
var ErrAccessDenied = response.NewNotFound("access denied")

// Principal is a resolved portal identity: who is holding the token and
// what they may do in the session it belongs to.
type Principal struct {
	Role         string
	Session      *models.Session
	Guest        *models.Guest
	Collaborator *models.SessionCollaborator
}

// CanEdit reports whether the principal may author items, steps, guests
// and collaborators.
func (p *Principal) CanEdit() bool {
	switch p.Role {
	case RoleOwner, models.RolePM, models.RoleEditor:
		return true
	}
	return false
}

// ReadOnly reports whether the principal is barred from all writes,
// including comments. Only viewers are; guests may respond and comment.
func (p *Principal) ReadOnly() bool {
	return p.Role == models.RoleViewer
}

// Actor returns the principal's polymorphic identity for attribution on
// runs, step results and comments.
func (p *Principal) Actor() Actor {
	if p.Guest != nil {
		return Actor{Type: models.ActorGuest, ID: p.Guest.ID, Name: p.Guest.Name}
	}
	if p.Collaborator != nil {
		return Actor{Type: models.ActorInternal, ID: p.Collaborator.ID, Name: p.Collaborator.Name}
	}
	return Actor{Type: models.ActorInternal, ID: p.Session.OwnerID}
}

type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// Resolve maps an opaque token to a principal. Three disjoint token spaces
// are tried in turn: session invite tokens (owner access), collaborator
// tokens and guest tokens. Resolution is a database lookup, not a
// cryptographic verification. Successful guest and collaborator lookups
// touch lastAccessedAt.
func (s *AccessService) Resolve(token string) (*Principal, error) {
	if token == "" {
		return nil, ErrAccessDenied
	}

	var session models.Session
	err := s.db.Where("invite_token = ?", token).First(&session).Error
	if err == nil {
		if sessionExpired(&session) {
			return nil, ErrAccessDenied
		}
		return &Principal{Role: RoleOwner, Session: &session}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var collab models.SessionCollaborator
	err = s.db.Where("access_token = ?", token).First(&collab).Error
	if err == nil {
		if err := s.db.First(&session, collab.SessionID).Error; err != nil {
			return nil, ErrAccessDenied
		}
		if sessionExpired(&session) {
			return nil, ErrAccessDenied
		}
		s.touchCollaborator(&collab)
		return &Principal{Role: collab.Role, Session: &session, Collaborator: &collab}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var guest models.Guest
	err = s.db.Where("access_token = ?", token).First(&guest).Error
	if err == nil {
		if err := s.db.First(&session, guest.SessionID).Error; err != nil {
			return nil, ErrAccessDenied
		}
		if sessionExpired(&session) {
			return nil, ErrAccessDenied
		}
		s.touchGuest(&guest)
		return &Principal{Role: RoleGuest, Session: &session, Guest: &guest}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return nil, ErrAccessDenied
}

// sessionExpired honors expiresAt only when set; dueDate is advisory and
// never gates access.
func sessionExpired(session *models.Session) bool {
	return session.ExpiresAt != nil && time.Now().After(*session.ExpiresAt)
}

func (s *AccessService) touchGuest(guest *models.Guest) {
	now := time.Now()
	guest.LastAccessedAt = &now
	s.db.Model(&models.Guest{}).Where("id = ?", guest.ID).
		Update("last_accessed_at", now)
}

func (s *AccessService) touchCollaborator(collab *models.SessionCollaborator) {
	now := time.Now()
	collab.LastAccessedAt = &now
	s.db.Model(&models.SessionCollaborator{}).Where("id = ?", collab.ID).
		Update("last_accessed_at", now)
}
