package services

import (
	"errors"
	"time"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// Canonical item review statuses derived from the response set.
const (
	StatusPending          = "pending"
	StatusInProgress       = "in_progress"
	StatusApproved         = "approved"
	StatusNeedsRemediation = "needs_remediation"
)

// StatusOf reduces an item's response set to its canonical review status.
// A single rejection overrides any number of approvals; this precedence is
// the one non-obvious tie-break in the system and must not be reordered.
func StatusOf(responses []models.Response) string {
	if len(responses) == 0 {
		return StatusPending
	}
	for _, r := range responses {
		if r.Status == models.ResponseChangesRequested {
			return StatusNeedsRemediation
		}
	}
	for _, r := range responses {
		if r.Status == models.ResponseApproved {
			return StatusApproved
		}
	}
	return StatusInProgress
}

// Progress summarizes a session's review state. Completed counts distinct
// items with at least one response, not the number of responses.
type Progress struct {
	Total            int     `json:"total"`
	Completed        int     `json:"completed"`
	Approved         int     `json:"approved"`
	ChangesRequested int     `json:"changes_requested"`
	ProgressPercent  float64 `json:"progress_percent"`
}

// ProgressOf computes session-level progress from items with preloaded
// responses.
func ProgressOf(items []models.ChecklistItem) Progress {
	p := Progress{Total: len(items)}
	for _, item := range items {
		if len(item.Responses) > 0 {
			p.Completed++
		}
		for _, r := range item.Responses {
			switch r.Status {
			case models.ResponseApproved:
				p.Approved++
			case models.ResponseChangesRequested:
				p.ChangesRequested++
			}
		}
	}
	if p.Total > 0 {
		p.ProgressPercent = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}

type ResponseService struct {
	db *gorm.DB
}

func NewResponseService(db *gorm.DB) *ResponseService {
	return &ResponseService{db: db}
}

type SubmitResponseRequest struct {
	Status   string `json:"status" binding:"required"`
	Feedback string `json:"feedback"`
}

// Submit records a guest's item-level verdict. One response exists per
// (item, guest); resubmission overwrites the previous verdict. A rejection
// closes the item's active run so the next testing interaction opens a
// remediation retest.
func (s *ResponseService) Submit(itemID, guestID uint, req *SubmitResponseRequest) (*models.Response, error) {
	if req.Status != models.ResponseApproved && req.Status != models.ResponseChangesRequested {
		return nil, response.NewBadRequest("status must be approved or changes_requested")
	}
	if req.Status == models.ResponseChangesRequested && req.Feedback == "" {
		return nil, response.NewBadRequest("feedback is required when requesting changes")
	}

	var item models.ChecklistItem
	if err := s.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("checklist item not found")
		}
		return nil, err
	}

	var resp models.Response
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("checklist_item_id = ? AND guest_id = ?", itemID, guestID).First(&resp).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			resp = models.Response{
				ChecklistItemID: itemID,
				GuestID:         guestID,
				Status:          req.Status,
				Feedback:        req.Feedback,
			}
			if err := tx.Create(&resp).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			resp.Status = req.Status
			resp.Feedback = req.Feedback
			if err := tx.Save(&resp).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(&models.ChecklistItem{}).Where("id = ?", itemID).
			Update("last_reviewed_at", now).Error; err != nil {
			return err
		}

		// One rejection is enough to require remediation; close the
		// active run so testing resumes in a fresh one.
		if req.Status == models.ResponseChangesRequested {
			return completeActiveRun(tx, itemID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ListByItem returns an item's responses in submission order.
func (s *ResponseService) ListByItem(itemID uint) ([]models.Response, error) {
	var responses []models.Response
	if err := s.db.Where("checklist_item_id = ?", itemID).
		Order("created_at ASC, id ASC").Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}
