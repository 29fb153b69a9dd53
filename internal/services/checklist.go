package services

import (
	"errors"
	"time"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

type ChecklistService struct {
	db *gorm.DB
}

func NewChecklistService(db *gorm.DB) *ChecklistService {
	return &ChecklistService{db: db}
}

type CreateItemRequest struct {
	Title        string     `json:"title" binding:"required"`
	Instructions string     `json:"instructions"`
	ReferenceURL string     `json:"reference_url"`
	Category     string     `json:"category"`
	OwnerID      *uint      `json:"owner_id"`
	DueDate      *time.Time `json:"due_date"`
}

type UpdateItemRequest struct {
	Title        *string    `json:"title"`
	Instructions *string    `json:"instructions"`
	ReferenceURL *string    `json:"reference_url"`
	Category     *string    `json:"category"`
	OwnerID      *uint      `json:"owner_id"`
	DueDate      *time.Time `json:"due_date"`
}

type CreateStepRequest struct {
	Title          string `json:"title" binding:"required"`
	Instructions   string `json:"instructions"`
	ExpectedResult string `json:"expected_result"`
	StepType       string `json:"step_type"`
	IsRequired     *bool  `json:"is_required"`
	NotesRequired  bool   `json:"notes_required"`
	NotesPrompt    string `json:"notes_prompt"`
}

type UpdateStepRequest struct {
	Title          *string `json:"title"`
	Instructions   *string `json:"instructions"`
	ExpectedResult *string `json:"expected_result"`
	StepType       *string `json:"step_type"`
	IsRequired     *bool   `json:"is_required"`
	NotesRequired  *bool   `json:"notes_required"`
	NotesPrompt    *string `json:"notes_prompt"`
}

// CreateItem appends a new item to the end of the session's checklist.
func (s *ChecklistService) CreateItem(sessionID uint, req *CreateItemRequest) (*models.ChecklistItem, error) {
	if req.Title == "" {
		return nil, response.NewBadRequest("title is required")
	}

	var maxOrder int
	if err := s.db.Model(&models.ChecklistItem{}).Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
		return nil, err
	}

	item := &models.ChecklistItem{
		SessionID:    sessionID,
		Title:        req.Title,
		Instructions: req.Instructions,
		ReferenceURL: req.ReferenceURL,
		Category:     req.Category,
		Status:       models.ItemOpen,
		SortOrder:    maxOrder + 1,
		OwnerID:      req.OwnerID,
		DueDate:      req.DueDate,
	}
	if err := s.db.Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem loads an item scoped to its session.
func (s *ChecklistService) GetItem(sessionID, itemID uint) (*models.ChecklistItem, error) {
	var item models.ChecklistItem
	err := s.db.Where("id = ? AND session_id = ?", itemID, sessionID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("checklist item not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *ChecklistService) UpdateItem(sessionID, itemID uint, req *UpdateItemRequest) (*models.ChecklistItem, error) {
	item, err := s.GetItem(sessionID, itemID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, response.NewBadRequest("title cannot be empty")
		}
		item.Title = *req.Title
	}
	if req.Instructions != nil {
		item.Instructions = *req.Instructions
	}
	if req.ReferenceURL != nil {
		item.ReferenceURL = *req.ReferenceURL
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.OwnerID != nil {
		item.OwnerID = req.OwnerID
	}
	if req.DueDate != nil {
		item.DueDate = req.DueDate
	}

	if err := s.db.Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes the item and everything hanging off it: steps, runs,
// step results, responses and comments, in one transaction.
func (s *ChecklistService) DeleteItem(sessionID, itemID uint) error {
	item, err := s.GetItem(sessionID, itemID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteItemCascade(tx, item.ID)
	})
}

func deleteItemCascade(tx *gorm.DB, itemID uint) error {
	var runIDs []uint
	if err := tx.Model(&models.TestRun{}).Where("item_id = ?", itemID).
		Pluck("id", &runIDs).Error; err != nil {
		return err
	}
	if len(runIDs) > 0 {
		if err := tx.Where("run_id IN ?", runIDs).Delete(&models.TestStepResult{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("item_id = ?", itemID).Delete(&models.TestRun{}).Error; err != nil {
		return err
	}
	if err := tx.Where("item_id = ?", itemID).Delete(&models.ChecklistItemStep{}).Error; err != nil {
		return err
	}
	if err := tx.Where("checklist_item_id = ?", itemID).Delete(&models.Response{}).Error; err != nil {
		return err
	}
	if err := tx.Where("item_id = ?", itemID).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.ChecklistItem{}, itemID).Error
}

// DuplicateItem clones the item and all of its steps. The clone lands at
// the end of the session's checklist with no runs, responses or comments.
func (s *ChecklistService) DuplicateItem(sessionID, itemID uint) (*models.ChecklistItem, error) {
	item, err := s.GetItem(sessionID, itemID)
	if err != nil {
		return nil, err
	}

	var steps []models.ChecklistItemStep
	if err := s.db.Where("item_id = ?", itemID).
		Order("sort_order ASC, id ASC").Find(&steps).Error; err != nil {
		return nil, err
	}

	var maxOrder int
	if err := s.db.Model(&models.ChecklistItem{}).Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
		return nil, err
	}

	clone := &models.ChecklistItem{
		SessionID:    item.SessionID,
		Title:        item.Title,
		Instructions: item.Instructions,
		ReferenceURL: item.ReferenceURL,
		Category:     item.Category,
		Status:       models.ItemOpen,
		SortOrder:    maxOrder + 1,
		OwnerID:      item.OwnerID,
		DueDate:      item.DueDate,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(clone).Error; err != nil {
			return err
		}
		for _, step := range steps {
			copied := models.ChecklistItemStep{
				ItemID:         clone.ID,
				Title:          step.Title,
				Instructions:   step.Instructions,
				ExpectedResult: step.ExpectedResult,
				StepType:       step.StepType,
				SortOrder:      step.SortOrder,
				IsRequired:     step.IsRequired,
				NotesRequired:  step.NotesRequired,
				NotesPrompt:    step.NotesPrompt,
			}
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.Preload("Steps", stepOrdering).First(clone, clone.ID).Error; err != nil {
		return nil, err
	}
	return clone, nil
}

// stepOrdering is the canonical step sort: explicit order first, creation
// order breaking ties.
func stepOrdering(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// itemOrdering is the canonical item sort within a session.
func itemOrdering(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// ReorderItems renumbers the session's items to match the given id order.
// Items not listed keep their relative position after the listed ones.
func (s *ChecklistService) ReorderItems(sessionID uint, orderedIDs []uint) error {
	if len(orderedIDs) == 0 {
		return response.NewBadRequest("item order is required")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			res := tx.Model(&models.ChecklistItem{}).
				Where("id = ? AND session_id = ?", id, sessionID).
				Update("sort_order", i+1)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return response.NewBadRequest("item does not belong to this session")
			}
		}
		return nil
	})
}

// MarkItemResolved closes out the authoring workflow for an item after
// remediation, stamping the audit fields.
func (s *ChecklistService) MarkItemResolved(sessionID, itemID uint) (*models.ChecklistItem, error) {
	item, err := s.GetItem(sessionID, itemID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	item.Status = models.ItemResolved
	item.LastResolvedAt = &now
	item.LastReviewedAt = &now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return completeActiveRun(tx, item.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CreateStep appends a step to the item's procedure. stepType defaults to
// test.
func (s *ChecklistService) CreateStep(sessionID, itemID uint, req *CreateStepRequest) (*models.ChecklistItemStep, error) {
	if req.Title == "" {
		return nil, response.NewBadRequest("title is required")
	}

	stepType := req.StepType
	if stepType == "" {
		stepType = models.StepTypeTest
	}
	if !validStepType(stepType) {
		return nil, response.NewBadRequest("step_type must be test, delay or info")
	}

	if _, err := s.GetItem(sessionID, itemID); err != nil {
		return nil, err
	}

	var maxOrder int
	if err := s.db.Model(&models.ChecklistItemStep{}).Where("item_id = ?", itemID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
		return nil, err
	}

	isRequired := true
	if req.IsRequired != nil {
		isRequired = *req.IsRequired
	}

	step := &models.ChecklistItemStep{
		ItemID:         itemID,
		Title:          req.Title,
		Instructions:   req.Instructions,
		ExpectedResult: req.ExpectedResult,
		StepType:       stepType,
		SortOrder:      maxOrder + 1,
		IsRequired:     isRequired,
		NotesRequired:  req.NotesRequired,
		NotesPrompt:    req.NotesPrompt,
	}
	if err := s.db.Create(step).Error; err != nil {
		return nil, err
	}
	return step, nil
}

func (s *ChecklistService) UpdateStep(sessionID, itemID, stepID uint, req *UpdateStepRequest) (*models.ChecklistItemStep, error) {
	if _, err := s.GetItem(sessionID, itemID); err != nil {
		return nil, err
	}

	var step models.ChecklistItemStep
	err := s.db.Where("id = ? AND item_id = ?", stepID, itemID).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("step not found")
	}
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, response.NewBadRequest("title cannot be empty")
		}
		step.Title = *req.Title
	}
	if req.Instructions != nil {
		step.Instructions = *req.Instructions
	}
	if req.ExpectedResult != nil {
		step.ExpectedResult = *req.ExpectedResult
	}
	if req.StepType != nil {
		if !validStepType(*req.StepType) {
			return nil, response.NewBadRequest("step_type must be test, delay or info")
		}
		step.StepType = *req.StepType
	}
	if req.IsRequired != nil {
		step.IsRequired = *req.IsRequired
	}
	if req.NotesRequired != nil {
		step.NotesRequired = *req.NotesRequired
	}
	if req.NotesPrompt != nil {
		step.NotesPrompt = *req.NotesPrompt
	}

	if err := s.db.Save(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

// DeleteStep removes a step and its recorded results across all runs.
func (s *ChecklistService) DeleteStep(sessionID, itemID, stepID uint) error {
	if _, err := s.GetItem(sessionID, itemID); err != nil {
		return err
	}

	var step models.ChecklistItemStep
	err := s.db.Where("id = ? AND item_id = ?", stepID, itemID).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound("step not found")
	}
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("step_id = ?", stepID).Delete(&models.TestStepResult{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ChecklistItemStep{}, stepID).Error
	})
}

// ReorderSteps renumbers an item's steps to match the given id order.
func (s *ChecklistService) ReorderSteps(sessionID, itemID uint, orderedIDs []uint) error {
	if len(orderedIDs) == 0 {
		return response.NewBadRequest("step order is required")
	}
	if _, err := s.GetItem(sessionID, itemID); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			res := tx.Model(&models.ChecklistItemStep{}).
				Where("id = ? AND item_id = ?", id, itemID).
				Update("sort_order", i+1)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return response.NewBadRequest("step does not belong to this item")
			}
		}
		return nil
	})
}

func validStepType(t string) bool {
	switch t {
	case models.StepTypeTest, models.StepTypeDelay, models.StepTypeInfo:
		return true
	}
	return false
}
