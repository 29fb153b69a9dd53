package services

import (
	"errors"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

type CreateCommentRequest struct {
	Body     string `json:"body" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

// Create posts a comment on an item. A parent, when given, must be another
// comment on the same item; a new comment has no children yet, so a
// valid parent can never introduce a cycle.
func (s *CommentService) Create(itemID uint, author Actor, req *CreateCommentRequest) (*models.Comment, error) {
	if req.Body == "" {
		return nil, response.NewBadRequest("body is required")
	}

	var item models.ChecklistItem
	if err := s.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("checklist item not found")
		}
		return nil, err
	}

	if req.ParentID != nil {
		var parent models.Comment
		err := s.db.Where("id = ? AND item_id = ?", *req.ParentID, itemID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewBadRequest("parent comment must belong to the same item")
		}
		if err != nil {
			return nil, err
		}
	}

	comment := &models.Comment{
		ItemID:     itemID,
		ParentID:   req.ParentID,
		AuthorType: author.Type,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Body:       req.Body,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// ListByItem returns an item's comments in chronological order as a flat
// adjacency list; clients thread by parent_id.
func (s *CommentService) ListByItem(itemID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := s.db.Where("item_id = ?", itemID).
		Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
