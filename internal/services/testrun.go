package services

import (
	"errors"
	"time"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/response"
	"gorm.io/gorm"
)

// Derived per-item test states.
const (
	TestStateNoRun                = "no_run"
	TestStateRunActive            = "run_active"
	TestStateRunCompleted         = "run_completed_pending_response"
	TestStateNeedsRemediation     = "needs_remediation"
	TestStateRemediationRunActive = "remediation_run_active"
	TestStateResolved             = "resolved"
)

// Actor is the polymorphic tester/author identity: an internal user or an
// invited guest, never a bare id string.
type Actor struct {
	Type string // models.ActorInternal or models.ActorGuest
	ID   uint
	Name string
}

type TestRunService struct {
	db *gorm.DB
}

func NewTestRunService(db *gorm.DB) *TestRunService {
	return &TestRunService{db: db}
}

type SubmitStepResultRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// SubmitStepResult records the outcome of one step for the item's current
// run. The first interaction on an item opens run 1; an interaction after a
// remediation cycle opens run max+1 with trigger remediation_retest. The
// write is an upsert on (run, step): last write wins.
func (s *TestRunService) SubmitStepResult(itemID, stepID uint, actor Actor, req *SubmitStepResultRequest) (*models.TestStepResult, *models.TestRun, error) {
	var step models.ChecklistItemStep
	if err := s.db.Where("id = ? AND item_id = ?", stepID, itemID).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, response.NewNotFound("step not found")
		}
		return nil, nil, err
	}

	if err := validateResultStatus(&step, req); err != nil {
		return nil, nil, err
	}

	var result models.TestStepResult
	var run *models.TestRun
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		run, err = ensureActiveRun(tx, itemID, actor)
		if err != nil {
			return err
		}

		now := time.Now()
		existing := models.TestStepResult{}
		err = tx.Where("run_id = ? AND step_id = ?", run.ID, stepID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = models.TestStepResult{
				RunID:      run.ID,
				StepID:     stepID,
				TesterType: actor.Type,
				TesterID:   actor.ID,
				TesterName: actor.Name,
				Status:     req.Status,
				Notes:      req.Notes,
				TestedAt:   now,
			}
			return tx.Create(&result).Error
		case err != nil:
			return err
		default:
			existing.TesterType = actor.Type
			existing.TesterID = actor.ID
			existing.TesterName = actor.Name
			existing.Status = req.Status
			existing.Notes = req.Notes
			existing.TestedAt = now
			result = existing
			return tx.Save(&existing).Error
		}
	})
	if err != nil {
		return nil, nil, err
	}

	return &result, run, nil
}

func validateResultStatus(step *models.ChecklistItemStep, req *SubmitStepResultRequest) error {
	switch req.Status {
	case models.ResultPassed, models.ResultFailed:
		if step.StepType != models.StepTypeTest {
			return response.NewBadRequest("only test steps can pass or fail")
		}
	case models.ResultAcknowledged:
		if step.StepType == models.StepTypeTest {
			return response.NewBadRequest("test steps must be passed or failed, not acknowledged")
		}
	default:
		return response.NewBadRequest("status must be passed, failed or acknowledged")
	}

	if req.Notes == "" {
		if req.Status == models.ResultFailed {
			return response.NewBadRequest("notes are required for a failed step")
		}
		if step.NotesRequired {
			return response.NewBadRequest("notes are required for this step")
		}
	}
	return nil
}

// ensureActiveRun returns the item's active run, opening a new one if none
// exists. Run numbers are strictly increasing with no gaps; any run after
// the first is a remediation retest.
func ensureActiveRun(tx *gorm.DB, itemID uint, actor Actor) (*models.TestRun, error) {
	var run models.TestRun
	err := tx.Where("item_id = ? AND status = ?", itemID, models.RunActive).First(&run).Error
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var maxNumber int
	if err := tx.Model(&models.TestRun{}).Where("item_id = ?", itemID).
		Select("COALESCE(MAX(run_number), 0)").Scan(&maxNumber).Error; err != nil {
		return nil, err
	}

	reason := models.TriggerInitial
	if maxNumber > 0 {
		reason = models.TriggerRemediationRetest
	}

	run = models.TestRun{
		ItemID:        itemID,
		RunNumber:     maxNumber + 1,
		Status:        models.RunActive,
		TriggerReason: reason,
		TriggeredBy:   actor.Type,
		TriggeredByID: actor.ID,
		StartedAt:     time.Now(),
	}
	if err := tx.Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// completeActiveRun closes the item's active run, if any. Historical runs
// are immutable; their step results are never copied forward.
func completeActiveRun(tx *gorm.DB, itemID uint, at time.Time) error {
	return tx.Model(&models.TestRun{}).
		Where("item_id = ? AND status = ?", itemID, models.RunActive).
		Updates(map[string]interface{}{"status": models.RunCompleted, "completed_at": at}).Error
}

// ActiveRun returns the item's active run with results, or nil when the
// item has no open run.
func (s *TestRunService) ActiveRun(itemID uint) (*models.TestRun, error) {
	var run models.TestRun
	err := s.db.Preload("Results").
		Where("item_id = ? AND status = ?", itemID, models.RunActive).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RunHistory returns all runs for an item in execution order, results
// included.
func (s *TestRunService) RunHistory(itemID uint) ([]models.TestRun, error) {
	var runs []models.TestRun
	if err := s.db.Preload("Results").
		Where("item_id = ?", itemID).Order("run_number ASC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// RunComplete reports whether every required step carries a recorded
// result in the given run.
func RunComplete(run *models.TestRun, steps []models.ChecklistItemStep) bool {
	recorded := make(map[uint]bool, len(run.Results))
	for _, r := range run.Results {
		if r.Status != "" {
			recorded[r.StepID] = true
		}
	}
	for _, step := range steps {
		if step.IsRequired && !recorded[step.ID] {
			return false
		}
	}
	return true
}

// TestStateOf derives the item's position in the run/response cycle. The
// item must be loaded with Steps, Runs (with Results) and Responses.
func TestStateOf(item *models.ChecklistItem) string {
	if StatusOf(item.Responses) == StatusApproved {
		return TestStateResolved
	}

	var active *models.TestRun
	for i := range item.Runs {
		if item.Runs[i].Status == models.RunActive {
			active = &item.Runs[i]
			break
		}
	}
	if active != nil {
		// Completeness is derived, not stored: once every required step
		// carries a result the run is awaiting reviewer verdicts.
		if RunComplete(active, item.Steps) {
			return TestStateRunCompleted
		}
		if active.TriggerReason == models.TriggerRemediationRetest {
			return TestStateRemediationRunActive
		}
		return TestStateRunActive
	}

	if StatusOf(item.Responses) == StatusNeedsRemediation {
		return TestStateNeedsRemediation
	}
	if len(item.Runs) == 0 {
		return TestStateNoRun
	}
	return TestStateRunCompleted
}
