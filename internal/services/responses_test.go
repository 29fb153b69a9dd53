package services

import (
	"testing"

	"github.com/opsboard/uatreview/internal/models"
	"github.com/opsboard/uatreview/pkg/response"
)

func approved() models.Response {
	return models.Response{Status: models.ResponseApproved}
}

func changesRequested() models.Response {
	return models.Response{Status: models.ResponseChangesRequested, Feedback: "broken"}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name      string
		responses []models.Response
		expected  string
	}{
		{
			name:      "no responses",
			responses: nil,
			expected:  StatusPending,
		},
		{
			name:      "single approval",
			responses: []models.Response{approved()},
			expected:  StatusApproved,
		},
		{
			name:      "single rejection",
			responses: []models.Response{changesRequested()},
			expected:  StatusNeedsRemediation,
		},
		{
			name:      "rejection overrides approval",
			responses: []models.Response{approved(), changesRequested()},
			expected:  StatusNeedsRemediation,
		},
		{
			name:      "order independent",
			responses: []models.Response{changesRequested(), approved()},
			expected:  StatusNeedsRemediation,
		},
		{
			name:      "many approvals one rejection",
			responses: []models.Response{approved(), approved(), changesRequested(), approved()},
			expected:  StatusNeedsRemediation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.responses); got != tt.expected {
				t.Errorf("StatusOf() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestProgressOf(t *testing.T) {
	// 10 items, 4 with at least one response: two approved-only, one
	// rejected-only, one mixed with a rejection.
	items := make([]models.ChecklistItem, 10)
	items[0].Responses = []models.Response{approved()}
	items[1].Responses = []models.Response{approved()}
	items[2].Responses = []models.Response{changesRequested()}
	items[3].Responses = []models.Response{approved(), changesRequested()}

	p := ProgressOf(items)

	if p.Total != 10 {
		t.Errorf("Total = %d, expected 10", p.Total)
	}
	if p.Completed != 4 {
		t.Errorf("Completed = %d, expected 4", p.Completed)
	}
	if p.Approved != 3 {
		t.Errorf("Approved = %d, expected 3", p.Approved)
	}
	if p.ChangesRequested != 2 {
		t.Errorf("ChangesRequested = %d, expected 2", p.ChangesRequested)
	}
	if p.ProgressPercent != 40 {
		t.Errorf("ProgressPercent = %v, expected 40", p.ProgressPercent)
	}
}

func TestProgressOf_Empty(t *testing.T) {
	p := ProgressOf(nil)
	if p.Total != 0 || p.Completed != 0 {
		t.Errorf("empty progress should be zero, got %+v", p)
	}
	if p.ProgressPercent != 0 {
		t.Errorf("ProgressPercent = %v, expected 0 when there are no items", p.ProgressPercent)
	}
}

func TestResponseSubmit_UpsertPerGuest(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, _ := seedItem(t, db, session.ID, 1)

	svc := NewResponseService(db)

	first, err := svc.Submit(item.ID, guest.ID, &SubmitResponseRequest{Status: models.ResponseApproved})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	second, err := svc.Submit(item.ID, guest.ID, &SubmitResponseRequest{
		Status:   models.ResponseChangesRequested,
		Feedback: "button misaligned",
	})
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("resubmission should overwrite, got new row %d (was %d)", second.ID, first.ID)
	}

	var count int64
	db.Model(&models.Response{}).Where("checklist_item_id = ?", item.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 response row, got %d", count)
	}

	var stored models.Response
	db.First(&stored, second.ID)
	if stored.Status != models.ResponseChangesRequested {
		t.Errorf("stored status = %q, expected changes_requested", stored.Status)
	}
	if stored.Feedback != "button misaligned" {
		t.Errorf("stored feedback = %q", stored.Feedback)
	}
}

func TestResponseListByItem(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guestA := seedGuest(t, db, session.ID, "a@example.com")
	guestB := seedGuest(t, db, session.ID, "b@example.com")
	item, _ := seedItem(t, db, session.ID, 1)
	other, _ := seedItem(t, db, session.ID, 1)

	svc := NewResponseService(db)

	if _, err := svc.Submit(item.ID, guestA.ID, &SubmitResponseRequest{Status: models.ResponseApproved}); err != nil {
		t.Fatalf("submit A failed: %v", err)
	}
	if _, err := svc.Submit(item.ID, guestB.ID, &SubmitResponseRequest{
		Status: models.ResponseChangesRequested, Feedback: "logo is stretched",
	}); err != nil {
		t.Fatalf("submit B failed: %v", err)
	}
	if _, err := svc.Submit(other.ID, guestA.ID, &SubmitResponseRequest{Status: models.ResponseApproved}); err != nil {
		t.Fatalf("submit on other item failed: %v", err)
	}

	responses, err := svc.ListByItem(item.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses for the item, got %d", len(responses))
	}
	if responses[0].GuestID != guestA.ID || responses[1].GuestID != guestB.ID {
		t.Errorf("expected submission order A then B, got %d then %d", responses[0].GuestID, responses[1].GuestID)
	}
}

func TestResponseSubmit_FeedbackRequiredOnRejection(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, _ := seedItem(t, db, session.ID, 1)

	svc := NewResponseService(db)

	_, err := svc.Submit(item.ID, guest.ID, &SubmitResponseRequest{Status: models.ResponseChangesRequested})
	if err == nil {
		t.Fatal("expected error when feedback is missing")
	}
	appErr, ok := err.(*response.AppError)
	if !ok || appErr.HTTPStatus != 400 {
		t.Errorf("expected 400 AppError, got %v", err)
	}
}

func TestResponseSubmit_InvalidStatus(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, _ := seedItem(t, db, session.ID, 1)

	svc := NewResponseService(db)

	_, err := svc.Submit(item.ID, guest.ID, &SubmitResponseRequest{Status: "maybe"})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestResponseSubmit_RejectionClosesActiveRun(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, steps := seedItem(t, db, session.ID, 1)

	runs := NewTestRunService(db)
	_, run, err := runs.SubmitStepResult(item.ID, steps[0].ID, guestActor(guest), &SubmitStepResultRequest{
		Status: models.ResultPassed,
	})
	if err != nil {
		t.Fatalf("step result failed: %v", err)
	}
	if run.Status != models.RunActive {
		t.Fatalf("run should be active, got %q", run.Status)
	}

	svc := NewResponseService(db)
	if _, err := svc.Submit(item.ID, guest.ID, &SubmitResponseRequest{
		Status:   models.ResponseChangesRequested,
		Feedback: "fails on mobile",
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	var stored models.TestRun
	db.First(&stored, run.ID)
	if stored.Status != models.RunCompleted {
		t.Errorf("rejection should close the active run, status = %q", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("completed run should carry completedAt")
	}
}
