package services

import (
	"testing"

	"github.com/opsboard/uatreview/internal/models"
)

func TestSubmitStepResult_OpensInitialRun(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, steps := seedItem(t, db, session.ID, 2)

	svc := NewTestRunService(db)

	result, run, err := svc.SubmitStepResult(item.ID, steps[0].ID, guestActor(guest), &SubmitStepResultRequest{
		Status: models.ResultPassed,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if run.RunNumber != 1 {
		t.Errorf("first run number = %d, expected 1", run.RunNumber)
	}
	if run.TriggerReason != models.TriggerInitial {
		t.Errorf("trigger reason = %q, expected initial", run.TriggerReason)
	}
	if run.Status != models.RunActive {
		t.Errorf("run status = %q, expected active", run.Status)
	}
	if result.TesterType != models.ActorGuest || result.TesterID != guest.ID {
		t.Errorf("result attributed to %s/%d, expected guest/%d", result.TesterType, result.TesterID, guest.ID)
	}
}

func TestActiveRun(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, steps := seedItem(t, db, session.ID, 1)

	svc := NewTestRunService(db)

	run, err := svc.ActiveRun(item.ID)
	if err != nil {
		t.Fatalf("active run lookup failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected no active run before any submission, got run %d", run.ID)
	}

	result, opened, err := svc.SubmitStepResult(item.ID, steps[0].ID, guestActor(guest), &SubmitStepResultRequest{
		Status: models.ResultPassed,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	run, err = svc.ActiveRun(item.ID)
	if err != nil {
		t.Fatalf("active run lookup failed: %v", err)
	}
	if run == nil || run.ID != opened.ID {
		t.Fatalf("expected active run %d, got %v", opened.ID, run)
	}
	if len(run.Results) != 1 || run.Results[0].ID != result.ID {
		t.Errorf("active run should carry its results, got %d", len(run.Results))
	}
}

func TestSubmitStepResult_UpsertKeyedByRunAndStep(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, steps := seedItem(t, db, session.ID, 1)

	svc := NewTestRunService(db)
	actor := guestActor(guest)

	first, run1, err := svc.SubmitStepResult(item.ID, steps[0].ID, actor, &SubmitStepResultRequest{
		Status: models.ResultFailed, Notes: "crashes on submit",
	})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	second, run2, err := svc.SubmitStepResult(item.ID, steps[0].ID, actor, &SubmitStepResultRequest{
		Status: models.ResultPassed,
	})
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}

	if run1.ID != run2.ID {
		t.Errorf("both submissions should hit the same run, got %d then %d", run1.ID, run2.ID)
	}
	if first.ID != second.ID {
		t.Errorf("second submission should overwrite the first row")
	}

	var count int64
	db.Model(&models.TestStepResult{}).Where("run_id = ?", run1.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 result row, got %d", count)
	}

	var stored models.TestStepResult
	db.First(&stored, first.ID)
	if stored.Status != models.ResultPassed {
		t.Errorf("stored status = %q, expected the second write to win", stored.Status)
	}
}

func TestSubmitStepResult_Validation(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, _ := seedItem(t, db, session.ID, 0)

	testStep := models.ChecklistItemStep{ItemID: item.ID, Title: "Run checkout", StepType: models.StepTypeTest, SortOrder: 1, IsRequired: true}
	infoStep := models.ChecklistItemStep{ItemID: item.ID, Title: "Heads up", StepType: models.StepTypeInfo, SortOrder: 2, IsRequired: true}
	notedStep := models.ChecklistItemStep{ItemID: item.ID, Title: "Check totals", StepType: models.StepTypeTest, SortOrder: 3, IsRequired: true, NotesRequired: true}
	for _, s := range []*models.ChecklistItemStep{&testStep, &infoStep, &notedStep} {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("seed step: %v", err)
		}
	}

	svc := NewTestRunService(db)
	actor := guestActor(guest)

	tests := []struct {
		name    string
		stepID  uint
		req     SubmitStepResultRequest
		wantErr bool
	}{
		{"failed without notes", testStep.ID, SubmitStepResultRequest{Status: models.ResultFailed}, true},
		{"failed with notes", testStep.ID, SubmitStepResultRequest{Status: models.ResultFailed, Notes: "broken"}, false},
		{"acknowledge a test step", testStep.ID, SubmitStepResultRequest{Status: models.ResultAcknowledged}, true},
		{"pass an info step", infoStep.ID, SubmitStepResultRequest{Status: models.ResultPassed}, true},
		{"acknowledge an info step", infoStep.ID, SubmitStepResultRequest{Status: models.ResultAcknowledged}, false},
		{"notes-required step without notes", notedStep.ID, SubmitStepResultRequest{Status: models.ResultPassed}, true},
		{"notes-required step with notes", notedStep.ID, SubmitStepResultRequest{Status: models.ResultPassed, Notes: "total matches"}, false},
		{"unknown status", testStep.ID, SubmitStepResultRequest{Status: "skipped"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SubmitStepResult(item.ID, tt.stepID, actor, &tt.req)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunNumbering_RemediationCycle(t *testing.T) {
	db := newTestDB(t)
	session := seedSession(t, db)
	guest := seedGuest(t, db, session.ID, "amy@example.com")
	item, steps := seedItem(t, db, session.ID, 1)

	runs := NewTestRunService(db)
	responses := NewResponseService(db)
	actor := guestActor(guest)

	// Run 1: pass the step, then reject the item.
	_, run1, err := runs.SubmitStepResult(item.ID, steps[0].ID, actor, &SubmitStepResultRequest{Status: models.ResultPassed})
	if err != nil {
		t.Fatalf("run 1 step: %v", err)
	}
	if _, err := responses.Submit(item.ID, guest.ID, &SubmitResponseRequest{
		Status: models.ResponseChangesRequested, Feedback: "wrong copy",
	}); err != nil {
		t.Fatalf("rejection: %v", err)
	}

	// Next testing interaction opens run 2 as a remediation retest.
	_, run2, err := runs.SubmitStepResult(item.ID, steps[0].ID, actor, &SubmitStepResultRequest{Status: models.ResultPassed})
	if err != nil {
		t.Fatalf("run 2 step: %v", err)
	}

	if run2.ID == run1.ID {
		t.Fatal("expected a new run after remediation")
	}
	if run2.RunNumber != run1.RunNumber+1 {
		t.Errorf("run number = %d, expected %d", run2.RunNumber, run1.RunNumber+1)
	}
	if run2.TriggerReason != models.TriggerRemediationRetest {
		t.Errorf("trigger reason = %q, expected remediation_retest", run2.TriggerReason)
	}

	// Prior run results are history, not copied forward.
	var run2Results int64
	db.Model(&models.TestStepResult{}).Where("run_id = ?", run2.ID).Count(&run2Results)
	if run2Results != 1 {
		t.Errorf("run 2 should have exactly its own result, got %d", run2Results)
	}
	var run1Results int64
	db.Model(&models.TestStepResult{}).Where("run_id = ?", run1.ID).Count(&run1Results)
	if run1Results != 1 {
		t.Errorf("run 1 history should be untouched, got %d results", run1Results)
	}

	// Exactly one active run at any time.
	var active int64
	db.Model(&models.TestRun{}).Where("item_id = ? AND status = ?", item.ID, models.RunActive).Count(&active)
	if active != 1 {
		t.Errorf("expected exactly 1 active run, got %d", active)
	}
}

func TestRunComplete(t *testing.T) {
	steps := []models.ChecklistItemStep{
		{ID: 1, IsRequired: true},
		{ID: 2, IsRequired: true},
		{ID: 3, IsRequired: false},
	}

	tests := []struct {
		name     string
		results  []models.TestStepResult
		expected bool
	}{
		{"no results", nil, false},
		{"one of two required", []models.TestStepResult{{StepID: 1, Status: models.ResultPassed}}, false},
		{"both required answered", []models.TestStepResult{
			{StepID: 1, Status: models.ResultPassed},
			{StepID: 2, Status: models.ResultFailed},
		}, true},
		{"optional step alone", []models.TestStepResult{{StepID: 3, Status: models.ResultPassed}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &models.TestRun{Results: tt.results}
			if got := RunComplete(run, steps); got != tt.expected {
				t.Errorf("RunComplete() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestTestStateOf(t *testing.T) {
	requiredStep := models.ChecklistItemStep{ID: 1, IsRequired: true}

	tests := []struct {
		name     string
		item     models.ChecklistItem
		expected string
	}{
		{
			name:     "no runs no responses",
			item:     models.ChecklistItem{},
			expected: TestStateNoRun,
		},
		{
			name: "active initial run",
			item: models.ChecklistItem{
				Steps: []models.ChecklistItemStep{requiredStep},
				Runs:  []models.TestRun{{Status: models.RunActive, TriggerReason: models.TriggerInitial}},
			},
			expected: TestStateRunActive,
		},
		{
			name: "active run with every required step answered",
			item: models.ChecklistItem{
				Steps: []models.ChecklistItemStep{requiredStep},
				Runs: []models.TestRun{{
					Status:        models.RunActive,
					TriggerReason: models.TriggerInitial,
					Results:       []models.TestStepResult{{StepID: 1, Status: models.ResultPassed}},
				}},
			},
			expected: TestStateRunCompleted,
		},
		{
			name: "rejected with no new run yet",
			item: models.ChecklistItem{
				Steps:     []models.ChecklistItemStep{requiredStep},
				Runs:      []models.TestRun{{Status: models.RunCompleted}},
				Responses: []models.Response{{Status: models.ResponseChangesRequested}},
			},
			expected: TestStateNeedsRemediation,
		},
		{
			name: "remediation run underway",
			item: models.ChecklistItem{
				Steps: []models.ChecklistItemStep{requiredStep},
				Runs: []models.TestRun{
					{Status: models.RunCompleted, TriggerReason: models.TriggerInitial},
					{Status: models.RunActive, TriggerReason: models.TriggerRemediationRetest},
				},
				Responses: []models.Response{{Status: models.ResponseChangesRequested}},
			},
			expected: TestStateRemediationRunActive,
		},
		{
			name: "approved item is resolved",
			item: models.ChecklistItem{
				Steps:     []models.ChecklistItemStep{requiredStep},
				Runs:      []models.TestRun{{Status: models.RunCompleted}},
				Responses: []models.Response{{Status: models.ResponseApproved}},
			},
			expected: TestStateResolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TestStateOf(&tt.item); got != tt.expected {
				t.Errorf("TestStateOf() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
