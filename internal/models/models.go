package models

import (
	"time"
)

// Session status values.
const (
	SessionDraft     = "draft"
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Collaborator roles. The stored enum is authoritative; UI-level labels
// such as "developer" map onto editor.
const (
	RolePM     = "pm"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Checklist item authoring statuses. These track the internal workflow;
// the review status shown to reviewers is derived from responses.
const (
	ItemOpen     = "open"
	ItemResolved = "resolved"
)

// Step types.
const (
	StepTypeTest  = "test"
	StepTypeDelay = "delay"
	StepTypeInfo  = "info"
)

// TestRun status and trigger reasons.
const (
	RunActive    = "active"
	RunCompleted = "completed"
	RunArchived  = "archived"

	TriggerInitial           = "initial"
	TriggerRemediationRetest = "remediation_retest"
)

// Step result statuses. A result row only exists once a tester has
// recorded an outcome, so there is no stored "null" state.
const (
	ResultPassed       = "passed"
	ResultFailed       = "failed"
	ResultAcknowledged = "acknowledged"
)

// Response statuses.
const (
	ResponseApproved         = "approved"
	ResponseChangesRequested = "changes_requested"
)

// Actor types for polymorphic tester/author identity.
const (
	ActorInternal = "internal"
	ActorGuest    = "guest"
)

// Session is a bounded UAT review cycle. It owns checklist items, external
// guest reviewers and internal collaborators, and carries the invite token
// that grants owner-level portal access.
type Session struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:300;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:20;default:draft" json:"status"` // draft, active, completed
	InviteToken string     `gorm:"uniqueIndex;size:64;not null" json:"invite_token"`
	Priority    string     `gorm:"size:20" json:"priority"`
	OwnerID     uint       `gorm:"index" json:"owner_id"`
	DueDate     *time.Time `json:"due_date"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Items         []ChecklistItem       `gorm:"foreignKey:SessionID" json:"items,omitempty"`
	Guests        []Guest               `gorm:"foreignKey:SessionID" json:"guests,omitempty"`
	Collaborators []SessionCollaborator `gorm:"foreignKey:SessionID" json:"collaborators,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Guest is an external reviewer identified purely by a capability token.
type Guest struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      uint       `gorm:"not null;uniqueIndex:idx_guest_session_email" json:"session_id"`
	Email          string     `gorm:"size:255;not null;uniqueIndex:idx_guest_session_email" json:"email"`
	Name           string     `gorm:"size:200" json:"name"`
	AccessToken    string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SessionCollaborator is an internal-facing participant with an elevated
// role (pm, editor, viewer), also reached through a capability token.
type SessionCollaborator struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      uint       `gorm:"not null;uniqueIndex:idx_collab_session_email" json:"session_id"`
	Email          string     `gorm:"size:255;not null;uniqueIndex:idx_collab_session_email" json:"email"`
	Name           string     `gorm:"size:200" json:"name"`
	Role           string     `gorm:"size:20;default:viewer" json:"role"` // pm, editor, viewer
	AccessToken    string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	InvitedByID    *uint      `json:"invited_by_id"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ChecklistItem is one feature or page under review, ordered within a
// session. Its canonical review status is derived from responses at read
// time; the stored Status only tracks the authoring workflow (open,
// resolved).
type ChecklistItem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SessionID    uint       `gorm:"index;not null" json:"session_id"`
	Title        string     `gorm:"size:300;not null" json:"title"`
	Instructions string     `gorm:"type:text" json:"instructions"`
	ReferenceURL string     `gorm:"size:500" json:"reference_url"`
	Category     string     `gorm:"size:100" json:"category"`
	Status       string     `gorm:"size:20;default:open" json:"status"` // open, resolved
	SortOrder    int        `gorm:"index" json:"sort_order"`
	OwnerID      *uint      `json:"owner_id"`
	DueDate      *time.Time `json:"due_date"`

	LastReviewedAt *time.Time `json:"last_reviewed_at"`
	LastResolvedAt *time.Time `json:"last_resolved_at"`

	Steps     []ChecklistItemStep `gorm:"foreignKey:ItemID" json:"steps,omitempty"`
	Runs      []TestRun           `gorm:"foreignKey:ItemID" json:"runs,omitempty"`
	Responses []Response          `gorm:"foreignKey:ChecklistItemID" json:"responses,omitempty"`
	Comments  []Comment           `gorm:"foreignKey:ItemID" json:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChecklistItemStep is one atomic instruction within an item's test
// procedure. Steps of type delay/info are acknowledged rather than
// passed/failed.
type ChecklistItemStep struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ItemID         uint      `gorm:"index;not null" json:"item_id"`
	Title          string    `gorm:"size:300;not null" json:"title"`
	Instructions   string    `gorm:"type:text" json:"instructions"`
	ExpectedResult string    `gorm:"type:text" json:"expected_result"`
	StepType       string    `gorm:"size:20;default:test" json:"step_type"` // test, delay, info
	SortOrder      int       `gorm:"index" json:"sort_order"`
	IsRequired     bool      `gorm:"default:true" json:"is_required"`
	NotesRequired  bool      `gorm:"default:false" json:"notes_required"`
	NotesPrompt    string    `gorm:"size:500" json:"notes_prompt"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TestRun is one versioned execution attempt over an item's steps. At most
// one active run exists per item; superseded runs are immutable history.
type TestRun struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ItemID        uint       `gorm:"not null;uniqueIndex:idx_run_item_number" json:"item_id"`
	RunNumber     int        `gorm:"not null;uniqueIndex:idx_run_item_number" json:"run_number"`
	Status        string     `gorm:"size:20;default:active" json:"status"`          // active, completed, archived
	TriggerReason string     `gorm:"size:30;default:initial" json:"trigger_reason"` // initial, remediation_retest
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`                   // internal, guest
	TriggeredByID uint       `json:"triggered_by_id"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`

	Results []TestStepResult `gorm:"foreignKey:RunID" json:"results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestStepResult is the current outcome of one step within one run.
// Exactly one row exists per (run, step); later submissions overwrite
// earlier ones.
type TestStepResult struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      uint      `gorm:"not null;uniqueIndex:idx_result_run_step" json:"run_id"`
	StepID     uint      `gorm:"not null;uniqueIndex:idx_result_run_step" json:"step_id"`
	TesterType string    `gorm:"size:20;not null" json:"tester_type"` // internal, guest
	TesterID   uint      `gorm:"not null" json:"tester_id"`
	TesterName string    `gorm:"size:200" json:"tester_name"`
	Status     string    `gorm:"size:20;not null" json:"status"` // passed, failed, acknowledged
	Notes      string    `gorm:"type:text" json:"notes"`
	TestedAt   time.Time `json:"tested_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Response is a guest's item-level verdict. One row per (item, guest).
type Response struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ChecklistItemID uint      `gorm:"not null;uniqueIndex:idx_response_item_guest" json:"checklist_item_id"`
	GuestID         uint      `gorm:"not null;uniqueIndex:idx_response_item_guest" json:"guest_id"`
	Status          string    `gorm:"size:30;not null" json:"status"` // approved, changes_requested
	Feedback        string    `gorm:"type:text" json:"feedback"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Comment is a threaded discussion entry on an item. ParentID, when set,
// must reference a comment on the same item. AuthorName is cached so
// listings need no join against users or guests.
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ItemID     uint      `gorm:"index;not null" json:"item_id"`
	ParentID   *uint     `gorm:"index" json:"parent_id"`
	AuthorType string    `gorm:"size:20;not null" json:"author_type"` // internal, guest
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	AuthorName string    `gorm:"size:200" json:"author_name"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditLog records portal and admin mutations for traceability.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Module    string    `gorm:"size:100;index" json:"module"`
	Action    string    `gorm:"size:200;index" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	ActorType string    `gorm:"size:20" json:"actor_type"` // internal, guest
	ActorID   *uint     `json:"actor_id"`
	IP        string    `gorm:"size:50" json:"ip"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides
func (Session) TableName() string             { return "uat_sessions" }
func (Guest) TableName() string               { return "uat_guests" }
func (SessionCollaborator) TableName() string { return "uat_session_collaborators" }
func (ChecklistItem) TableName() string       { return "uat_checklist_items" }
func (ChecklistItemStep) TableName() string   { return "uat_checklist_item_steps" }
func (TestRun) TableName() string             { return "uat_test_runs" }
func (TestStepResult) TableName() string      { return "uat_test_step_results" }
func (Response) TableName() string            { return "uat_responses" }
func (Comment) TableName() string             { return "uat_comments" }
func (AuditLog) TableName() string            { return "uat_audit_logs" }
