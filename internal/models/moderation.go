package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the aggregate moderation status of a chapter.
type Status string

const (
	StatusPending Status = "AI_PENDING" // awaiting or undergoing analysis
	StatusWarn    Status = "AI_WARN"
	StatusBlock   Status = "AI_BLOCK"
	StatusPassed  Status = "AI_PASSED"
)

// Valid reports whether s is a known aggregate status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWarn, StatusBlock, StatusPassed:
		return true
	}
	return false
}

// Verdict is a single policy-section outcome from an analysis run.
type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictWarn  Verdict = "warn"
	VerdictBlock Verdict = "block"
)

// Finding is one policy-section verdict produced by an analysis run.
// Findings are immutable once recorded; a new run replaces the whole list.
type Finding struct {
	SectionID string  `json:"section_id"`
	Verdict   Verdict `json:"verdict"`
	Rationale string  `json:"rationale"`
}

// FindingList stores findings as a JSONB column.
type FindingList []Finding

func (f FindingList) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

func (f *FindingList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return fmt.Errorf("cannot scan %T into FindingList", src)
}

// StringList stores label sets as a JSONB column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("cannot scan %T into StringList", src)
}

// ModerationRecord is the authoritative per-chapter moderation state,
// stored in the 'moderation_records' table. One record per chapter.
type ModerationRecord struct {
	ID            int64       `db:"id" json:"id"`
	ChapterID     string      `db:"chapter_id" json:"chapter_id"`
	ChapterTitle  string      `db:"chapter_title" json:"chapter_title"`
	AuthorName    string      `db:"author_name" json:"author_name"`
	Status        Status      `db:"status" json:"status"`
	RiskScore     int         `db:"risk_score" json:"risk_score"`
	Labels        StringList  `db:"labels" json:"labels"`
	Findings      FindingList `db:"findings" json:"findings"`
	PolicyVersion string      `db:"policy_version" json:"policy_version"`
	AIModel       *string     `db:"ai_model" json:"ai_model,omitempty"`
	ContentHash   string      `db:"content_hash" json:"content_hash"`
	Version       int64       `db:"version" json:"version"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`

	// Latest moderator decision, denormalized. Full history lives in the
	// 'decisions' table.
	DecisionAction    *string    `db:"decision_action" json:"decision_action,omitempty"`
	DecisionNote      *string    `db:"decision_note" json:"decision_note,omitempty"`
	DecisionModerator *string    `db:"decision_moderator" json:"decision_moderator,omitempty"`
	DecidedAt         *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// DecisionAction is what a moderator can do with a reviewed chapter.
type DecisionAction string

const (
	ActionApprove        DecisionAction = "approve"
	ActionReject         DecisionAction = "reject"
	ActionRequestChanges DecisionAction = "request_changes"
)

// ParseDecisionAction validates a raw action string.
func ParseDecisionAction(raw string) (DecisionAction, error) {
	switch DecisionAction(raw) {
	case ActionApprove, ActionReject, ActionRequestChanges:
		return DecisionAction(raw), nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, raw)
}

// Decision is one moderator action, stored append-only in the
// 'decisions' table.
type Decision struct {
	ID        int64          `db:"id" json:"id"`
	ChapterID string         `db:"chapter_id" json:"chapter_id"`
	Action    DecisionAction `db:"action" json:"action"`
	Note      string         `db:"note" json:"note"`
	Moderator string         `db:"moderator" json:"moderator"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// QueueItem is the read-optimized summary shown in the moderator queue.
type QueueItem struct {
	ChapterID      string     `db:"chapter_id" json:"chapter_id"`
	ChapterTitle   string     `db:"chapter_title" json:"chapter_title"`
	AuthorName     string     `db:"author_name" json:"author_name"`
	Status         Status     `db:"status" json:"status"`
	RiskScore      int        `db:"risk_score" json:"risk_score"`
	Labels         StringList `db:"labels" json:"labels"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DecisionAction *string    `db:"decision_action" json:"decision_action,omitempty"`
}
