package models

import "time"

// Policy is a content rule document, stored in the 'policies' table.
// Policies are authored elsewhere; the core only reads the currently
// effective, publicly applicable set at analysis time.
type Policy struct {
	ID            int64      `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Body          string     `db:"body" json:"body"`
	MainType      string     `db:"main_type" json:"main_type"`
	SubCategory   string     `db:"sub_category" json:"sub_category"`
	Status        string     `db:"status" json:"status"` // "active", "draft", "retired"
	Public        bool       `db:"public" json:"public"`
	EffectiveFrom *time.Time `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `db:"effective_to" json:"effective_to,omitempty"`
	SortOrder     int        `db:"sort_order" json:"sort_order"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PolicyStatusActive is the only lifecycle status applied to submissions.
const PolicyStatusActive = "active"
