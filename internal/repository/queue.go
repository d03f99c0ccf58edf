package repository

import (
	"context"
	"fmt"
	"strings"

	"moderation-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100

	// Display fallbacks for records whose denormalized chapter fields
	// never arrived from the authoring side.
	fallbackTitle  = "Untitled chapter"
	fallbackAuthor = "Unknown author"
)

// QueueParams filters and paginates the moderator triage queue.
type QueueParams struct {
	Status  *models.Status
	RiskMin *int
	RiskMax *int
	Search  string
	Page    int
	PerPage int
}

// Normalize clamps pagination to sane bounds and orders a reversed risk
// range. Risk bounds outside [0,100] are clamped, not rejected.
func (p *QueueParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	clamp := func(v *int) {
		if v == nil {
			return
		}
		if *v < 0 {
			*v = 0
		}
		if *v > 100 {
			*v = 100
		}
	}
	clamp(p.RiskMin)
	clamp(p.RiskMax)
	if p.RiskMin != nil && p.RiskMax != nil && *p.RiskMin > *p.RiskMax {
		p.RiskMin, p.RiskMax = p.RiskMax, p.RiskMin
	}
	p.Search = strings.TrimSpace(p.Search)
}

// QueuePage is one page of queue summaries plus the total match count.
type QueuePage struct {
	Items   []*models.QueueItem `json:"items"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
}

// QueueRepository is the read model over moderation records for
// moderator triage.
type QueueRepository interface {
	List(ctx context.Context, params QueueParams) (*QueuePage, error)
}

type queueRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewQueueRepository(db *sqlx.DB, logger *zap.Logger) QueueRepository {
	return &queueRepository{db: db, logger: logger}
}

func (r *queueRepository) List(ctx context.Context, params QueueParams) (*QueuePage, error) {
	params.Normalize()

	where := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Status != nil {
		where = append(where, "status = "+arg(*params.Status))
	}
	if params.RiskMin != nil {
		where = append(where, "risk_score >= "+arg(*params.RiskMin))
	}
	if params.RiskMax != nil {
		where = append(where, "risk_score <= "+arg(*params.RiskMax))
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		where = append(where,
			"(COALESCE(chapter_title, '') ILIKE "+arg(pattern)+" OR COALESCE(author_name, '') ILIKE "+arg(pattern)+")")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM moderation_records WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		r.logger.Error("Failed to count queue records", zap.Error(err))
		return nil, fmt.Errorf("failed to count queue records: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT chapter_id,
		       COALESCE(NULLIF(chapter_title, ''), '%s') AS chapter_title,
		       COALESCE(NULLIF(author_name, ''), '%s') AS author_name,
		       status, risk_score, labels, updated_at, decision_action
		FROM moderation_records
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT %s OFFSET %s`,
		fallbackTitle, fallbackAuthor, whereClause,
		arg(params.PerPage), arg((params.Page-1)*params.PerPage))

	var items []*models.QueueItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		r.logger.Error("Failed to list queue records", zap.Error(err))
		return nil, fmt.Errorf("failed to list queue records: %w", err)
	}

	return &QueuePage{
		Items:   items,
		Total:   total,
		Page:    params.Page,
		PerPage: params.PerPage,
	}, nil
}
