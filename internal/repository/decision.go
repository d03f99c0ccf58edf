package repository

import (
	"context"
	"fmt"

	"moderation-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DecisionRepository is the append-only moderator decision history. The
// latest decision is also denormalized onto the moderation record, which
// is what drives publish/reject effects.
type DecisionRepository interface {
	Append(ctx context.Context, decision *models.Decision) error
	ListByChapter(ctx context.Context, chapterID string) ([]*models.Decision, error)
}

type decisionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewDecisionRepository(db *sqlx.DB, logger *zap.Logger) DecisionRepository {
	return &decisionRepository{db: db, logger: logger}
}

func (r *decisionRepository) Append(ctx context.Context, decision *models.Decision) error {
	query := `INSERT INTO decisions (chapter_id, action, note, moderator)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query,
		decision.ChapterID, decision.Action, decision.Note, decision.Moderator,
	).Scan(&decision.ID, &decision.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

func (r *decisionRepository) ListByChapter(ctx context.Context, chapterID string) ([]*models.Decision, error) {
	var decisions []*models.Decision
	query := `SELECT id, chapter_id, action, note, moderator, created_at
		FROM decisions WHERE chapter_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &decisions, query, chapterID); err != nil {
		return nil, err
	}
	return decisions, nil
}
