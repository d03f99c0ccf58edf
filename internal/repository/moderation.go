package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moderation-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ModerationRepository is the single source of truth for mutable
// moderation state. Every update carries the version the caller believes
// is current; conflicting concurrent writes fail with ErrConcurrency.
type ModerationRepository interface {
	Create(ctx context.Context, rec *models.ModerationRecord) error
	GetByChapterID(ctx context.Context, chapterID string) (*models.ModerationRecord, error)
	Update(ctx context.Context, rec *models.ModerationRecord, expectedVersion int64) error
}

type moderationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewModerationRepository(db *sqlx.DB, logger *zap.Logger) ModerationRepository {
	return &moderationRepository{db: db, logger: logger}
}

const recordColumns = `id, chapter_id, chapter_title, author_name, status, risk_score, labels, findings,
	policy_version, ai_model, content_hash, version, created_at, updated_at,
	decision_action, decision_note, decision_moderator, decided_at`

func (r *moderationRepository) Create(ctx context.Context, rec *models.ModerationRecord) error {
	query := `INSERT INTO moderation_records
		(chapter_id, chapter_title, author_name, status, risk_score, labels, findings, policy_version, ai_model, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, version, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		rec.ChapterID, rec.ChapterTitle, rec.AuthorName, rec.Status, rec.RiskScore,
		rec.Labels, rec.Findings, rec.PolicyVersion, rec.AIModel, rec.ContentHash,
	).Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create moderation record: %w", err)
	}
	return nil
}

func (r *moderationRepository) GetByChapterID(ctx context.Context, chapterID string) (*models.ModerationRecord, error) {
	var rec models.ModerationRecord
	query := `SELECT ` + recordColumns + ` FROM moderation_records WHERE chapter_id = $1`
	err := r.db.GetContext(ctx, &rec, query, chapterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: chapter %s", models.ErrNotFound, chapterID)
		}
		return nil, err
	}
	return &rec, nil
}

// Update writes the record only if its stored version still equals
// expectedVersion, bumping the version on success. A conflicting write by
// another actor surfaces as ErrConcurrency, never a silent overwrite.
func (r *moderationRepository) Update(ctx context.Context, rec *models.ModerationRecord, expectedVersion int64) error {
	query := `UPDATE moderation_records SET
			chapter_title = $1, author_name = $2, status = $3, risk_score = $4,
			labels = $5, findings = $6, policy_version = $7, ai_model = $8, content_hash = $9,
			decision_action = $10, decision_note = $11, decision_moderator = $12, decided_at = $13,
			version = version + 1, updated_at = now()
		WHERE chapter_id = $14 AND version = $15
		RETURNING version, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		rec.ChapterTitle, rec.AuthorName, rec.Status, rec.RiskScore,
		rec.Labels, rec.Findings, rec.PolicyVersion, rec.AIModel, rec.ContentHash,
		rec.DecisionAction, rec.DecisionNote, rec.DecisionModerator, rec.DecidedAt,
		rec.ChapterID, expectedVersion,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update moderation record: %w", err)
	}

	// Zero rows: either the record is gone or someone else won the race.
	var exists bool
	checkErr := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM moderation_records WHERE chapter_id = $1)`, rec.ChapterID)
	if checkErr != nil {
		return fmt.Errorf("failed to check moderation record existence: %w", checkErr)
	}
	if !exists {
		return fmt.Errorf("%w: chapter %s", models.ErrNotFound, rec.ChapterID)
	}

	r.logger.Warn("Optimistic concurrency conflict on moderation record",
		zap.String("chapter_id", rec.ChapterID),
		zap.Int64("expected_version", expectedVersion))
	return fmt.Errorf("%w: chapter %s expected version %d", models.ErrConcurrency, rec.ChapterID, expectedVersion)
}
