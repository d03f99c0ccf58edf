package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"moderation-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PolicyRepository reads the currently effective content policies. The
// selector fails closed: an unreachable store surfaces a retryable error
// instead of an empty snapshot.
type PolicyRepository interface {
	GetEffective(ctx context.Context, mainType string) ([]*models.Policy, error)
}

type policyRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPolicyRepository(db *sqlx.DB, logger *zap.Logger) PolicyRepository {
	return &policyRepository{db: db, logger: logger}
}

func (r *policyRepository) GetEffective(ctx context.Context, mainType string) ([]*models.Policy, error) {
	var policies []*models.Policy
	query := `
		SELECT id, title, body, main_type, sub_category, status, public,
		       effective_from, effective_to, sort_order, updated_at
		FROM policies
		WHERE status = $1
		  AND public = true
		  AND main_type = $2
		  AND (effective_from IS NULL OR effective_from <= now())
		  AND (effective_to IS NULL OR effective_to >= now())
		ORDER BY sort_order, id
	`
	err := r.db.SelectContext(ctx, &policies, query, models.PolicyStatusActive, mainType)
	if err != nil {
		r.logger.Error("Failed to load effective policies", zap.String("main_type", mainType), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrPolicyUnavailable, err)
	}
	if len(policies) == 0 {
		// "No applicable rules" must never silently mean "nothing is
		// checked" for new submissions.
		return nil, fmt.Errorf("%w: no effective policies for %q", models.ErrPolicyUnavailable, mainType)
	}
	return policies, nil
}

// SnapshotVersion derives a stable version tag for an ordered policy
// snapshot. Any policy edit or set change yields a new tag.
func SnapshotVersion(policies []*models.Policy) string {
	h := sha256.New()
	for _, p := range policies {
		fmt.Fprintf(h, "%d:%d;", p.ID, p.UpdatedAt.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
