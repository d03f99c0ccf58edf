package repository

import (
	"testing"

	"moderation-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestQueueParamsNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := QueueParams{}
		p.Normalize()
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, defaultPerPage, p.PerPage)
	})

	t.Run("per page capped", func(t *testing.T) {
		p := QueueParams{Page: 3, PerPage: 5000}
		p.Normalize()
		assert.Equal(t, 3, p.Page)
		assert.Equal(t, maxPerPage, p.PerPage)
	})

	t.Run("negative page reset", func(t *testing.T) {
		p := QueueParams{Page: -2, PerPage: -1}
		p.Normalize()
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, defaultPerPage, p.PerPage)
	})

	t.Run("risk bounds clamped", func(t *testing.T) {
		p := QueueParams{RiskMin: intPtr(-5), RiskMax: intPtr(140)}
		p.Normalize()
		assert.Equal(t, 0, *p.RiskMin)
		assert.Equal(t, 100, *p.RiskMax)
	})

	t.Run("reversed risk range swapped", func(t *testing.T) {
		p := QueueParams{RiskMin: intPtr(80), RiskMax: intPtr(20)}
		p.Normalize()
		assert.Equal(t, 20, *p.RiskMin)
		assert.Equal(t, 80, *p.RiskMax)
	})

	t.Run("search trimmed", func(t *testing.T) {
		p := QueueParams{Search: "  dragon  "}
		p.Normalize()
		assert.Equal(t, "dragon", p.Search)
	})
}

func TestStatusValid(t *testing.T) {
	assert.True(t, models.StatusPending.Valid())
	assert.True(t, models.StatusWarn.Valid())
	assert.True(t, models.StatusBlock.Valid())
	assert.True(t, models.StatusPassed.Valid())
	assert.False(t, models.Status("APPROVED").Valid())
	assert.False(t, models.Status("").Valid())
}
