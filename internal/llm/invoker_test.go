package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moderation-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	resp      *models.AnalysisResponse
	err       error
	model     string
}

func (p *fakeProvider) Classify(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.calls <= p.failFirst {
		return nil, errors.New("transient provider error")
	}
	return p.resp, nil
}

func (p *fakeProvider) Close() error { return nil }

func (p *fakeProvider) ModelInfo() map[string]interface{} {
	return map[string]interface{}{"model": p.model}
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func floatPtr(v float64) *float64 { return &v }

func newTestInvoker(p Provider, opts ...InvokerOption) *Invoker {
	opts = append([]InvokerOption{WithInitialInterval(time.Millisecond)}, opts...)
	return NewInvoker(p, zap.NewNop(), opts...)
}

func TestAnalyzeValidResponse(t *testing.T) {
	provider := &fakeProvider{
		model: "gemini-2.0-flash-exp",
		resp: &models.AnalysisResponse{
			Status:    "block",
			RiskScore: floatPtr(92.4),
			Labels:    []string{"explicit", "explicit", "", "gore"},
			Findings: []models.RawFinding{
				{SectionID: "explicit", Verdict: "block", Rationale: "Graphic scene in part 2."},
				{SectionID: "plagiarism", Verdict: "pass", Rationale: "Original."},
			},
		},
	}
	inv := newTestInvoker(provider)

	result := inv.Analyze(context.Background(), models.AnalysisRequest{
		ChapterID:     "ch-1",
		Content:       "chapter text",
		PolicyVersion: "abc123",
	})

	require.NoError(t, result.Err)
	assert.Equal(t, models.StatusBlock, result.Status)
	assert.Equal(t, 92, result.RiskScore)
	assert.Equal(t, models.StringList{"explicit", "gore"}, result.Labels, "labels are deduped and empties dropped")
	require.Len(t, result.Findings, 2)
	assert.Equal(t, models.VerdictBlock, result.Findings[0].Verdict)
	assert.Equal(t, "abc123", result.PolicyVersion)
	assert.Equal(t, "gemini-2.0-flash-exp", result.AIModel)
}

func TestAnalyzeCoercesSloppyResponse(t *testing.T) {
	provider := &fakeProvider{
		model: "test-model",
		resp: &models.AnalysisResponse{
			Status:    "REVIEW", // not a known status
			RiskScore: nil,
			Findings: []models.RawFinding{
				{SectionID: "", Verdict: "maybe", Rationale: "unclear"},
			},
		},
	}
	inv := newTestInvoker(provider)

	result := inv.Analyze(context.Background(), models.AnalysisRequest{ChapterID: "ch-1"})

	require.NoError(t, result.Err)
	assert.Equal(t, models.StatusWarn, result.Status, "unknown status degrades to WARN")
	assert.Equal(t, 50, result.RiskScore, "missing risk score defaults to midpoint")
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "section-1", result.Findings[0].SectionID)
	assert.Equal(t, models.VerdictWarn, result.Findings[0].Verdict, "unknown verdict degrades to warn")
}

func TestAnalyzeCoercesUnknownSectionID(t *testing.T) {
	provider := &fakeProvider{
		model: "test-model",
		resp: &models.AnalysisResponse{
			Status:    "warn",
			RiskScore: floatPtr(40),
			Findings: []models.RawFinding{
				{SectionID: "explicit", Verdict: "warn", Rationale: "borderline"},
				{SectionID: "made-up-section", Verdict: "pass", Rationale: "n/a"},
			},
		},
	}
	inv := newTestInvoker(provider)

	result := inv.Analyze(context.Background(), models.AnalysisRequest{
		ChapterID: "ch-1",
		Policies: []*models.Policy{
			{ID: 1, SubCategory: "explicit"},
			{ID: 2, SubCategory: "plagiarism"},
		},
	})

	require.NoError(t, result.Err)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "explicit", result.Findings[0].SectionID, "known section ids are kept")
	assert.Equal(t, "section-2", result.Findings[1].SectionID, "invented section ids are replaced")
}

func TestAnalyzeClampsRiskScore(t *testing.T) {
	for raw, want := range map[float64]int{-10: 0, 250: 100, 33.6: 34} {
		provider := &fakeProvider{
			model: "test-model",
			resp: &models.AnalysisResponse{
				Status:    "pass",
				RiskScore: floatPtr(raw),
				Findings:  []models.RawFinding{{SectionID: "s", Verdict: "pass"}},
			},
		}
		result := newTestInvoker(provider).Analyze(context.Background(), models.AnalysisRequest{ChapterID: "ch-1"})
		assert.Equal(t, want, result.RiskScore, "raw score %v", raw)
	}
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	provider := &fakeProvider{
		model:     "test-model",
		failFirst: 2,
		resp: &models.AnalysisResponse{
			Status:    "pass",
			RiskScore: floatPtr(3),
			Findings:  []models.RawFinding{{SectionID: "s", Verdict: "pass"}},
		},
	}
	inv := newTestInvoker(provider, WithMaxAttempts(3))

	result := inv.Analyze(context.Background(), models.AnalysisRequest{ChapterID: "ch-1"})

	require.NoError(t, result.Err)
	assert.Equal(t, models.StatusPassed, result.Status)
	assert.Equal(t, 3, provider.callCount())
}

func TestAnalyzeFailSafeAfterExhaustedRetries(t *testing.T) {
	provider := &fakeProvider{
		model: "test-model",
		err:   errors.New("provider down"),
	}
	inv := newTestInvoker(provider, WithMaxAttempts(3))

	result := inv.Analyze(context.Background(), models.AnalysisRequest{
		ChapterID:     "ch-1",
		PolicyVersion: "abc123",
	})

	assert.ErrorIs(t, result.Err, models.ErrClassification)
	assert.Equal(t, models.StatusWarn, result.Status, "failed runs degrade to WARN, never PASS or BLOCK")
	assert.Equal(t, 50, result.RiskScore)
	assert.Empty(t, result.AIModel, "no model produced a usable response")
	assert.Equal(t, "abc123", result.PolicyVersion)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "automated-analysis", result.Findings[0].SectionID)
	assert.Equal(t, models.VerdictWarn, result.Findings[0].Verdict)
	assert.Contains(t, result.Findings[0].Rationale, "Manual review required")
	assert.Equal(t, 3, provider.callCount())
}

func TestAnalyzeCancelledContext(t *testing.T) {
	provider := &fakeProvider{model: "test-model", err: errors.New("unreachable")}
	inv := newTestInvoker(provider, WithMaxAttempts(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := inv.Analyze(ctx, models.AnalysisRequest{ChapterID: "ch-1"})

	assert.ErrorIs(t, result.Err, models.ErrClassification)
	assert.Equal(t, models.StatusWarn, result.Status)
}
