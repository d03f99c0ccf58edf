package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"moderation-service/internal/gemini"
	"moderation-service/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxAttempts   = 3
	defaultMaxConcurrent = 4

	// Mid-risk fallback used when the model omits the score or the run
	// fails outright, so the chapter lands in front of a human.
	fallbackRiskScore = 50

	failureSectionID = "automated-analysis"
)

// Invoker turns a chapter plus policy snapshot into a validated analysis
// result. Transient provider failures are retried with exponential
// backoff; an exhausted run degrades to a WARN result instead of failing
// the pipeline, so a chapter is never auto-approved or lost because the
// model was unavailable.
type Invoker struct {
	provider        Provider
	logger          *zap.Logger
	maxAttempts     int
	initialInterval time.Duration
	sem             *semaphore.Weighted
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithMaxAttempts sets the attempt ceiling per analysis run.
func WithMaxAttempts(n int) InvokerOption {
	return func(inv *Invoker) {
		if n > 0 {
			inv.maxAttempts = n
		}
	}
}

// WithMaxConcurrent bounds in-flight provider calls across all runs.
func WithMaxConcurrent(n int64) InvokerOption {
	return func(inv *Invoker) {
		if n > 0 {
			inv.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithInitialInterval sets the first backoff delay (mainly for tests).
func WithInitialInterval(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.initialInterval = d
		}
	}
}

// NewInvoker creates an invoker over the given provider.
func NewInvoker(provider Provider, logger *zap.Logger, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		provider:        provider,
		logger:          logger,
		maxAttempts:     defaultMaxAttempts,
		initialInterval: 2 * time.Second,
		sem:             semaphore.NewWeighted(defaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Analyze runs one classification. It never returns an error to the
// pipeline; a failed run yields a synthetic WARN result whose single
// finding explains the failure, with Err carrying the cause for logging.
func (inv *Invoker) Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult {
	runID := uuid.New().String()

	if err := inv.sem.Acquire(ctx, 1); err != nil {
		return inv.failSafe(req, runID, fmt.Errorf("%w: %v", models.ErrClassification, err))
	}
	defer inv.sem.Release(1)

	var resp *models.AnalysisResponse

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = inv.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(inv.maxAttempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		r, err := inv.provider.Classify(ctx, req)
		if err != nil {
			inv.logger.Warn("Analysis attempt failed",
				zap.String("run_id", runID),
				zap.String("chapter_id", req.ChapterID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", inv.maxAttempts),
				zap.Error(err))
			return err
		}
		resp = r
		return nil
	}, policy)
	if err != nil {
		return inv.failSafe(req, runID, fmt.Errorf("%w: %v", models.ErrClassification, err))
	}

	result := inv.validate(req, resp)

	inv.logger.Info("Analysis completed",
		zap.String("run_id", runID),
		zap.String("chapter_id", req.ChapterID),
		zap.String("status", string(result.Status)),
		zap.Int("risk_score", result.RiskScore),
		zap.Int("attempts", attempt))

	return result
}

// validate coerces the untrusted provider response into the core's
// finding model: clamp and default rather than throw.
func (inv *Invoker) validate(req models.AnalysisRequest, resp *models.AnalysisResponse) *models.AnalysisResult {
	known := make(map[string]bool)
	for _, id := range gemini.SectionIDs(req) {
		known[id] = true
	}

	findings := make(models.FindingList, 0, len(resp.Findings))
	for i, raw := range resp.Findings {
		// Section ids the model invented are replaced with positional
		// ones rather than recorded as if they named a policy section.
		sectionID := raw.SectionID
		if sectionID == "" || (len(known) > 0 && !known[sectionID]) {
			sectionID = fmt.Sprintf("section-%d", i+1)
		}
		findings = append(findings, models.Finding{
			SectionID: sectionID,
			Verdict:   coerceVerdict(raw.Verdict),
			Rationale: raw.Rationale,
		})
	}

	labels := make(models.StringList, 0, len(resp.Labels))
	seen := make(map[string]bool, len(resp.Labels))
	for _, l := range resp.Labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}

	modelName := ""
	if m, ok := inv.provider.ModelInfo()["model"].(string); ok {
		modelName = m
	}

	return &models.AnalysisResult{
		Status:        coerceStatus(resp.Status),
		RiskScore:     coerceRiskScore(resp.RiskScore),
		Labels:        labels,
		Findings:      findings,
		PolicyVersion: req.PolicyVersion,
		AIModel:       modelName,
	}
}

// failSafe builds the synthetic WARN result for an exhausted run. The
// aiModel stays empty: no model produced a usable response.
func (inv *Invoker) failSafe(req models.AnalysisRequest, runID string, cause error) *models.AnalysisResult {
	inv.logger.Error("Analysis failed, degrading to WARN for human review",
		zap.String("run_id", runID),
		zap.String("chapter_id", req.ChapterID),
		zap.Error(cause))

	return &models.AnalysisResult{
		Status:    models.StatusWarn,
		RiskScore: fallbackRiskScore,
		Findings: models.FindingList{{
			SectionID: failureSectionID,
			Verdict:   models.VerdictWarn,
			Rationale: fmt.Sprintf("Automated analysis failed after %d attempts: %v. Manual review required.", inv.maxAttempts, cause),
		}},
		PolicyVersion: req.PolicyVersion,
		Err:           cause,
	}
}

func coerceStatus(raw string) models.Status {
	switch raw {
	case "pass":
		return models.StatusPassed
	case "warn":
		return models.StatusWarn
	case "block":
		return models.StatusBlock
	}
	return models.StatusWarn
}

func coerceVerdict(raw string) models.Verdict {
	switch models.Verdict(raw) {
	case models.VerdictPass, models.VerdictWarn, models.VerdictBlock:
		return models.Verdict(raw)
	}
	return models.VerdictWarn
}

func coerceRiskScore(raw *float64) int {
	if raw == nil || math.IsNaN(*raw) {
		return fallbackRiskScore
	}
	score := int(math.Round(*raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
