// Package engine implements the moderation state machine. A chapter's
// record moves AI_PENDING -> AI_PASSED/AI_WARN/AI_BLOCK through analysis
// and is closed out by moderator decisions; content changes invalidate it
// back to AI_PENDING.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moderation-service/internal/fingerprint"
	"moderation-service/internal/models"
	"moderation-service/internal/repository"

	"go.uber.org/zap"
)

// Analyzer produces a validated analysis result. It never fails the
// pipeline: exhausted runs come back as fail-safe WARN results.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult
}

// Effects are the outward side effects of moderator decisions.
type Effects interface {
	PublishChapter(ctx context.Context, chapterID string) error
	NotifyAuthor(ctx context.Context, chapterID string, action models.DecisionAction, note string) error
}

// ChapterSource fetches the current content of a chapter from the
// authoring side, used by recheck.
type ChapterSource interface {
	FetchChapter(ctx context.Context, chapterID string) (title, author, content string, err error)
}

// Observer is notified after state transitions. Used for moderator
// alerting; a nil observer is fine.
type Observer interface {
	RecordBlocked(rec *models.ModerationRecord)
}

// completionRetries bounds the re-fetch loop when a completion loses an
// optimistic-concurrency race against a benign concurrent write.
const completionRetries = 3

// completionTimeout bounds persisting a finished run. Separate from the
// analysis timeout: a run that consumed its whole budget still has a
// fail-safe result that must land.
const completionTimeout = 10 * time.Second

// Engine wires the moderation pipeline together.
type Engine struct {
	store           repository.ModerationRepository
	decisions       repository.DecisionRepository
	policies        repository.PolicyRepository
	analyzer        Analyzer
	effects         Effects
	chapters        ChapterSource
	observer        Observer
	logger          *zap.Logger
	policyCategory  string
	analysisTimeout time.Duration
}

// Params collects the engine's dependencies.
type Params struct {
	Store           repository.ModerationRepository
	Decisions       repository.DecisionRepository
	Policies        repository.PolicyRepository
	Analyzer        Analyzer
	Effects         Effects
	Chapters        ChapterSource
	Observer        Observer // optional
	Logger          *zap.Logger
	PolicyCategory  string
	AnalysisTimeout time.Duration
}

// New creates a decision engine.
func New(p Params) *Engine {
	if p.PolicyCategory == "" {
		p.PolicyCategory = "posting-rules"
	}
	if p.AnalysisTimeout == 0 {
		p.AnalysisTimeout = 2 * time.Minute
	}
	return &Engine{
		store:           p.Store,
		decisions:       p.Decisions,
		policies:        p.Policies,
		analyzer:        p.Analyzer,
		effects:         p.Effects,
		chapters:        p.Chapters,
		observer:        p.Observer,
		logger:          p.Logger,
		policyCategory:  p.PolicyCategory,
		analysisTimeout: p.AnalysisTimeout,
	}
}

// ComputeStatus rolls findings up into the aggregate status. The
// provider's own top-level status is informative only; this is the source
// of truth.
func ComputeStatus(findings models.FindingList) models.Status {
	status := models.StatusPassed
	for _, f := range findings {
		switch f.Verdict {
		case models.VerdictBlock:
			return models.StatusBlock
		case models.VerdictWarn:
			status = models.StatusWarn
		}
	}
	return status
}

// SubmitInput carries a chapter submission or content-change event.
type SubmitInput struct {
	ChapterID string
	Title     string
	Author    string
	Content   string
}

// Submit registers a chapter for moderation. Unchanged content is a
// no-op; new or changed content resets the record to AI_PENDING and
// triggers analysis against the current policy snapshot. Safe under
// at-least-once event delivery.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*models.ModerationRecord, error) {
	if in.ChapterID == "" {
		return nil, fmt.Errorf("%w: chapter id is required", models.ErrValidation)
	}
	if in.Content == "" {
		return nil, fmt.Errorf("%w: chapter content is required", models.ErrValidation)
	}

	hash := fingerprint.Hash(in.Content)

	rec, err := e.store.GetByChapterID(ctx, in.ChapterID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if rec != nil && rec.ContentHash == hash {
		// Idempotent: same content, nothing to redo. A pending record
		// already has a run in flight or is recoverable via recheck.
		return rec, nil
	}

	// Fail closed before any mutation: no policies, no submission.
	policies, err := e.policies.GetEffective(ctx, e.policyCategory)
	if err != nil {
		return nil, err
	}
	policyVersion := repository.SnapshotVersion(policies)

	if rec == nil {
		rec = &models.ModerationRecord{
			ChapterID:    in.ChapterID,
			ChapterTitle: in.Title,
			AuthorName:   in.Author,
			Status:       models.StatusPending,
			ContentHash:  hash,
		}
		if err := e.store.Create(ctx, rec); err != nil {
			return nil, err
		}
		e.logger.Info("Moderation record created",
			zap.String("chapter_id", in.ChapterID),
			zap.String("content_hash", hash))
	} else {
		// Content changed: supersede. Any in-flight analysis keyed to the
		// old hash will be discarded on completion.
		rec.Status = models.StatusPending
		rec.ContentHash = hash
		if in.Title != "" {
			rec.ChapterTitle = in.Title
		}
		if in.Author != "" {
			rec.AuthorName = in.Author
		}
		if err := e.store.Update(ctx, rec, rec.Version); err != nil {
			return nil, err
		}
		e.logger.Info("Moderation record reset for changed content",
			zap.String("chapter_id", in.ChapterID),
			zap.String("content_hash", hash))
	}

	e.dispatchAnalysis(in.ChapterID, in.Title, in.Content, hash, policies, policyVersion)

	return rec, nil
}

// dispatchAnalysis runs the classification asynchronously. The caller's
// context is not reused: the run outlives the request, and staleness on
// completion is the cancellation mechanism.
func (e *Engine) dispatchAnalysis(chapterID, title, content, hash string, policies []*models.Policy, policyVersion string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.analysisTimeout)
		result := e.analyzer.Analyze(ctx, models.AnalysisRequest{
			ChapterID:     chapterID,
			Title:         title,
			Content:       fingerprint.Normalize(content),
			ContentHash:   hash,
			Policies:      policies,
			PolicyVersion: policyVersion,
		})
		cancel()

		// The analysis context may already be expired; the result is
		// persisted under its own deadline so the record cannot stay
		// AI_PENDING forever.
		persistCtx, persistCancel := context.WithTimeout(context.Background(), completionTimeout)
		defer persistCancel()

		if _, err := e.CompleteAnalysis(persistCtx, chapterID, hash, result); err != nil {
			if errors.Is(err, models.ErrStaleContent) {
				e.logger.Info("Discarding analysis result for superseded content",
					zap.String("chapter_id", chapterID),
					zap.String("analyzed_hash", hash))
				return
			}
			e.logger.Error("Failed to apply analysis result",
				zap.String("chapter_id", chapterID),
				zap.Error(err))
		}
	}()
}

// CompleteAnalysis applies a finished analysis run. The result is
// applied at most once and only if the record still reflects the content
// the run analyzed; stale results are rejected with ErrStaleContent.
func (e *Engine) CompleteAnalysis(ctx context.Context, chapterID, analyzedHash string, result *models.AnalysisResult) (*models.ModerationRecord, error) {
	for attempt := 0; attempt < completionRetries; attempt++ {
		rec, err := e.store.GetByChapterID(ctx, chapterID)
		if err != nil {
			return nil, err
		}

		if rec.ContentHash != analyzedHash {
			return nil, fmt.Errorf("%w: analysis computed against %s, record now at %s",
				models.ErrStaleContent, analyzedHash, rec.ContentHash)
		}

		rec.Findings = result.Findings
		rec.Status = ComputeStatus(result.Findings)
		rec.RiskScore = result.RiskScore
		rec.Labels = result.Labels
		rec.PolicyVersion = result.PolicyVersion
		if result.AIModel != "" {
			model := result.AIModel
			rec.AIModel = &model
		} else {
			rec.AIModel = nil
		}

		err = e.store.Update(ctx, rec, rec.Version)
		if errors.Is(err, models.ErrConcurrency) {
			// Someone raced us; re-read and re-check staleness.
			continue
		}
		if err != nil {
			return nil, err
		}

		e.logger.Info("Analysis result applied",
			zap.String("chapter_id", chapterID),
			zap.String("status", string(rec.Status)),
			zap.Int("risk_score", rec.RiskScore))

		if rec.Status == models.StatusBlock && e.observer != nil {
			e.observer.RecordBlocked(rec)
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: gave up applying analysis for chapter %s", models.ErrConcurrency, chapterID)
}

// DecideInput carries one moderator decision.
type DecideInput struct {
	ChapterID string
	Action    string
	Note      string
	Moderator string
	// Force bypasses the AI_PENDING guard only; never the version check.
	Force bool
}

// Decide applies a moderator decision and emits the matching effect.
// An AI_BLOCK status is advisory, not a veto: approve still succeeds.
// Replaying the identical decision is a no-op.
func (e *Engine) Decide(ctx context.Context, in DecideInput) (*models.ModerationRecord, error) {
	action, err := models.ParseDecisionAction(in.Action)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.GetByChapterID(ctx, in.ChapterID)
	if err != nil {
		return nil, err
	}

	if rec.Status == models.StatusPending && !in.Force {
		return nil, fmt.Errorf("%w: chapter %s is still awaiting analysis, no findings to act on",
			models.ErrValidation, in.ChapterID)
	}

	// Identical replay: accept as a no-op without re-emitting effects.
	if rec.DecisionAction != nil && *rec.DecisionAction == string(action) &&
		rec.DecisionNote != nil && *rec.DecisionNote == in.Note {
		return rec, nil
	}

	actionStr := string(action)
	now := time.Now()
	rec.DecisionAction = &actionStr
	rec.DecisionNote = &in.Note
	rec.DecisionModerator = &in.Moderator
	rec.DecidedAt = &now

	if err := e.store.Update(ctx, rec, rec.Version); err != nil {
		return nil, err
	}

	if err := e.decisions.Append(ctx, &models.Decision{
		ChapterID: in.ChapterID,
		Action:    action,
		Note:      in.Note,
		Moderator: in.Moderator,
	}); err != nil {
		// History is secondary to the record; don't fail the decision.
		e.logger.Error("Failed to append decision history",
			zap.String("chapter_id", in.ChapterID), zap.Error(err))
	}

	e.logger.Info("Moderator decision applied",
		zap.String("chapter_id", in.ChapterID),
		zap.String("action", actionStr),
		zap.String("moderator", in.Moderator))

	e.emitDecisionEffect(ctx, rec.ChapterID, action, in.Note)

	return rec, nil
}

// emitDecisionEffect delivers the collaborator-facing side effect. Effect
// delivery failures are logged, not surfaced: the decision itself is
// already durable.
func (e *Engine) emitDecisionEffect(ctx context.Context, chapterID string, action models.DecisionAction, note string) {
	var err error
	switch action {
	case models.ActionApprove:
		err = e.effects.PublishChapter(ctx, chapterID)
	case models.ActionReject, models.ActionRequestChanges:
		err = e.effects.NotifyAuthor(ctx, chapterID, action, note)
	}
	if err != nil {
		e.logger.Error("Failed to emit decision effect",
			zap.String("chapter_id", chapterID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// Recheck forces a fresh analysis of the chapter's current content,
// hash changed or not. Used after policy updates or on moderator request.
func (e *Engine) Recheck(ctx context.Context, chapterID string) (*models.ModerationRecord, error) {
	rec, err := e.store.GetByChapterID(ctx, chapterID)
	if err != nil {
		return nil, err
	}

	title, author, content, err := e.chapters.FetchChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current chapter content: %w", err)
	}

	policies, err := e.policies.GetEffective(ctx, e.policyCategory)
	if err != nil {
		return nil, err
	}
	policyVersion := repository.SnapshotVersion(policies)

	hash := fingerprint.Hash(content)
	rec.Status = models.StatusPending
	rec.ContentHash = hash
	if title != "" {
		rec.ChapterTitle = title
	}
	if author != "" {
		rec.AuthorName = author
	}

	if err := e.store.Update(ctx, rec, rec.Version); err != nil {
		return nil, err
	}

	e.logger.Info("Recheck requested",
		zap.String("chapter_id", chapterID),
		zap.String("content_hash", hash))

	e.dispatchAnalysis(chapterID, rec.ChapterTitle, content, hash, policies, policyVersion)

	return rec, nil
}

// Invalidate marks the record stale without re-running analysis. The
// caller supplies the hash of the changed content; re-analysis cost is
// deferred until the next submit or recheck.
func (e *Engine) Invalidate(ctx context.Context, chapterID, contentHash string) (*models.ModerationRecord, error) {
	if contentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", models.ErrValidation)
	}

	rec, err := e.store.GetByChapterID(ctx, chapterID)
	if err != nil {
		return nil, err
	}

	if rec.ContentHash == contentHash && rec.Status == models.StatusPending {
		return rec, nil
	}

	rec.Status = models.StatusPending
	rec.ContentHash = contentHash

	if err := e.store.Update(ctx, rec, rec.Version); err != nil {
		return nil, err
	}

	e.logger.Info("Moderation record invalidated",
		zap.String("chapter_id", chapterID),
		zap.String("content_hash", contentHash))

	return rec, nil
}

// GetRecord returns the full moderation record for a chapter.
func (e *Engine) GetRecord(ctx context.Context, chapterID string) (*models.ModerationRecord, error) {
	return e.store.GetByChapterID(ctx, chapterID)
}

// ListDecisions returns the chapter's decision history, newest first.
func (e *Engine) ListDecisions(ctx context.Context, chapterID string) ([]*models.Decision, error) {
	if _, err := e.store.GetByChapterID(ctx, chapterID); err != nil {
		return nil, err
	}
	return e.decisions.ListByChapter(ctx, chapterID)
}
