package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/internal/types"
	"github.com/xhad/newsagent/pkg/store"
)

type Config struct {
	AlertThreshold         int
	QualityAcceptThreshold int
	MaxRetries             int
	// UseLastOnExhaustion keeps the last analysis when no attempt passed the
	// quality gate. When false such items are reported Failed.
	UseLastOnExhaustion bool
	RelatedNews bool
	RelatedK    int
	// SimilarityThreshold of 0 defers to the memory store's default.
	SimilarityThreshold float32
}

// Controller drives one fetch cycle: dedup, analyze/evaluate with bounded
// retries, persist, classify. Items are handled one at a time in feed order.
type Controller struct {
	config    Config
	source    types.FeedSource
	analyzer  types.Analyzer
	evaluator types.Evaluator
	memory    types.Memory
	reporter  types.Reporter
	log       logrus.FieldLogger

	// OnProgress, when set, is called after each item with the number of
	// items handled so far and the total fetched.
	OnProgress func(done, total int)
}

func NewWithConfig(
	config Config,
	source types.FeedSource,
	analyzer types.Analyzer,
	evaluator types.Evaluator,
	memory types.Memory,
	reporter types.Reporter,
	log logrus.FieldLogger,
) *Controller {
	if config.AlertThreshold == 0 {
		config.AlertThreshold = 70
	}
	if config.QualityAcceptThreshold == 0 {
		config.QualityAcceptThreshold = 7
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = -1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Controller{
		config:    config,
		source:    source,
		analyzer:  analyzer,
		evaluator: evaluator,
		memory:    memory,
		reporter:  reporter,
		log:       log.WithField("component", "pipeline"),
	}
}

// Run fetches the feed once and processes every item. A fetch failure aborts
// the run before any item is touched and reports no summary. A storage save
// failure aborts the run after the failing item has been reported. Cancelling
// ctx stops the run between items. Both still report the partial summary.
func (c *Controller) Run(ctx context.Context) (models.RunSummary, error) {
	summary := models.RunSummary{RunID: uuid.NewString()}
	log := c.log.WithField("run_id", summary.RunID)

	log.Info("Fetching news")
	items, err := c.source.Fetch(ctx)
	if err != nil {
		log.WithError(err).Error("Fetch failed, aborting run")
		return summary, err
	}
	summary.Fetched = len(items)
	log.WithField("count", len(items)).Info("Fetched items")

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			log.WithField("remaining", len(items)-i).Warn("Run interrupted")
			c.reporter.Summary(summary)
			return summary, err
		}

		outcome, err := c.ProcessItem(ctx, log, item)
		switch outcome {
		case models.OutcomeSkipped:
			summary.Skipped++
		case models.OutcomeFailed:
			summary.NewItems++
			summary.Failed++
		case models.OutcomeNormal:
			summary.NewItems++
			summary.Normal++
		case models.OutcomeAlert:
			summary.NewItems++
			summary.Alerts++
		}

		if c.OnProgress != nil {
			c.OnProgress(i+1, len(items))
		}

		if store.IsStorageSaveError(err) {
			log.WithError(err).Error("Memory store could not be saved, aborting run")
			c.reporter.Summary(summary)
			return summary, err
		}
	}

	c.reporter.Summary(summary)
	log.WithFields(logrus.Fields{
		"new":     summary.NewItems,
		"alerts":  summary.Alerts,
		"normal":  summary.Normal,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("Run complete")
	return summary, nil
}

// ProcessItem takes one item through the pipeline and reports its outcome.
// The returned error is non-nil only for Failed items.
func (c *Controller) ProcessItem(ctx context.Context, log logrus.FieldLogger, item models.NewsItem) (models.Outcome, error) {
	log = log.WithField("id", item.ID)

	if c.memory.IsDuplicate(item.ID) {
		log.Debug("Already processed, skipping")
		c.reporter.Skipped(item)
		return models.OutcomeSkipped, nil
	}

	analysis, err := c.analyze(ctx, log, item)
	if err != nil {
		return c.fail(log, item, err)
	}

	var related []models.MemoryRecord
	if c.config.RelatedNews {
		related, err = c.memory.FindRelatedNews(ctx, models.EmbeddingText(item, analysis), c.config.RelatedK, c.config.SimilarityThreshold)
		if err != nil {
			log.WithError(err).Warn("Related news lookup failed")
			related = nil
		}
	}

	if err := c.memory.AddNews(ctx, item, analysis); err != nil {
		return c.fail(log, item, fmt.Errorf("persist: %w", err))
	}

	if c.Classify(analysis) == models.ClassAlert {
		log.WithField("score", analysis.Score).Info("Alert")
		c.reporter.Alert(item, analysis, related)
		return models.OutcomeAlert, nil
	}

	log.WithField("score", analysis.Score).Debug("Normal")
	c.reporter.Normal(item, analysis, related)
	return models.OutcomeNormal, nil
}

// Classify applies the alert threshold. It has no effect on persistence.
func (c *Controller) Classify(analysis models.CombinedAnalysis) models.Classification {
	if analysis.Score >= c.config.AlertThreshold {
		return models.ClassAlert
	}
	return models.ClassNormal
}

var errNoAnalysis = errors.New("no analysis produced")

// analyze runs the bounded analyze/evaluate loop. Each attempt re-runs the
// analyzer from scratch. An evaluator failure consumes the attempt but the
// analysis it was grading still counts as the last produced one.
func (c *Controller) analyze(ctx context.Context, log logrus.FieldLogger, item models.NewsItem) (models.CombinedAnalysis, error) {
	var (
		last     models.CombinedAnalysis
		produced bool
		lastErr  error
	)

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		alog := log.WithField("attempt", attempt)

		analysis, err := c.analyzer.Analyze(ctx, item.Title, item.Summary)
		if err != nil {
			alog.WithError(err).Warn("Analysis failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		last, produced = analysis, true

		verdict, err := c.evaluator.Evaluate(ctx, item.Text(), analysis)
		if err != nil {
			alog.WithError(err).Warn("Evaluation failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if verdict.QualityScore >= c.config.QualityAcceptThreshold {
			alog.WithField("quality", verdict.QualityScore).Debug("Analysis accepted")
			return analysis, nil
		}

		alog.WithFields(logrus.Fields{
			"quality":  verdict.QualityScore,
			"feedback": verdict.Feedback,
		}).Warn("Analysis below quality threshold")
	}

	if !produced {
		if lastErr == nil {
			lastErr = errNoAnalysis
		}
		return models.CombinedAnalysis{}, lastErr
	}
	if !c.config.UseLastOnExhaustion {
		return models.CombinedAnalysis{}, fmt.Errorf("no analysis accepted after %d attempts", c.config.MaxRetries)
	}

	log.Info("Retries exhausted, using last analysis")
	return last, nil
}

func (c *Controller) fail(log logrus.FieldLogger, item models.NewsItem, err error) (models.Outcome, error) {
	log.WithError(err).Error("Item failed")
	c.reporter.Failed(item, err)
	return models.OutcomeFailed, err
}
