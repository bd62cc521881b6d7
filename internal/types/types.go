package types

import (
	"context"

	"github.com/xhad/newsagent/internal/models"
)

// Core interfaces
type FeedSource interface {
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, title, content string) (models.CombinedAnalysis, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, originalText string, analysis models.CombinedAnalysis) (models.QualityVerdict, error)
}

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Memory is the dedup authority and semantic recall over important news.
type Memory interface {
	IsDuplicate(id string) bool
	AddNews(ctx context.Context, item models.NewsItem, analysis models.CombinedAnalysis) error
	FindRelatedNews(ctx context.Context, content string, k int, scoreThreshold float32) ([]models.MemoryRecord, error)
}

// Reporter is the per-item reporting sink.
type Reporter interface {
	Alert(item models.NewsItem, analysis models.CombinedAnalysis, related []models.MemoryRecord)
	Normal(item models.NewsItem, analysis models.CombinedAnalysis, related []models.MemoryRecord)
	Skipped(item models.NewsItem)
	Failed(item models.NewsItem, err error)
	Summary(summary models.RunSummary)
}
