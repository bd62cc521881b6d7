package models

// NewsItem is a single entry pulled from the feed. ID is the stable dedup key.
type NewsItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"`
	Summary   string `json:"summary"`
}

// Text is the original text handed to the evaluator.
func (n NewsItem) Text() string {
	return n.Title + "\n" + n.Summary
}

type Analysis struct {
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`
	Category string   `json:"category"`
}

type Score struct {
	Score        int    `json:"score"`
	Reasoning    string `json:"reasoning"`
	WhyItMatters string `json:"why_it_matters"`
}

// CombinedAnalysis merges the summary and scoring stages. It is the unit
// that gets persisted and classified.
type CombinedAnalysis struct {
	Summary      string   `json:"summary"`
	Entities     []string `json:"entities"`
	Category     string   `json:"category"`
	Score        int      `json:"score"`
	Reasoning    string   `json:"reasoning"`
	WhyItMatters string   `json:"why_it_matters"`
}

// Merge builds a CombinedAnalysis from the two analyzer stages.
func Merge(a Analysis, s Score) CombinedAnalysis {
	entities := make([]string, len(a.Entities))
	copy(entities, a.Entities)
	return CombinedAnalysis{
		Summary:      a.Summary,
		Entities:     entities,
		Category:     a.Category,
		Score:        s.Score,
		Reasoning:    s.Reasoning,
		WhyItMatters: s.WhyItMatters,
	}
}

type QualityVerdict struct {
	QualityScore int    `json:"quality_score"`
	Feedback     string `json:"feedback"`
}

// MemoryRecord is the metadata kept next to each embedded vector.
type MemoryRecord struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Score         int     `json:"score"`
	Category      string  `json:"category"`
	Published     string  `json:"published"`
	EmbeddingText string  `json:"embedding_text"`
	Similarity    float32 `json:"similarity,omitempty"`
}

// EmbeddingText is the text embedded for a qualifying item.
func EmbeddingText(item NewsItem, analysis CombinedAnalysis) string {
	return item.Title + "\n" + analysis.Summary
}

// Classification is the reporting decision made for a persisted item.
type Classification int

const (
	ClassNormal Classification = iota
	ClassAlert
)

func (c Classification) String() string {
	if c == ClassAlert {
		return "alert"
	}
	return "normal"
}

// Outcome is the terminal state of an item after one pipeline pass.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeFailed
	OutcomeNormal
	OutcomeAlert
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeNormal:
		return "normal"
	case OutcomeAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// RunSummary counts what happened during one fetch cycle.
type RunSummary struct {
	RunID    string
	Fetched  int
	NewItems int
	Alerts   int
	Normal   int
	Skipped  int
	Failed   int
}
