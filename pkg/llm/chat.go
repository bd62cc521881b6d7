package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/newsagent/internal/models"
	"golang.org/x/time/rate"
)

// ChatConfig represents the configuration for the analysis model.
type ChatConfig struct {
	Provider    string // "ollama" or "openai"
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per model call
	RateLimit   float64       // calls per second
}

// ModelEngine runs the analysis and evaluation prompts against one LLM.
// It implements both types.Analyzer and types.Evaluator.
type ModelEngine struct {
	config   ChatConfig
	llm      llms.Model
	limiter  *rate.Limiter
	summary  *SchemaValidator
	score    *SchemaValidator
	verdicts *SchemaValidator
}

// NewWithConfig creates a new ModelEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ModelEngine, error) {
	config = withChatDefaults(config)

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
			ollama.WithFormat("json"),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(config.APIKey),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(model, config)
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, config ChatConfig) (*ModelEngine, error) {
	config = withChatDefaults(config)
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	summary, err := NewSchemaValidator(summarySchema)
	if err != nil {
		return nil, err
	}
	score, err := NewSchemaValidator(scoreSchema)
	if err != nil {
		return nil, err
	}
	verdicts, err := NewSchemaValidator(verdictSchema)
	if err != nil {
		return nil, err
	}

	return &ModelEngine{
		config:   config,
		llm:      model,
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		summary:  summary,
		score:    score,
		verdicts: verdicts,
	}, nil
}

func withChatDefaults(config ChatConfig) ChatConfig {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" && config.Provider == "ollama" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}
	return config
}

// Analyze runs the summary and scoring prompts and merges their output.
// Each call is independent; no conversation state is carried over.
func (e *ModelEngine) Analyze(ctx context.Context, title, content string) (models.CombinedAnalysis, error) {
	values := map[string]any{"title": title, "content": content}

	var analysis models.Analysis
	if err := e.run(ctx, "summarize", summaryPrompt, values, e.summary, &analysis); err != nil {
		return models.CombinedAnalysis{}, err
	}

	var score models.Score
	if err := e.run(ctx, "score", scorePrompt, values, e.score, &score); err != nil {
		return models.CombinedAnalysis{}, err
	}

	return models.Merge(analysis, score), nil
}

// Evaluate asks the model to grade an analysis against the original text.
func (e *ModelEngine) Evaluate(ctx context.Context, originalText string, analysis models.CombinedAnalysis) (models.QualityVerdict, error) {
	values := map[string]any{
		"original_text": originalText,
		"summary":       analysis.Summary,
		"score":         analysis.Score,
		"reasoning":     analysis.Reasoning,
	}

	var verdict models.QualityVerdict
	if err := e.run(ctx, "evaluate", evalPrompt, values, e.verdicts, &verdict); err != nil {
		return models.QualityVerdict{}, err
	}
	return verdict, nil
}

func (e *ModelEngine) run(ctx context.Context, op string, tmpl prompts.PromptTemplate, values map[string]any, v *SchemaValidator, out any) error {
	prompt, err := tmpl.Format(values)
	if err != nil {
		return fmt.Errorf("failed to render %s prompt: %w", op, err)
	}

	raw, err := e.complete(ctx, prompt)
	if err != nil {
		return &ModelError{Op: op, Err: err}
	}

	if err := v.Decode(raw, out); err != nil {
		return &ModelError{Op: op, Err: err}
	}
	return nil
}

func (e *ModelEngine) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return llms.GenerateFromSinglePrompt(ctx, e.llm, prompt,
		llms.WithTemperature(e.config.Temperature),
		llms.WithMaxTokens(e.config.MaxTokens),
		llms.WithJSONMode(),
	)
}
