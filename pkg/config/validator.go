package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		} else if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OpenAI API key is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate embedding config
	if c.Embedding.Provider != "ollama" && c.Embedding.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedding.Provider),
		})
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.api_key",
			Message: "OpenAI API key is required for embeddings",
		})
	}

	// Validate feed config
	if u, err := url.ParseRequestURI(c.Feed.URL); err != nil || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "feed.url",
			Message: "invalid feed URL",
		})
	}

	// Validate memory config
	switch c.Memory.Backend {
	case "file":
		if c.Memory.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   "memory.dir",
				Message: "store directory is required",
			})
		}
	case "pgvector":
		if c.Memory.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "memory.database_url",
				Message: "database URL is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Memory.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "memory.database_url",
				Message: "invalid database URL",
			})
		}
		if c.Memory.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "memory.vector_dim",
				Message: "vector_dim must be positive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "memory.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Memory.Backend),
		})
	}

	if c.Memory.StoreThreshold < 0 || c.Memory.StoreThreshold > 100 {
		errors = append(errors, ValidationError{
			Field:   "memory.store_threshold",
			Message: "store_threshold must be between 0 and 100",
		})
	}

	if c.Memory.SimilarityThreshold < -1 || c.Memory.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "memory.similarity_threshold",
			Message: "similarity_threshold must be a cosine similarity between -1 and 1",
		})
	}

	// Validate pipeline config
	if c.Pipeline.AlertThreshold < 0 || c.Pipeline.AlertThreshold > 100 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.alert_threshold",
			Message: "alert_threshold must be between 0 and 100",
		})
	}

	if c.Pipeline.QualityAcceptThreshold < 1 || c.Pipeline.QualityAcceptThreshold > 10 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.quality_accept_threshold",
			Message: "quality_accept_threshold must be between 1 and 10",
		})
	}

	if c.Pipeline.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_retries",
			Message: "max_retries must be at least 1",
		})
	}

	if c.Pipeline.WatchInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.watch_interval",
			Message: "watch_interval cannot be negative",
		})
	}

	return errors
}
