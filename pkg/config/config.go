package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStoreThreshold         = 50
	DefaultAlertThreshold         = 70
	DefaultQualityAcceptThreshold = 7
	DefaultMaxRetries             = 2
)

type Config struct {
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		RateLimit   float64       `yaml:"rate_limit"`
	} `yaml:"llm"`

	Embedding struct {
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
	} `yaml:"embedding"`

	Feed struct {
		URL              string        `yaml:"url"`
		Timeout          time.Duration `yaml:"timeout"`
		MaxContentLength int           `yaml:"max_content_length"`
	} `yaml:"feed"`

	Memory struct {
		Backend             string  `yaml:"backend"`
		Dir                 string  `yaml:"dir"`
		DatabaseURL         string  `yaml:"database_url"`
		TablePrefix         string  `yaml:"table_prefix"`
		VectorDim           int     `yaml:"vector_dim"`
		StoreThreshold      int     `yaml:"store_threshold"`
		RelatedK            int     `yaml:"related_k"`
		SimilarityThreshold float32 `yaml:"similarity_threshold"`
	} `yaml:"memory"`

	Pipeline struct {
		AlertThreshold         int           `yaml:"alert_threshold"`
		QualityAcceptThreshold int           `yaml:"quality_accept_threshold"`
		MaxRetries             int           `yaml:"max_retries"`
		UseLastOnExhaustion    *bool         `yaml:"use_last_on_exhaustion"`
		RelatedNews            bool          `yaml:"related_news"`
		WatchInterval          time.Duration `yaml:"watch_interval"`
	} `yaml:"pipeline"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	UI struct {
		Color    bool `yaml:"color"`
		Progress bool `yaml:"progress"`
	} `yaml:"ui"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// UseLastOnExhaustion reports whether the last sub-threshold analysis is kept
// once the retry budget runs out. Unset means true.
func (c *Config) UseLastOnExhaustion() bool {
	if c.Pipeline.UseLastOnExhaustion == nil {
		return true
	}
	return *c.Pipeline.UseLastOnExhaustion
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/newsagent/config.yaml"),
			"/etc/newsagent/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Fields absent from the file keep their preset values
	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(config)

	// Apply defaults for unset values
	applyDefaults(config)

	return config, nil
}

// newConfig presets the fields whose zero value is a meaningful setting and
// so cannot be defaulted after loading.
func newConfig() *Config {
	config := &Config{}
	config.UI.Color = true
	config.UI.Progress = true
	return config
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "openai" {
			config.LLM.Model = "gpt-4o"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}
	if config.LLM.RateLimit == 0 {
		config.LLM.RateLimit = 2.0
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = config.LLM.Provider
	}
	if config.Embedding.APIKey == "" {
		config.Embedding.APIKey = config.LLM.APIKey
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == config.LLM.Provider {
		config.Embedding.BaseURL = config.LLM.BaseURL
	}
	if config.Embedding.Model == "" {
		if config.Embedding.Provider == "openai" {
			config.Embedding.Model = "text-embedding-3-small"
		} else {
			config.Embedding.Model = "nomic-embed-text:latest"
		}
	}

	if config.Feed.URL == "" {
		config.Feed.URL = "https://feeds.bloomberg.com/markets/news.rss"
	}
	if config.Feed.Timeout == 0 {
		config.Feed.Timeout = 30 * time.Second
	}
	if config.Feed.MaxContentLength == 0 {
		config.Feed.MaxContentLength = 4000
	}

	if config.Memory.Backend == "" {
		config.Memory.Backend = "file"
	}
	if config.Memory.Dir == "" {
		config.Memory.Dir = "memory_store"
	}
	if config.Memory.TablePrefix == "" {
		config.Memory.TablePrefix = "news"
	}
	if config.Memory.VectorDim == 0 {
		if config.Embedding.Provider == "openai" {
			config.Memory.VectorDim = 1536
		} else {
			config.Memory.VectorDim = 768
		}
	}
	if config.Memory.StoreThreshold == 0 {
		config.Memory.StoreThreshold = DefaultStoreThreshold
	}
	if config.Memory.RelatedK == 0 {
		config.Memory.RelatedK = 3
	}
	if config.Memory.SimilarityThreshold == 0 {
		config.Memory.SimilarityThreshold = 0.75
	}

	if config.Pipeline.AlertThreshold == 0 {
		config.Pipeline.AlertThreshold = DefaultAlertThreshold
	}
	if config.Pipeline.QualityAcceptThreshold == 0 {
		config.Pipeline.QualityAcceptThreshold = DefaultQualityAcceptThreshold
	}
	if config.Pipeline.MaxRetries == 0 {
		config.Pipeline.MaxRetries = DefaultMaxRetries
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Memory.DatabaseURL = dbURL
	}
	if feedURL := os.Getenv("NEWS_FEED_URL"); feedURL != "" {
		config.Feed.URL = feedURL
	}
	if dir := os.Getenv("NEWS_STORE_DIR"); dir != "" {
		config.Memory.Dir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	envInt("STORE_THRESHOLD", &config.Memory.StoreThreshold)
	envInt("ALERT_THRESHOLD", &config.Pipeline.AlertThreshold)
	envInt("QUALITY_ACCEPT_THRESHOLD", &config.Pipeline.QualityAcceptThreshold)
	envInt("MAX_RETRIES", &config.Pipeline.MaxRetries)
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
