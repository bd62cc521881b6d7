package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/xhad/newsagent/internal/types"
	cfgPkg "github.com/xhad/newsagent/pkg/config"
	"github.com/xhad/newsagent/pkg/feed"
	"github.com/xhad/newsagent/pkg/llm"
	"github.com/xhad/newsagent/pkg/logger"
	"github.com/xhad/newsagent/pkg/pipeline"
	"github.com/xhad/newsagent/pkg/processor"
	"github.com/xhad/newsagent/pkg/report"
	"github.com/xhad/newsagent/pkg/store"
	"github.com/xhad/newsagent/server"
)

type Options struct {
	ConfigPath string
	FeedURL    string
	StoreDir   string
	Watch      time.Duration
	Serve      string
}

func main() {
	opts := parseFlags(os.Args[1:])

	if err := run(opts); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) Options {
	var opts Options

	fs := flag.NewFlagSet("newsagent", flag.ExitOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	fs.StringVar(&opts.FeedURL, "feed-url", "", "RSS feed URL to monitor")
	fs.StringVar(&opts.StoreDir, "store-dir", "", "Directory for the file memory backend")
	fs.DurationVar(&opts.Watch, "watch", 0, "Repeat the fetch cycle on this interval until interrupted")
	fs.StringVar(&opts.Serve, "serve", "", "Serve related-news queries on this address")
	fs.Parse(args)

	return opts
}

// loadConfig reads the config file and lets command line flags override it.
func loadConfig(opts Options) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.FeedURL != "" {
		cfg.Feed.URL = opts.FeedURL
	}
	if opts.StoreDir != "" {
		cfg.Memory.Dir = opts.StoreDir
	}
	if opts.Watch != 0 {
		cfg.Pipeline.WatchInterval = opts.Watch
	}
	if opts.Serve != "" {
		cfg.Server.Addr = opts.Serve
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("  %v", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}
	return cfg, nil
}

func buildPersister(ctx context.Context, cfg *cfgPkg.Config) (store.Persister, error) {
	switch cfg.Memory.Backend {
	case "pgvector":
		return store.NewPGPersister(ctx, store.PGConfig{
			ConnString:  cfg.Memory.DatabaseURL,
			TablePrefix: cfg.Memory.TablePrefix,
			VectorDim:   cfg.Memory.VectorDim,
		})
	case "file", "":
		return store.NewFilePersister(cfg.Memory.Dir), nil
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", cfg.Memory.Backend)
	}
}

func run(opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLM.Timeout,
		RateLimit:   cfg.LLM.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize model engine: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	persister, err := buildPersister(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	memory := store.NewWithConfig(store.MemoryStoreConfig{
		StoreThreshold:      cfg.Memory.StoreThreshold,
		RelatedK:            cfg.Memory.RelatedK,
		SimilarityThreshold: cfg.Memory.SimilarityThreshold,
	}, embedder, persister, log)
	defer memory.Close()

	// A load failure leaves the store empty and usable
	_ = memory.Load(ctx)

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		MaxContentLength: cfg.Feed.MaxContentLength,
		StripHTML:        true,
	})
	source, err := feed.NewWithConfig(feed.SourceConfig{
		URL:       cfg.Feed.URL,
		Timeout:   cfg.Feed.Timeout,
		Processor: &proc,
	})
	if err != nil {
		return err
	}

	reporter := report.NewConsole(report.ConsoleConfig{
		Out:     os.Stdout,
		Color:   cfg.UI.Color,
		Verbose: log.IsLevelEnabled(logrus.DebugLevel),
	})

	var src types.FeedSource = source
	if cfg.UI.Progress {
		src = &spinnerSource{source: source, description: "📡 Fetching " + cfg.Feed.URL}
	}

	controller := pipeline.NewWithConfig(pipeline.Config{
		AlertThreshold:         cfg.Pipeline.AlertThreshold,
		QualityAcceptThreshold: cfg.Pipeline.QualityAcceptThreshold,
		MaxRetries:             cfg.Pipeline.MaxRetries,
		UseLastOnExhaustion:    cfg.UseLastOnExhaustion(),
		RelatedNews:            cfg.Pipeline.RelatedNews,
		RelatedK:               cfg.Memory.RelatedK,
		SimilarityThreshold:    cfg.Memory.SimilarityThreshold,
	}, src, engine, engine, memory, reporter, log)
	if cfg.UI.Progress {
		controller.OnProgress = newItemProgress("🔄 Analyzing news...").update
	}

	serveErr := make(chan error, 1)
	if cfg.Server.Addr != "" {
		srv := server.NewWSServer(server.Config{Addr: cfg.Server.Addr}, memory, log)
		go func() {
			serveErr <- srv.ListenAndServe(ctx)
		}()
	}

	color.Blue("\nMonitoring %s\n", cfg.Feed.URL)

	if cfg.Pipeline.WatchInterval == 0 {
		if _, err := controller.Run(ctx); err != nil {
			return err
		}
		if cfg.Server.Addr == "" {
			return nil
		}
		// Keep answering queries until interrupted
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErr:
			return err
		}
	}

	return watch(ctx, log, controller, cfg.Pipeline.WatchInterval, serveErr)
}

// watch repeats the fetch cycle every interval. A fetch failure only ends the
// current cycle; any other run error stops the loop.
func watch(ctx context.Context, log logrus.FieldLogger, controller *pipeline.Controller, interval time.Duration, serveErr <-chan error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, err := controller.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			return nil
		case feed.IsFetchError(err):
			log.WithError(err).Warn("Fetch failed, retrying next cycle")
		default:
			return err
		}

		log.WithField("next_in", interval).Info("Waiting for next cycle")
		select {
		case <-ctx.Done():
			color.Yellow("\nStopped")
			return nil
		case err := <-serveErr:
			return err
		case <-ticker.C:
		}
	}
}
