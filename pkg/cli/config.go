package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/gleaner/pkg/batch"
	"github.com/m-mizutani/gleaner/pkg/cache"
	fileconfig "github.com/m-mizutani/gleaner/pkg/config"
	"github.com/m-mizutani/gleaner/pkg/enricher"
	"github.com/m-mizutani/gleaner/pkg/pipeline"
	"github.com/m-mizutani/gleaner/pkg/repository"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	backend  string
	dbPath   string
	project  string
	database string
	bucket   string
	prefix   string

	// LLM
	llm             string
	model           string
	anthropicAPIKey string
	geminiProject   string
	geminiLocation  string
	timeout         time.Duration

	// Source
	source    string
	userAgent string

	// Pipeline
	configPath  string
	limit       int64
	sort        string
	concurrency int64
	pacing      time.Duration
}

// globalFlags returns store flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Store backend (sqlite, firestore, cloudstorage)",
			Value:       string(repository.BackendSQLite),
			Sources:     cli.EnvVars("GLEANER_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "SQLite database file",
			Value:       "gleaner.db",
			Sources:     cli.EnvVars("GLEANER_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket",
			Sources:     cli.EnvVars("GLEANER_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Collection prefix (firestore) or object path prefix (cloudstorage)",
			Sources:     cli.EnvVars("GLEANER_PREFIX"),
			Destination: &cfg.prefix,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm",
			Usage:       "Enrichment service (gemini, claude)",
			Value:       "gemini",
			Sources:     cli.EnvVars("GLEANER_LLM"),
			Destination: &cfg.llm,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Model name, the provider default if empty",
			Sources:     cli.EnvVars("GLEANER_MODEL"),
			Destination: &cfg.model,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of one enrichment call",
			Value:       cache.DefaultCallTimeout,
			Sources:     cli.EnvVars("GLEANER_TIMEOUT"),
			Destination: &cfg.timeout,
		},
	}
}

// sourceFlags returns flags selecting the content source
func sourceFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Content source (reddit, feed)",
			Value:       string(adapter.SourceReddit),
			Sources:     cli.EnvVars("GLEANER_SOURCE"),
			Destination: &cfg.source,
		},
		&cli.StringFlag{
			Name:        "user-agent",
			Usage:       "User-Agent sent to the content source",
			Sources:     cli.EnvVars("GLEANER_USER_AGENT"),
			Destination: &cfg.userAgent,
		},
	}
}

// pipelineFlags returns flags tuning discovery and batching. They override the config file.
func pipelineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML file with queries, limit, sort, concurrency, pacing and schedule",
			Sources:     cli.EnvVars("GLEANER_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Number of items fetched per query",
			Sources:     cli.EnvVars("GLEANER_LIMIT"),
			Destination: &cfg.limit,
		},
		&cli.StringFlag{
			Name:        "sort",
			Usage:       "Sort order of the source (hot, new, rising, top, relevance)",
			Sources:     cli.EnvVars("GLEANER_SORT"),
			Destination: &cfg.sort,
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "Maximum concurrent enrichment calls per chunk",
			Sources:     cli.EnvVars("GLEANER_CONCURRENCY"),
			Destination: &cfg.concurrency,
		},
		&cli.DurationFlag{
			Name:        "pacing",
			Usage:       "Delay between chunks and between queries",
			Sources:     cli.EnvVars("GLEANER_PACING"),
			Destination: &cfg.pacing,
		},
	}
}

// settings merges the pipeline flags over the config file
func (cfg *config) settings() (*fileconfig.Config, error) {
	s := &fileconfig.Config{
		Limit:       int(cfg.limit),
		Sort:        cfg.sort,
		Concurrency: int(cfg.concurrency),
		Pacing:      fileconfig.Duration(cfg.pacing),
	}

	if cfg.configPath != "" {
		file, err := fileconfig.Load(cfg.configPath)
		if err != nil {
			return nil, err
		}
		s.Merge(file)
	}

	if err := s.ValidateFor(adapter.SourceType(cfg.source)); err != nil {
		return nil, goerr.Wrap(err, "invalid pipeline settings")
	}
	return s, nil
}

// newRepository creates a new repository instance. The caller must Close it.
func (cfg *config) newRepository(ctx context.Context) (*repository.Repository, error) {
	repo, err := repository.Open(ctx, repository.Options{
		Backend:  repository.BackendType(cfg.backend),
		Path:     cfg.dbPath,
		Project:  cfg.project,
		Database: cfg.database,
		Bucket:   cfg.bucket,
		Prefix:   cfg.prefix,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newClaude creates a new Claude adapter instance
func (cfg *config) newClaude() (adapter.Claude, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, goerr.New("anthropic-api-key is required")
	}

	var opts []adapter.ClaudeOption
	if cfg.model != "" {
		opts = append(opts, adapter.WithClaudeModel(cfg.model))
	}
	return adapter.NewClaude(cfg.anthropicAPIKey, opts...)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.model != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.model))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newAnalyzer creates the enrichment service selected by --llm
func (cfg *config) newAnalyzer(ctx context.Context) (enricher.Analyzer, error) {
	switch cfg.llm {
	case "gemini", "":
		client, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return enricher.New(enricher.NewGemini(client)), nil

	case "claude":
		client, err := cfg.newClaude()
		if err != nil {
			return nil, err
		}
		return enricher.New(enricher.NewClaude(client)), nil

	default:
		return nil, goerr.New("unsupported llm", goerr.V("llm", cfg.llm))
	}
}

// app bundles what a command needs after wiring
type app struct {
	repo     *repository.Repository
	uc       *item.UseCase
	settings *fileconfig.Config
}

func (a *app) Close() error {
	return a.repo.Close()
}

// newApp wires repository, analyzer, cache, scheduler, source and pipeline into the item use case
func (cfg *config) newApp(ctx context.Context) (*app, error) {
	settings, err := cfg.settings()
	if err != nil {
		return nil, err
	}

	analyzer, err := cfg.newAnalyzer(ctx)
	if err != nil {
		return nil, err
	}

	source, err := adapter.NewSource(adapter.SourceType(cfg.source), cfg.userAgent)
	if err != nil {
		return nil, err
	}

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	var cacheOpts []cache.Option
	if cfg.timeout > 0 {
		cacheOpts = append(cacheOpts, cache.WithCallTimeout(cfg.timeout))
	}
	enrichCache := cache.New(repo, analyzer, cacheOpts...)

	var batchOpts []batch.Option
	if settings.Concurrency > 0 {
		batchOpts = append(batchOpts, batch.WithConcurrency(settings.Concurrency))
	}
	if settings.Pacing > 0 {
		batchOpts = append(batchOpts, batch.WithPacing(settings.Pacing.Duration()))
	}
	scheduler := batch.New(batchOpts...)

	pipelineOpts := []pipeline.Option{
		pipeline.WithPacing(scheduler.Pacing()),
	}
	if settings.Limit > 0 {
		pipelineOpts = append(pipelineOpts, pipeline.WithLimit(settings.Limit))
	}
	if settings.Sort != "" {
		pipelineOpts = append(pipelineOpts, pipeline.WithSort(settings.Sort))
	}
	p := pipeline.New(source, repo, enrichCache, scheduler, pipelineOpts...)

	uc := item.New(repo, analyzer,
		item.WithCache(enrichCache),
		item.WithScheduler(scheduler),
		item.WithPipeline(p),
		item.WithCallTimeout(cfg.timeout),
	)

	return &app{repo: repo, uc: uc, settings: settings}, nil
}

// newStoreApp wires only the repository, for commands that read or delete stored records
func (cfg *config) newStoreApp(ctx context.Context) (*app, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}
	return &app{repo: repo, uc: item.New(repo, nil), settings: &fileconfig.Config{}}, nil
}
