package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/danyelajunebrown/reparations-pipeline/internal/analyzer"
	"github.com/danyelajunebrown/reparations-pipeline/internal/fetcher"
	"github.com/danyelajunebrown/reparations-pipeline/internal/promotion"
	"github.com/danyelajunebrown/reparations-pipeline/internal/session"
	"github.com/danyelajunebrown/reparations-pipeline/internal/store"
	"github.com/danyelajunebrown/reparations-pipeline/internal/tracker"
)

// pipelineEnv holds the initialized store and services shared by the
// serve/session/promote commands.
type pipelineEnv struct {
	Store    store.Store
	Sessions *session.Service
	Tracker  *tracker.Tracker
	Promoter *promotion.Promoter
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, runs migrations, and builds the
// session, tracker, and promotion services. Callers should defer
// env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cache, err := session.NewCache(st, cfg.Session.CacheSize)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fetch := fetcher.New(fetcher.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    cfg.Fetch.Timeout(),
		MaxRetries: cfg.Fetch.MaxRetries,
	})
	an := analyzer.New(fetch)

	promoter := promotion.New(st, promotion.Options{
		Thresholds: promotion.Thresholds{
			Verified: cfg.Promotion.VerifiedThreshold,
			Auto:     cfg.Promotion.AutoThreshold,
		},
		DefaultConfidence: cfg.Promotion.DefaultConfidence,
	})

	return &pipelineEnv{
		Store:    st,
		Sessions: session.NewService(st, cache, an),
		Tracker:  tracker.New(st),
		Promoter: promoter,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "pipeline.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
