// Package main provides the API router setup.
package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fixfirst/repair-advisor/cmd/repair-advisor-api/handlers"
	"github.com/fixfirst/repair-advisor/cmd/repair-advisor-api/middleware"
	"github.com/fixfirst/repair-advisor/internal/cache"
	"github.com/fixfirst/repair-advisor/internal/config"
	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/pipeline"
	"github.com/fixfirst/repair-advisor/internal/recommend"
	"github.com/fixfirst/repair-advisor/internal/retrieval"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// NewRouter wires the pipeline stages and mounts all routes.
func NewRouter(logger *observability.Logger, cfg *config.Config, db *sql.DB) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	cacheClient, err := newCacheClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create cache client: %w", err)
	}

	procedures := storage.NewProcedureRepository(db)
	interactions := storage.NewInteractionRepository(db)

	matcher := device.NewMatcher(device.MatcherOptions{
		Cache:              cacheClient,
		CacheTTL:           cfg.Cache.TTL,
		FuzzyThreshold:     cfg.Matcher.FuzzyThreshold,
		AgreementThreshold: cfg.Matcher.AgreementThreshold,
		Logger:             logger,
	})

	p := pipeline.New(pipeline.Options{
		Matcher: matcher,
		Searcher: retrieval.NewSearcher(procedures, retrieval.Limits{
			Exact:   cfg.Retrieval.ExactLimit,
			Fuzzy:   cfg.Retrieval.FuzzyLimit,
			Generic: cfg.Retrieval.GenericLimit,
		}, logger),
		Ranker: retrieval.NewRanker(retrieval.Weights{
			Device:  cfg.Ranking.DeviceWeight,
			Problem: cfg.Ranking.ProblemWeight,
			Quality: cfg.Ranking.QualityWeight,
			Search:  cfg.Ranking.SearchWeight,
		}),
		Enricher:      retrieval.NewEnricher(procedures, cfg.Retrieval.EnrichTopN, logger),
		Diagnostician: retrieval.NewDiagnostician(procedures, retrieval.DefaultDiagnosticLimit, logger),
		Composer: recommend.NewComposer(recommend.ComposerOptions{
			MaxRecommendations: cfg.Recommend.MaxRecommendations,
			DisableJitter:      cfg.Recommend.DisableJitter,
			Logger:             logger,
		}),
		Analytics: interactions,
		Logger:    logger,
	})

	analyzeHandler := handlers.NewAnalyzeHandler(logger, p)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"repair-advisor"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", analyzeHandler.Analyze)
		r.Get("/stats", analyzeHandler.Stats)
	})

	return r, nil
}

func newCacheClient(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		return cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
}
