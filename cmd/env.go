package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/fetcher"
	"github.com/sells-group/macro-cli/internal/macro/layer"
	"github.com/sells-group/macro-cli/internal/macro/metrics"
	"github.com/sells-group/macro-cli/internal/macro/series"
	"github.com/sells-group/macro-cli/internal/monitoring"
	"github.com/sells-group/macro-cli/internal/resilience"
	"github.com/sells-group/macro-cli/internal/store"
	"github.com/sells-group/macro-cli/pkg/bls"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// macroEnv holds the store and the engine built for one command.
type macroEnv struct {
	Store    store.Store
	Engine   *layer.Engine
	Recorder *monitoring.Recorder
}

// Close releases the store.
func (me *macroEnv) Close() {
	if me.Store != nil {
		_ = me.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store, and
// wires the BLS collaborators into a layer engine. Universes are loaded
// only when withUniverses is set. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, withUniverses bool) (*macroEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var universes *series.File
	if withUniverses {
		universes, err = series.LoadFile(cfg.Macro.Universe)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.BLS.UserAgent,
		Timeout:    time.Duration(cfg.BLS.TimeoutSecs) * time.Second,
		MaxRetries: cfg.BLS.MaxRetries,
		Limiters:   fetcher.BLSLimiters(cfg.BLS.RequestsPerSecond, cfg.BLS.Burst),
	})
	client := bls.NewClient(f,
		bls.WithAPIKey(cfg.BLS.APIKey),
		bls.WithBaseURL(cfg.BLS.BaseURL),
		bls.WithDownloadURL(cfg.BLS.DownloadURL),
		bls.WithBatchSize(cfg.BLS.BatchSize),
	)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "bls",
		FailureThreshold: cfg.BLS.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.BLS.ResetTimeoutSecs) * time.Second,
	})
	if cfg.BLS.APIKey == "" {
		zap.L().Debug("MACRO_BLS_API_KEY not set, using public API limits")
	}

	start, end := cfg.BLS.Years(time.Now())
	rec := monitoring.NewRecorder()
	eng, err := layer.New(layer.Deps{
		Store:     st,
		Universes: universes,
		Loader:    client,
		Checker:   bls.NewVerifier(client, cfg.BLS.RequestsPerSecond, cfg.BLS.Burst, breaker),
		Extractor: client,
		Recorder:  rec,
	}, layer.Options{
		Concurrency:   cfg.Macro.Concurrency,
		StartYear:     start,
		EndYear:       end,
		MaxCandidates: cfg.Macro.MaxCandidates,
		Metrics: metrics.Options{
			MinPeriods:  cfg.Macro.MinPeriods,
			Window:      cfg.Macro.CorrelationWindow,
			Series:      cfg.Macro.CorrelationSeries,
			Concurrency: cfg.Macro.Concurrency,
		},
		MetricsTextfile: cfg.Macro.MetricsTextfile,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &macroEnv{Store: st, Engine: eng, Recorder: rec}, nil
}
