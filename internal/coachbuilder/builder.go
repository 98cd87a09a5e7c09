// Package coachbuilder wires the analysis pipeline from an AppConfig.
package coachbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-coach/internal/analysis"
	corechess "github.com/park285/cheese-coach/internal/chess"
	"github.com/park285/cheese-coach/internal/chess/cloudeval"
	"github.com/park285/cheese-coach/internal/config"
	"github.com/park285/cheese-coach/internal/domain"
	"github.com/park285/cheese-coach/internal/msgcat"
	"github.com/park285/cheese-coach/internal/reportcache"
	"github.com/park285/cheese-coach/internal/store"
)

type Deps struct {
	Analyzer  *analysis.Analyzer
	Evaluator analysis.Evaluator
	Store     analysis.Store
	Cache     *reportcache.Cache
	Catalog   *msgcat.Catalog
	Budget    domain.Budget

	closers []func() error
}

// Close releases engine processes and connections in reverse creation order.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

type buildOptions struct {
	skipEvaluator bool
}

type Option func(*buildOptions)

// WithoutEvaluator builds the pipeline with no evaluator backend, for commands
// that only read stored analyses. Any evaluation fails as unavailable.
func WithoutEvaluator() Option {
	return func(o *buildOptions) { o.skipEvaluator = true }
}

var errEvaluatorDisabled = errors.New("evaluator disabled for this command")

type disabledEvaluator struct{}

func (disabledEvaluator) Evaluate(context.Context, analysis.EvaluationRequest) (domain.Evaluation, error) {
	return domain.Evaluation{}, errors.Join(analysis.ErrEvaluatorUnavailable, errEvaluatorDisabled)
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts ...Option) (_ *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	d := &Deps{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	d.Budget, err = BudgetFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	d.Catalog, err = msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var ev analysis.Evaluator = disabledEvaluator{}
	if !bo.skipEvaluator {
		if d.Evaluator, err = newEvaluator(cfg, d, logger); err != nil {
			return nil, err
		}
		ev = d.Evaluator
	}

	d.Store, err = openStore(ctx, cfg, d, logger)
	if err != nil {
		return nil, err
	}

	aopts := []analysis.Option{analysis.WithStore(d.Store), analysis.WithCatalog(d.Catalog)}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, rerr := reportcache.NewClient(cfg.RedisURL)
		if rerr != nil {
			return nil, rerr
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		rerr = rdb.Ping(pingCtx).Err()
		cancel()
		if rerr != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", rerr)
		}
		d.Cache, rerr = reportcache.New(rdb, time.Duration(cfg.ReportCacheTTLSec)*time.Second)
		if rerr != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("init report cache: %w", rerr)
		}
		d.closers = append(d.closers, d.Cache.Close)
		aopts = append(aopts, analysis.WithReportCache(d.Cache))
	}

	acfg := analysis.DefaultConfig()
	acfg.Budget = d.Budget
	if cfg.HistoryWindow > 0 {
		acfg.Weakness.Window = cfg.HistoryWindow
	}
	d.Analyzer, err = analysis.NewAnalyzer(ev, acfg, logger, aopts...)
	if err != nil {
		return nil, fmt.Errorf("init analyzer: %w", err)
	}

	evaluator := cfg.EvaluatorBackend
	if bo.skipEvaluator {
		evaluator = "disabled"
	}
	logger.Info("coach pipeline ready",
		zap.String("evaluator", evaluator),
		zap.String("budget", d.Budget.Key()),
		zap.Bool("report_cache", d.Cache != nil),
	)
	return d, nil
}

func newEvaluator(cfg *config.AppConfig, d *Deps, logger *zap.Logger) (analysis.Evaluator, error) {
	if err := cfg.ValidateEvaluator(); err != nil {
		return nil, err
	}
	switch cfg.EvaluatorBackend {
	case config.BackendCloud:
		return cloudeval.NewClient(cfg.CloudEvalURL,
			cloudeval.WithTimeout(time.Duration(cfg.CloudEvalTimeoutMS)*time.Millisecond),
			cloudeval.WithLogger(logger),
		), nil
	default:
		engine, err := corechess.NewEngine(corechess.EngineConfig{
			BinaryPath: cfg.StockfishPath,
			Args:       cfg.EngineArgs,
			PoolSize:   cfg.EnginePoolSize,
			Threads:    cfg.EngineThreads,
			HashMB:     cfg.EngineHashMB,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		d.closers = append(d.closers, engine.Close)
		return engine, nil
	}
}

func openStore(ctx context.Context, cfg *config.AppConfig, deps *Deps, logger *zap.Logger) (analysis.Store, error) {
	var s *store.SQLStore
	switch {
	case cfg.DatabaseURL != "":
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = store.NewSQLStore(db, store.Postgres)
	case cfg.SQLitePath != "":
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s = store.NewSQLStore(db, store.SQLite)
	default:
		logger.Warn("no database configured, using in-memory store")
		return store.NewMemory(), nil
	}
	deps.closers = append(deps.closers, s.Close)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// BudgetFromConfig resolves the preset and applies the ANALYSIS_* overrides.
func BudgetFromConfig(cfg *config.AppConfig) (domain.Budget, error) {
	preset, err := corechess.GetPreset(cfg.AnalysisPreset)
	if err != nil {
		return domain.Budget{}, err
	}
	b := preset.Budget()
	if cfg.AnalysisDepth > 0 {
		b.Depth = cfg.AnalysisDepth
	}
	if cfg.AnalysisMoveTimeMS > 0 {
		b.MoveTime = time.Duration(cfg.AnalysisMoveTimeMS) * time.Millisecond
	}
	if cfg.AnalysisLines > 0 {
		b.Lines = cfg.AnalysisLines
	}
	if err := b.Validate(); err != nil {
		return domain.Budget{}, fmt.Errorf("analysis budget: %w", err)
	}
	return b, nil
}
