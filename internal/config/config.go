package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	BackendUCI   = "uci"
	BackendCloud = "cloud"
)

type AppConfig struct {
	EvaluatorBackend string

	StockfishPath  string
	EngineArgs     []string
	EnginePoolSize int
	EngineThreads  int
	EngineHashMB   int

	CloudEvalURL       string
	CloudEvalTimeoutMS int

	AnalysisPreset string
	// Zero overrides keep the preset value.
	AnalysisDepth      int
	AnalysisMoveTimeMS int
	AnalysisLines      int
	HistoryWindow      int

	RedisURL          string
	ReportCacheTTLSec int

	DatabaseURL string
	SQLitePath  string

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EvaluatorBackend:   BackendUCI,
		EngineThreads:      1,
		EngineHashMB:       128,
		CloudEvalURL:       "https://lichess.org",
		CloudEvalTimeoutMS: 5000,
		AnalysisPreset:     "standard",
		HistoryWindow:      200,
		ReportCacheTTLSec:  86400,
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EVALUATOR_BACKEND"))); v != "" {
		cfg.EvaluatorBackend = v
	}

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	cfg.EngineArgs = strings.Fields(os.Getenv("ENGINE_ARGS"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnginePoolSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("CLOUD_EVAL_URL")); v != "" {
		cfg.CloudEvalURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CLOUD_EVAL_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CloudEvalTimeoutMS = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("ANALYSIS_PRESET")); v != "" {
		cfg.AnalysisPreset = v
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisMoveTimeMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_LINES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 5 {
			return nil, fmt.Errorf("ANALYSIS_LINES must be 1-5, got %q", v)
		}
		cfg.AnalysisLines = n
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_WINDOW")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryWindow = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReportCacheTTLSec = n
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.SQLitePath = strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	switch cfg.EvaluatorBackend {
	case BackendUCI, BackendCloud:
	default:
		return nil, fmt.Errorf("unknown EVALUATOR_BACKEND %q", cfg.EvaluatorBackend)
	}

	return cfg, nil
}

// ValidateEvaluator checks the settings the selected backend needs. Commands
// that never evaluate a position skip it.
func (c *AppConfig) ValidateEvaluator() error {
	switch c.EvaluatorBackend {
	case BackendUCI:
		if c.StockfishPath == "" {
			return errors.New("STOCKFISH_PATH is required")
		}
	case BackendCloud:
		if c.CloudEvalURL == "" {
			return errors.New("CLOUD_EVAL_URL is required")
		}
	default:
		return fmt.Errorf("unknown EVALUATOR_BACKEND %q", c.EvaluatorBackend)
	}
	return nil
}
