// Package logging builds the zap logger shared by the CLI and the MCP server.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// New creates a logger from cfg. Console output goes to stderr so stdio
// transports keep stdout for protocol traffic.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	case "json":
		zcfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", cfg.Format)
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
