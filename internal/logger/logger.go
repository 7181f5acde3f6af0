// Package logger configures the process-wide zap logger every pipeline
// stage logs through. A gateforge invocation initializes it once from the
// GATEFORGE_LOG_* environment, then packages take stage-scoped children
// via WithComponent.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// Config selects the level, encoding, and sink of the process logger.
type Config struct {
	Level      string `json:"level"`  // debug | info | warn | error
	Format     string `json:"format"` // json | console
	OutputPath string `json:"output_path"`
	Caller     bool   `json:"caller"`
}

// DefaultConfig is console encoding on stdout at info level.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		OutputPath: "stdout",
		Caller:     true,
	}
}

// InitLogger replaces the global logger with one built from config. JSON
// encoding is meant for CI and log shippers; console encoding for local
// runs. An unrecognized level falls back to info.
func InitLogger(config Config) error {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if config.Format == "json" {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer
	switch config.OutputPath {
	case "", "stdout":
		sink = zapcore.AddSync(os.Stdout)
	default:
		file, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.AddSync(file)
	}

	var options []zap.Option
	if config.Caller {
		options = append(options, zap.AddCaller())
	}

	Logger = zap.New(zapcore.NewCore(encoder, sink, level), options...)
	Sugar = Logger.Sugar()

	return nil
}

// InitFromEnv initializes the logger from GATEFORGE_LOG_* environment variables.
func InitFromEnv() error {
	config := DefaultConfig()

	if level := os.Getenv("GATEFORGE_LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}
	if format := os.Getenv("GATEFORGE_LOG_FORMAT"); format != "" {
		config.Format = strings.ToLower(format)
	}
	if output := os.Getenv("GATEFORGE_LOG_OUTPUT"); output != "" {
		config.OutputPath = output
	}
	if caller := os.Getenv("GATEFORGE_LOG_CALLER"); caller == "false" {
		config.Caller = false
	}

	return InitLogger(config)
}

// Sync flushes any buffered log entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// WithComponent returns a child logger scoped to one pipeline stage.
func WithComponent(component string) *zap.Logger {
	return Logger.With(zap.String("component", component))
}

// WithProposal adds proposal context to the global logger.
func WithProposal(proposalID string) *zap.Logger {
	return Logger.With(zap.String("proposal_id", proposalID))
}

// WithRun adds run context to the global logger.
func WithRun(runID string) *zap.Logger {
	return Logger.With(zap.String("run_id", runID))
}

// WithError adds error context to the global logger.
func WithError(err error) *zap.Logger {
	return Logger.With(zap.Error(err))
}

// LogDecision logs a governance decision at the boundary of a pipeline stage.
func LogDecision(stage, proposalID, decision string, reasons []string) {
	Logger.Info("decision made",
		zap.String("stage", stage),
		zap.String("proposal_id", proposalID),
		zap.String("decision", decision),
		zap.Strings("reasons", reasons),
	)
}

func init() {
	if Logger == nil {
		Logger, _ = zap.NewProduction()
		if Logger == nil {
			Logger = zap.NewNop()
		}
		Sugar = Logger.Sugar()
	}
}
