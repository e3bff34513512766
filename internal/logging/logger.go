package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config contains logging configuration
type Config struct {
	// Output settings
	OutputPath string `yaml:"output_path"`

	// Log level: debug, info, warn, error
	Level string `yaml:"level"`

	// Format settings
	Encoding    string `yaml:"encoding"` // json or console
	Development bool   `yaml:"development"`

	// Performance settings
	DisableCaller     bool `yaml:"disable_caller"`
	DisableStacktrace bool `yaml:"disable_stacktrace"`
}

// DefaultConfig returns sensible logging defaults
func DefaultConfig() *Config {
	return &Config{
		OutputPath:        "stderr",
		Level:             "info",
		Encoding:          "console",
		DisableStacktrace: true,
	}
}

// Factory provides centralized logger creation
type Factory struct {
	config     *Config
	rootLogger *zap.Logger
	loggers    map[string]*zap.Logger
	loggersMu  sync.RWMutex
}

// NewFactory creates a new logger factory
func NewFactory(config *Config) (*Factory, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       config.Development,
		DisableCaller:     config.DisableCaller,
		DisableStacktrace: config.DisableStacktrace,
		Encoding:          config.Encoding,
		EncoderConfig:     buildEncoderConfig(config),
		OutputPaths:       []string{config.OutputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}

	if config.OutputPath != "stderr" && config.OutputPath != "stdout" {
		logDir := filepath.Dir(config.OutputPath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	rootLogger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	factory := &Factory{
		config:     config,
		rootLogger: rootLogger,
		loggers:    make(map[string]*zap.Logger),
	}

	zap.ReplaceGlobals(rootLogger)

	return factory, nil
}

// Root returns the root logger
func (f *Factory) Root() *zap.Logger {
	return f.rootLogger
}

// GetLogger returns a named logger for the specified module
func (f *Factory) GetLogger(module string) *zap.Logger {
	f.loggersMu.RLock()
	if logger, exists := f.loggers[module]; exists {
		f.loggersMu.RUnlock()
		return logger
	}
	f.loggersMu.RUnlock()

	f.loggersMu.Lock()
	defer f.loggersMu.Unlock()

	if logger, exists := f.loggers[module]; exists {
		return logger
	}

	logger := f.rootLogger.Named(module)
	f.loggers[module] = logger
	return logger
}

// Sync flushes any buffered log entries
func (f *Factory) Sync() error {
	return f.rootLogger.Sync()
}

func buildEncoderConfig(config *Config) zapcore.EncoderConfig {
	if config.Development {
		return zap.NewDevelopmentEncoderConfig()
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if config.Encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return encoderConfig
}
