package app

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/manivault/internal/config"
)

// Logging is the root logger and the level it can be switched with at
// runtime.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// NewLogging builds the root logger from cfg. Output goes to w, or to
// stderr when w is nil.
func NewLogging(cfg config.LoggingConfig, w io.Writer) (*Logging, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	if w == nil {
		w = os.Stderr
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	logger := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level), opts...).Named("manivault")
	return &Logging{Logger: logger, Level: level}, nil
}

// Apply switches the level to cfg.Level. Format changes need a restart.
func (l *Logging) Apply(cfg config.LoggingConfig) error {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if lvl != l.Level.Level() {
		l.Logger.Info("log level changed", zap.Stringer("from", l.Level.Level()), zap.Stringer("to", lvl))
		l.Level.SetLevel(lvl)
	}
	return nil
}
