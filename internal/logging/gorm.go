package logging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = time.Second

// GormLogger forwards gorm's statement logging to zap.
type GormLogger struct {
	logger        *zap.Logger
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger wraps logger for use as gorm.Config.Logger. Missing records are not
// reported; the services translate them into NotFound themselves.
func NewGormLogger(logger *zap.Logger) *GormLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormLogger{
		logger:        logger.Named("gorm").WithOptions(zap.AddCallerSkip(3)),
		level:         gormLogger.Warn,
		slowThreshold: defaultSlowThreshold,
	}
}

// LogMode returns a copy of the logger at the requested level.
func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Info {
		l.logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Error {
		l.logger.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed and slow statements, and every statement at Info level.
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormLogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.Error("sql statement failed",
			zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormLogger.Warn:
		sql, rows := fc()
		l.logger.Warn("slow sql statement",
			zap.Duration("elapsed", elapsed), zap.Duration("threshold", l.slowThreshold), zap.Int64("rows", rows), zap.String("sql", sql))
	case l.level >= gormLogger.Info:
		sql, rows := fc()
		l.logger.Debug("sql statement", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
