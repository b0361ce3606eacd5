package db

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

type gormLogger struct {
	level logger.LogLevel
	log   *logrus.Entry
}

// NewLogger routes gorm logging through logrus. Queries are only traced at the
// trace log level.
func NewLogger(logLevel string) logger.Interface {
	level := logger.Warn
	switch logLevel {
	case "trace":
		level = logger.Info
	case "error":
		level = logger.Error
	}
	return &gormLogger{
		level: level,
		log:   logrus.WithField("component", "gorm"),
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.Errorf(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Errorf("%s: %v", sql, err)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Warnf("slow query: %s", sql)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Trace(sql)
	}
}
