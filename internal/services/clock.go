package services

import (
	"time"

	"go.uber.org/zap"

	applog "sawtooth/internal/log"
	"sawtooth/internal/repos"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return repos.Stamp(time.Now())
	}
	return repos.Stamp(c())
}

func logger(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return applog.Logger()
}
