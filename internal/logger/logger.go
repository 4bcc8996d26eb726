package logger

import (
	"go.uber.org/zap"
)

type Config struct {
	Development bool
}

// New builds the process logger and installs it as zap's global, so packages log
// through zap.S().
func New(cfg Config) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}
