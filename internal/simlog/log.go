// Package simlog builds the process-wide structured logger. It wraps
// logrus the way github.com/stellar/go/support/log does: callers get a
// *log.Entry and attach fields, never a bare Printf.
package simlog

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/support/log"

	"github.com/erst-labs/simulate/internal/simconfig"
)

// New builds the root *log.Entry for this process, writing to stderr only
// — stdout is reserved for the single JSON response.
func New(cfg *simconfig.Config) *log.Entry {
	base := logrus.New()
	base.SetOutput(os.Stderr)

	switch cfg.LogFormat {
	case simconfig.LogFormatJSON:
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	entry := log.New()
	entry.Logger.SetOutput(base.Out)
	entry.Logger.SetFormatter(base.Formatter)
	entry.SetLevel(level)
	return entry
}
