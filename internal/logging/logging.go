// Package logging builds the structured logger shared by the node,
// orchestrator and printer binaries. It mirrors the original Python
// setup_logging() helpers (original_source/TP_01/*.py): a logs/ directory
// is created on startup and every component appends to its own log file
// while also writing to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// New creates a logrus.Logger for the named component (e.g. "node-1",
// "orchestrator", "printer"), writing structured entries to both
// logs/<component>.log and stderr.
func New(component string, level logrus.Level) (*logrus.Logger, error) {
	const dir = "logs"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, component+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(io.MultiWriter(os.Stderr, file))
	logger.WithField("component", component).Info("logging started")
	return logger, nil
}
