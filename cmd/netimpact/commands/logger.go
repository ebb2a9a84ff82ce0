package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"

	"github.com/dd0wney/cluso-netimpact/pkg/config"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
)

// newLogger fans records out to the console handler and, when configured,
// a JSON log file. The returned func closes the file.
func newLogger(cfg config.LoggingConfig, w io.Writer) (logging.Logger, func() error, error) {
	level := logging.ParseLevel(cfg.Level).Slog()

	handlers := make([]slog.Handler, 0, 2)
	if cfg.Format == "json" {
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	} else {
		handlers = append(handlers, tint.NewHandler(w, &tint.Options{
			Level:        level,
			AddSource:    false,
			TimeFormat:   "15:04:05",
			CustomPrefix: "netimpact",
		}))
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f.Close
	}

	return logging.NewSlogLogger(slogmulti.Fanout(handlers...)), closer, nil
}
