package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// Writer persists report documents into a directory, one file per run.
type Writer struct {
	dir    string
	logger *log.Logger
}

// NewWriter creates a report writer for the given directory. The directory
// is created lazily on the first write.
func NewWriter(dir string, logger *log.Logger) (*Writer, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "new_report_writer",
			"report directory is required")
	}
	return &Writer{
		dir:    dir,
		logger: logger.WithComponent("report"),
	}, nil
}

// Write marshals the report and writes it to
// <dir>/seedaudit-<runId>.json, creating the directory if needed. Returns
// the path of the written file.
func (w *Writer) Write(rep *Report) (string, error) {
	if rep.CompletedAt.IsZero() {
		rep.CompletedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "write_report",
			"failed to marshal report").
			WithContext("run_id", rep.RunID)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "write_report",
			"failed to create report directory").
			WithContext("dir", w.dir)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.json", ServiceName, rep.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "write_report",
			"failed to write report file").
			WithContext("path", path)
	}

	w.logger.Info("report written",
		"run_id", rep.RunID,
		"path", path,
		"bytes", len(data),
	)

	return path, nil
}
