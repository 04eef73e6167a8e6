// Package errlog persists per-item harvest failures. Each record is
// one JSON object per line so partial batches stay greppable and a
// crashed run loses at most the line being written.
package errlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"harbor-go/internal/harbor"
	"harbor-go/internal/model"
)

// FileSink implements harbor.ErrorSink by appending NDJSON records to
// a file.
type FileSink struct {
	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
	clock  harbor.Clock
	logger harbor.Logger
}

var _ harbor.ErrorSink = (*FileSink)(nil)

func NewFileSink(path string, clock harbor.Clock, logger harbor.Logger) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create error log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	return &FileSink{
		f:      f,
		enc:    json.NewEncoder(f),
		clock:  clock,
		logger: logger,
	}, nil
}

// Record appends one failure. A sink that cannot write must not take
// the harvest down with it, so write errors are logged and swallowed.
func (s *FileSink) Record(kind, itemID string, err error) {
	rec := model.ItemError{
		ID:         uuid.New().String(),
		Kind:       kind,
		ItemID:     itemID,
		Message:    err.Error(),
		OccurredAt: s.clock.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if encErr := s.enc.Encode(rec); encErr != nil {
		s.logger.Error("failed to record item error",
			"kind", kind, "item", itemID, "error", encErr.Error())
	}
	s.logger.Warn("item failed", "kind", kind, "item", itemID, "error", err.Error())
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
