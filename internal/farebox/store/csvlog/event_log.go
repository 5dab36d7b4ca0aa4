// Package csvlog implements the canonical on-disk stores: CSV files
// appended one record per line, readable by any historical version of
// the system. The encodings are fixed by existing logs in the field
// and must not change.
package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/transitpi/farebox/internal/farebox/store"
)

// EventLog appends canonical timestamp,type,json rows to a CSV file.
// The first append to a fresh file writes the header row.
type EventLog struct {
	mu   sync.Mutex
	path string
}

func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Append writes one record and syncs the file before returning, so a
// crash after Append leaves the log as the source of truth for the
// record (append-then-acknowledge).
func (l *EventLog) Append(_ context.Context, rec store.EventAppend) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, fresh, err := openAppend(l.path)
	if err != nil {
		return fmt.Errorf("event log open: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write([]string{"timestamp", "type", "data"}); err != nil {
			return fmt.Errorf("event log header: %w", err)
		}
	}

	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := w.Write([]string{at.Format(time.RFC3339Nano), rec.Type, string(rec.Payload)}); err != nil {
		return fmt.Errorf("event log write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("event log flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("event log sync: %w", err)
	}
	return nil
}

// Rows returns every raw row, header included — the parser detects and
// skips headers itself, which also covers hand-edited or concatenated
// log files. A missing file is an empty log.
func (l *EventLog) Rows(_ context.Context) ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("event log open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("event log read: %w", err)
	}
	return rows, nil
}

// openAppend opens the file for appending, reporting whether it was
// empty (fresh) so the caller can emit a header.
func openAppend(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	return f, info.Size() == 0, nil
}
