package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/transitpi/farebox/internal/farebox/types"
)

// TripLedger appends completed trips to a CSV file with the historical
// column set: id,name,entry_time,exit_time,duration_min,fare,source.
type TripLedger struct {
	mu   sync.Mutex
	path string
}

func NewTripLedger(path string) *TripLedger {
	return &TripLedger{path: path}
}

func (l *TripLedger) Append(_ context.Context, trip types.Trip) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, fresh, err := openAppend(l.path)
	if err != nil {
		return fmt.Errorf("trip ledger open: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write([]string{"id", "name", "entry_time", "exit_time", "duration_min", "fare", "source"}); err != nil {
			return fmt.Errorf("trip ledger header: %w", err)
		}
	}

	row := []string{
		trip.ID,
		trip.DisplayName,
		trip.EntryTime.Format(time.RFC3339Nano),
		trip.ExitTime.Format(time.RFC3339Nano),
		strconv.FormatFloat(trip.DurationMinutes, 'f', 2, 64),
		strconv.FormatFloat(trip.Fare, 'f', -1, 64),
		string(trip.Namespace),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("trip ledger write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("trip ledger flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("trip ledger sync: %w", err)
	}
	return nil
}

// All reads every ledgered trip in append order. Rows with unreadable
// numeric columns degrade to zero values rather than failing the read;
// the ledger is an audit surface and must tolerate old hand-written
// rows.
func (l *TripLedger) All(_ context.Context) ([]types.Trip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("trip ledger open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var trips []types.Trip
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trip ledger read: %w", err)
		}
		if len(row) < 7 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row[0]), "id") {
			continue
		}
		trips = append(trips, types.Trip{
			ID:              row[0],
			DisplayName:     row[1],
			EntryTime:       parseTripTime(row[2]),
			ExitTime:        parseTripTime(row[3]),
			DurationMinutes: parseFloat(row[4]),
			Fare:            parseFloat(row[5]),
			Namespace:       types.Namespace(strings.ToLower(strings.TrimSpace(row[6]))),
		})
	}
	return trips, nil
}

func parseTripTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
