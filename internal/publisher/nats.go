// Package publisher pushes live state to NATS subscribers: a snapshot
// after every processed record and each completed trip. Subscribers are
// display surfaces only — the durable CSV logs remain the source of
// truth.
package publisher

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/transitpi/farebox/internal/farebox/types"
)

const (
	SubjectSnapshot = "farebox.snapshot"
	SubjectTrip     = "farebox.trip"
)

// Metrics is the small surface the publisher reports into; a nil
// Metrics disables reporting.
type Metrics interface {
	PublishedInc()
	PublishErrInc()
	SetConnected(connected bool)
}

type NATSPublisher struct {
	nc      *nats.Conn
	metrics Metrics
}

func NewNATSPublisher(url string, m Metrics, logger *log.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("farebox-publisher"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			logger.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(true)
			}
			logger.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			logger.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) PublishSnapshot(snap types.Snapshot) error {
	return p.publish(SubjectSnapshot, snap)
}

type tripMessage struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Source      string  `json:"source"`
	EntryTime   string  `json:"entry_time"`
	ExitTime    string  `json:"exit_time"`
	DurationMin float64 `json:"duration_min"`
	Fare        float64 `json:"fare"`
}

func (p *NATSPublisher) PublishTrip(trip types.Trip) error {
	return p.publish(SubjectTrip, tripMessage{
		ID:          trip.ID,
		Name:        trip.DisplayName,
		Source:      string(trip.Namespace),
		EntryTime:   trip.EntryTime.Format(time.RFC3339Nano),
		ExitTime:    trip.ExitTime.Format(time.RFC3339Nano),
		DurationMin: trip.DurationMinutes,
		Fare:        trip.Fare,
	})
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.PublishErrInc()
		} else {
			p.metrics.PublishedInc()
		}
	}
	return err
}
