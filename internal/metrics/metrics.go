// Package metrics exposes the ingester's Prometheus collector on its
// own registry, with a small /metrics server.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	RecordsProcessed *prometheus.CounterVec // type label: rfid|wifi_event|other
	DecodeErrors     prometheus.Counter
	TripsCompleted   prometheus.Counter
	FareCollected    prometheus.Counter

	OnboardRFID prometheus.Gauge
	OnboardWifi prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	HandleDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farebox_records_processed_total",
			Help: "Total transport records processed, by reported type.",
		}, []string{"type"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farebox_decode_errors_total",
			Help: "Total transport lines that failed JSON decoding.",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farebox_trips_completed_total",
			Help: "Total completed trips appended to the ledger.",
		}),
		FareCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farebox_fare_collected_total",
			Help: "Running sum of fares for completed trips.",
		}),
		OnboardRFID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farebox_onboard_rfid",
			Help: "Passengers currently onboard via RFID.",
		}),
		OnboardWifi: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farebox_onboard_wifi",
			Help: "Passengers currently onboard via Wi-Fi.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farebox_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farebox_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farebox_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		HandleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "farebox_record_handle_duration_seconds",
			Help:    "Duration to log, reconcile, and mirror one record.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.RecordsProcessed, c.DecodeErrors, c.TripsCompleted, c.FareCollected,
		c.OnboardRFID, c.OnboardWifi,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.HandleDuration,
	)

	return c
}

// Ingest-facing reporting surface.

func (c *Collector) RecordProcessed(msgType string) {
	c.RecordsProcessed.WithLabelValues(msgType).Inc()
}

func (c *Collector) DecodeError() { c.DecodeErrors.Inc() }

func (c *Collector) TripCompleted(fare float64) {
	c.TripsCompleted.Inc()
	c.FareCollected.Add(fare)
}

func (c *Collector) SetOnboard(rfid, wifi int) {
	c.OnboardRFID.Set(float64(rfid))
	c.OnboardWifi.Set(float64(wifi))
}

func (c *Collector) ObserveHandle(d time.Duration) {
	c.HandleDuration.Observe(d.Seconds())
}

// Publisher-facing reporting surface.

func (c *Collector) PublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) PublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()
	logger.Printf("metrics listening on %s", addr)
	return srv
}
