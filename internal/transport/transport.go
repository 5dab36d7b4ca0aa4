// Package transport delivers raw newline-delimited JSON lines to the
// ingester. Every source funnels into a single channel: that channel is
// the one ordering point the reconciler's per-identifier rules depend
// on, so concurrent sources never reach it unserialized.
package transport

import (
	"bufio"
	"context"
	"io"
)

// LineSource produces raw lines in arrival order. The returned channel
// is closed when the source ends or ctx is cancelled.
type LineSource interface {
	Lines(ctx context.Context) (<-chan []byte, error)
}

// ReaderSource reads lines from an io.Reader — the serial device file
// in the original deployment, or stdin/a fixture file elsewhere.
type ReaderSource struct {
	r io.Reader
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

func (s *ReaderSource) Lines(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(s.r)
		// Transport lines are small JSON objects; 64 KiB headroom
		// covers any malformed burst without unbounded growth.
		scanner.Buffer(make([]byte, 0, 4096), 64*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case ch <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
