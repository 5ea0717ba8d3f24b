package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ritzau/forcegraph/pkg/logging"
)

// maxErrorBody bounds how much of an error response ends up in the log
const maxErrorBody = 512

// HTTPSnapshot fetches a snapshot document over HTTP.
// With a positive Interval it keeps polling; failures are reported and the
// next poll tries again.
type HTTPSnapshot struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
}

// Run fetches once, then every Interval until ctx ends
func (h HTTPSnapshot) Run(ctx context.Context, sink Sink) error {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	for {
		if err := h.fetch(ctx, client, sink); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Warn("snapshot fetch failed", "url", h.URL, "error", err)
			sink.Fail(err)
			if h.Interval <= 0 {
				return err
			}
		}

		if h.Interval <= 0 {
			return nil
		}

		timer := time.NewTimer(h.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (h HTTPSnapshot) fetch(ctx context.Context, client *http.Client, sink Sink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", h.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("fetching %s: status %d: %s", h.URL, resp.StatusCode, body)
	}

	snap, err := DecodeSnapshot(resp.Body)
	if err != nil {
		return err
	}

	logging.Debug("fetched snapshot", "url", h.URL, "nodes", len(snap.Nodes))
	sink.Submit(snap)
	return nil
}
