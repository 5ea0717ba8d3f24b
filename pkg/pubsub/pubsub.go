// Package pubsub fans visualizer events out to HTTP subscribers.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the visualizer host
const (
	TopicLayout     = "layout"     // frames with node positions
	TopicNavigation = "navigation" // clicks on navigable nodes
	TopicStatus     = "status"     // lifecycle and feed health
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // e.g. "frame", "navigate", "running", "feed_error"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic counter for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Status is the payload of status topic events
type Status struct {
	Instance string `json:"instance"`
	State    string `json:"state"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Navigation is the payload of navigation topic events
type Navigation struct {
	Instance string `json:"instance"`
	NodeID   string `json:"nodeId"`
	Kind     string `json:"kind"`
}
