// Package pubsub fans merge session events out to subscribers such as
// server-sent event streams.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
)

// Topics published by a merge session.
const (
	// TopicMergeStatus carries a session status snapshot after every change.
	TopicMergeStatus = "merge_status"
	// TopicGraphChanged carries a GraphChanged whenever a target graph gains
	// or loses nodes or pins.
	TopicGraphChanged = "graph_changed"
)

// ErrClosed is returned by a Publisher after Close.
var ErrClosed = errors.New("publisher is closed")

// Event is one published message. Version counts per topic from 1 and is
// used as the SSE event id.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // "status", "closed", "stale", "changed"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"`
}

// Subscription delivers the events of one topic until it is closed.
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher fans events out to subscriptions. Subscribe ends the
// subscription when ctx is done; Publish encodes data as JSON.
type Publisher interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(topic, eventType string, data any) error
	Close() error
}

var _ Publisher = (*SSEPublisher)(nil)

// GraphChanged is the payload of TopicGraphChanged.
type GraphChanged struct {
	Graph       string `json:"graph"`
	Nodes       int    `json:"nodes"`
	Fingerprint string `json:"fingerprint"`
}
