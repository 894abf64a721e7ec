package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/merge-assist/pkg/logging"
)

// subscriberBuffer is the capacity of each subscription channel. A slow SSE
// client loses events rather than stalling a merge operation.
const subscriberBuffer = 64

// TopicConfig configures replay for late subscribers of a topic.
type TopicConfig struct {
	BufferSize int  // events kept for replay, 0 disables replay
	ReplayAll  bool // replay the whole buffer instead of only the latest event
}

type topicState struct {
	config  TopicConfig
	version int
	history []Event
	subs    map[*sseSubscription]struct{}
}

// replay returns the events a new subscriber should see first.
func (t *topicState) replay() []Event {
	if len(t.history) == 0 || t.config.ReplayAll {
		return t.history
	}
	return t.history[len(t.history)-1:]
}

func (t *topicState) remember(e Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.history = append(t.history, e)
	if over := len(t.history) - t.config.BufferSize; over > 0 {
		t.history = append(t.history[:0:0], t.history[over:]...)
	}
}

// SSEPublisher is an in-memory Publisher whose events are meant to be written
// to server-sent event streams with WriteSSE.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a publisher with no topic configuration.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

func (p *SSEPublisher) topicLocked(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets the replay configuration of a topic. Events already
// buffered are trimmed to the new size on the next publish.
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicLocked(topic).config = config
}

// DefaultTopics configures the merge topics: late subscribers see the latest
// status, and the last few graph changes.
func (p *SSEPublisher) DefaultTopics() {
	p.ConfigureTopic(TopicMergeStatus, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicGraphChanged, TopicConfig{BufferSize: 16, ReplayAll: true})
}

// Subscribe registers a subscriber and queues the topic's replay for it. The
// subscription ends when ctx is done or Close is called.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberBuffer),
		done:      make(chan struct{}),
		publisher: p,
	}
	t := p.topicLocked(topic)
	t.subs[sub] = struct{}{}

	// Replay under the lock so nothing published meanwhile overtakes it.
	replayed := 0
	for _, e := range t.replay() {
		if !sub.offer(e) {
			break
		}
		replayed++
	}
	p.mu.Unlock()

	if replayed > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "events", replayed)
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Publish encodes data as JSON and delivers it to every subscriber of topic.
// Subscribers with a full channel miss the event.
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	t := p.topicLocked(topic)
	t.version++
	event := Event{Topic: topic, Type: eventType, Data: payload, Version: t.version}
	t.remember(event)

	for sub := range t.subs {
		if !sub.offer(event) {
			logging.Warn("subscriber is lagging, dropping event", "topic", topic, "version", event.Version)
		}
	}
	return nil
}

// Close ends every subscription; their event channels are closed. Closing
// twice is a no-op.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = nil
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	done      chan struct{}
	once      sync.Once
	publisher *SSEPublisher
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// offer hands e to the subscriber without blocking. Callers hold the
// publisher lock.
func (s *sseSubscription) offer(e Event) bool {
	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

func (s *sseSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.publisher.unsubscribe(s)
	})
	return nil
}

// WriteSSE writes event as one server-sent event frame. The data line holds
// the whole event as JSON so clients see topic and version too.
func WriteSSE(w io.Writer, event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event.Type, event.Version, frame)
	return err
}
