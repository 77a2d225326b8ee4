// Package realtime pushes dashboard change events to connected admin
// clients over WebSocket. Clients subscribe to a topic (one per dashboard
// tab) and re-fetch the whole list on every change event, mirroring a
// push-based store subscription.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Heartbeat settings, in seconds.
const (
	PingInterval = 30
	PongWait     = 60
)

// Dashboard topics.
const (
	TopicApplications  = "applications"
	TopicBugs          = "bugs"
	TopicFeatures      = "features"
	TopicRatings       = "ratings"
	TopicResignations  = "resignations"
	TopicNotifications = "notifications"
)

// ValidTopic reports whether the topic names a dashboard tab.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicApplications, TopicBugs, TopicFeatures, TopicRatings, TopicResignations, TopicNotifications:
		return true
	}
	return false
}

// Publisher publishes a topic event for cross-instance fan-out.
type Publisher interface {
	PublishTopicEvent(topic, event string, payload []byte) error
}

// Subscriber subscribes to a topic channel and invokes handler for
// incoming events.
type Subscriber interface {
	SubscribeTopic(topic string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains topic -> set of connections and fans out change events.
// Events flow through Redis pub/sub so every instance delivers them once.
type Hub struct {
	topics map[string]map[string]*Client
	subs   map[string]func() // cancel Redis subscription per topic
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to a topic. The first client on a topic starts
// its Redis subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.topics[c.Topic] == nil {
		h.topics[c.Topic] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeTopic(c.Topic, func(event string, payload []byte) {
				h.Broadcast(c.Topic, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.Topic] = cancel
			} else {
				h.logger.Warn("topic subscription failed", zap.String("topic", c.Topic), zap.Error(err))
			}
		}
	}
	h.topics[c.Topic][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Unregister removes a client from a topic. The Redis subscription is
// cancelled when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.topics[c.Topic]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.topics, c.Topic)
			if cancel, ok := h.subs[c.Topic]; ok {
				cancel()
				delete(h.subs, c.Topic)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Broadcast sends an event to all local clients on a topic.
func (h *Hub) Broadcast(topic, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	// Snapshot under the read lock; Register/Unregister mutate the map.
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.topics[topic]))
	for _, c := range h.topics[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish routes a change event through Redis so all instances (including
// this one, via its subscription) deliver it exactly once.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	if h.pub == nil {
		h.Broadcast(topic, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event payload", zap.Error(err))
		return
	}
	if err := h.pub.PublishTopicEvent(topic, event, data); err != nil {
		h.logger.Warn("publish event failed", zap.String("topic", topic), zap.Error(err))
		// Degrade to local delivery so connected admins still refresh.
		h.Broadcast(topic, event, json.RawMessage(data))
	}
}
