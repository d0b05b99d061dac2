package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/finchworks/hearth-core/internal/infrastructure/mqtt"
)

// PresenceKind identifies the direction of a presence transition.
type PresenceKind string

const (
	PresenceArrived PresenceKind = "arrived"
	PresenceLeft    PresenceKind = "left"
)

// PresenceEvent is one arrival or departure reported by a tracker.
type PresenceEvent struct {
	Kind     PresenceKind
	PersonID string
	At       time.Time
}

// PresenceSource delivers presence events to the scheduler. The channel
// is drained once per tick; implementations must never block on a slow
// consumer.
type PresenceSource interface {
	Events() <-chan PresenceEvent
}

// Subscriber is the interface the presence source needs from the MQTT
// client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// presenceBuffer is the event queue depth. Presence transitions are
// rare; if the buffer ever fills the oldest behaviour is to drop new
// events, which at worst costs one arrival/departure firing.
const presenceBuffer = 64

// presencePayload is the wire format trackers publish on the presence
// topic.
type presencePayload struct {
	Event     string `json:"event"` // arrived or left
	PersonID  string `json:"person_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MQTTPresenceSource receives presence events from an MQTT topic and
// buffers them for the scheduler. Events are lossy by design: a missed
// event degrades to a missed firing, never to a blocked handler.
type MQTTPresenceSource struct {
	events chan PresenceEvent
	logger Logger
}

// NewMQTTPresenceSource subscribes to the presence topic and returns a
// source the scheduler can drain.
func NewMQTTPresenceSource(sub Subscriber, topic string, qos byte, logger Logger) (*MQTTPresenceSource, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &MQTTPresenceSource{
		events: make(chan PresenceEvent, presenceBuffer),
		logger: logger,
	}

	if err := sub.Subscribe(topic, qos, s.handleMessage); err != nil {
		return nil, fmt.Errorf("subscribing to presence topic %q: %w", topic, err)
	}

	return s, nil
}

// Events returns the buffered event channel.
func (s *MQTTPresenceSource) Events() <-chan PresenceEvent {
	return s.events
}

// handleMessage parses a presence payload and queues the event.
func (s *MQTTPresenceSource) handleMessage(topic string, payload []byte) error {
	var msg presencePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing presence payload: %w", err)
	}

	var kind PresenceKind
	switch msg.Event {
	case string(PresenceArrived):
		kind = PresenceArrived
	case string(PresenceLeft):
		kind = PresenceLeft
	default:
		return fmt.Errorf("unknown presence event %q", msg.Event)
	}

	at := time.Now().UTC()
	if msg.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			at = parsed
		}
	}

	select {
	case s.events <- PresenceEvent{Kind: kind, PersonID: msg.PersonID, At: at}:
	default:
		s.logger.Warn("presence event buffer full, dropping event",
			"event", msg.Event,
			"person_id", msg.PersonID,
		)
	}

	return nil
}
