package status

import (
	"encoding/json"
	"time"

	"github.com/finchworks/hearth-core/internal/infrastructure/mqtt"
)

// Publisher is the interface the sink needs for publishing status
// messages to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the sink.
type Logger interface {
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// MQTTSink publishes engine status text, progress updates, and trigger
// firing events to the Hearth core topics for display by panels.
//
// Every publish runs in its own goroutine: the sink is fire-and-forget
// and never blocks step execution. A dropped update is logged and
// otherwise ignored; a missed UI refresh is not a correctness failure.
type MQTTSink struct {
	mqtt   Publisher
	qos    byte
	logger Logger
}

// NewMQTTSink creates a status sink publishing at the given QoS.
func NewMQTTSink(mqtt Publisher, qos byte, logger Logger) *MQTTSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTSink{
		mqtt:   mqtt,
		qos:    qos,
		logger: logger,
	}
}

// Publish emits a human-readable status line on hearth/core/status.
func (s *MQTTSink) Publish(message string) {
	payload, err := json.Marshal(map[string]string{
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	s.send(mqtt.Topics{}.CoreStatus(), payload)
}

// PublishProgress emits a progress fraction (0.0 to 1.0) for a running
// routine on its progress topic.
func (s *MQTTSink) PublishProgress(routineID string, progress float64) {
	payload, err := json.Marshal(map[string]any{
		"routine_id": routineID,
		"progress":   progress,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	s.send(mqtt.Topics{}.RoutineProgress(routineID), payload)
}

// PublishFired emits a trigger firing event on the routine's fired
// topic.
func (s *MQTTSink) PublishFired(routineID string, triggerKind string) {
	payload, err := json.Marshal(map[string]string{
		"routine_id":   routineID,
		"trigger_kind": triggerKind,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	s.send(mqtt.Topics{}.RoutineFired(routineID), payload)
}

// send publishes asynchronously so callers never wait on the broker.
func (s *MQTTSink) send(topic string, payload []byte) {
	go func() {
		if err := s.mqtt.Publish(topic, payload, s.qos, false); err != nil {
			s.logger.Warn("status publish dropped", "topic", topic, "error", err)
		}
	}()
}
