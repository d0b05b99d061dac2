package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher is the interface the executor needs for publishing scene
// commands to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the executor.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Executor invokes scenes by publishing command messages to the scene
// command topic, where the scene service applies the stored accessory
// states.
//
// A successful publish is a successful invocation: command delivery is
// the broker's responsibility, and retry policy, if any, belongs to the
// scene service rather than the routine engine.
type Executor struct {
	mqtt   Publisher
	qos    byte
	logger Logger
}

// NewExecutor creates a scene executor publishing at the given QoS.
func NewExecutor(mqtt Publisher, qos byte, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{
		mqtt:   mqtt,
		qos:    qos,
		logger: logger,
	}
}

// command is the payload published on the scene command topic.
type command struct {
	ID          string `json:"id"`
	SceneID     string `json:"scene_id"`
	Source      string `json:"source"`
	RequestedAt string `json:"requested_at"`
}

// Invoke publishes an invocation command for the scene.
//
// Safe for the caller to retry: each invocation carries a fresh command
// ID, and applying a scene's states twice converges to the same result.
func (e *Executor) Invoke(ctx context.Context, sceneID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scene invocation: %w", err)
	}
	if sceneID == "" {
		return fmt.Errorf("scene invocation: scene id cannot be empty")
	}

	cmd := command{
		ID:          uuid.New().String(),
		SceneID:     sceneID,
		Source:      "routine",
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshalling scene command: %w", err)
	}

	topic := "hearth/command/scene/" + sceneID
	if err := e.mqtt.Publish(topic, payload, e.qos, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}

	e.logger.Debug("scene command published",
		"scene_id", sceneID,
		"command_id", cmd.ID,
		"topic", topic,
	)

	return nil
}
