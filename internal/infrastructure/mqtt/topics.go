package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT namespace.
//
// Command topics carry instructions to downstream integrations, core
// topics carry state published by the engine, and system topics carry
// controller lifecycle messages.
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixCore is the base for engine-published state.
	TopicPrefixCore = "hearth/core"

	// TopicPrefixSystem is the base for system lifecycle topics.
	TopicPrefixSystem = "hearth/system"

	// TopicPrefixPresence is the base for presence events from trackers.
	TopicPrefixPresence = "hearth/presence"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	cmd := topics.SceneCommand("evening-lights")
//	// Returns: "hearth/command/scene/evening-lights"
type Topics struct{}

// SceneCommand returns the topic for invoking a scene.
//
// Example: hearth/command/scene/evening-lights
func (Topics) SceneCommand(sceneID string) string {
	return fmt.Sprintf("%s/command/scene/%s", TopicPrefix, sceneID)
}

// RoutineProgress returns the topic for routine execution progress updates.
//
// Example: hearth/core/routine/goodnight/progress
func (Topics) RoutineProgress(routineID string) string {
	return fmt.Sprintf("%s/routine/%s/progress", TopicPrefixCore, routineID)
}

// RoutineStatus returns the topic for routine execution status transitions.
//
// Example: hearth/core/routine/goodnight/status
func (Topics) RoutineStatus(routineID string) string {
	return fmt.Sprintf("%s/routine/%s/status", TopicPrefixCore, routineID)
}

// RoutineFired returns the topic for trigger firing events.
//
// Example: hearth/core/routine/goodnight/fired
func (Topics) RoutineFired(routineID string) string {
	return fmt.Sprintf("%s/routine/%s/fired", TopicPrefixCore, routineID)
}

// CoreStatus returns the topic for engine status text, the
// human-readable one-liners shown by panels.
//
// Example: hearth/core/status
func (Topics) CoreStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixCore)
}

// SystemStatus returns the controller status topic, used for the online
// announcement, graceful shutdown message, and Last Will and Testament.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// PresenceEvent returns the topic presence trackers publish to.
//
// Example: hearth/presence/event
func (Topics) PresenceEvent() string {
	return fmt.Sprintf("%s/event", TopicPrefixPresence)
}

// AllRoutineProgress returns a pattern matching progress for every routine.
//
// Pattern: hearth/core/routine/+/progress
func (Topics) AllRoutineProgress() string {
	return fmt.Sprintf("%s/routine/+/progress", TopicPrefixCore)
}

// AllRoutineStatus returns a pattern matching status for every routine.
//
// Pattern: hearth/core/routine/+/status
func (Topics) AllRoutineStatus() string {
	return fmt.Sprintf("%s/routine/+/status", TopicPrefixCore)
}

// AllTopics returns a pattern matching all Hearth topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: hearth/#
func (Topics) AllTopics() string {
	return "hearth/#"
}
