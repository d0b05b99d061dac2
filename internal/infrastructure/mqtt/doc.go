// Package mqtt provides MQTT connectivity for Hearth Core.
//
// This package wraps paho.mqtt.golang with:
//   - Connection management with auto-reconnect and exponential backoff
//   - Last Will and Testament on hearth/system/status for crash detection
//   - Subscription tracking and restoration after reconnect
//   - Panic recovery around message handlers
//   - Topic builders for the Hearth namespace
//
// The engine publishes routine progress and firing events through this
// client, invokes scenes on command topics, and receives presence events
// from trackers.
package mqtt
