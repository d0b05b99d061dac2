// Package status carries engine output to the presentation layer.
// The MQTT sink publishes status text, execution progress, and trigger
// firing events on the hearth/core topics, asynchronously and lossy by
// design.
package status
