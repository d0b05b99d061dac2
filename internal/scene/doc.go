// Package scene bridges the routine engine to the scene service over
// MQTT. The executor translates invoke-scene steps into command
// messages on hearth/command/scene/{id}.
package scene
