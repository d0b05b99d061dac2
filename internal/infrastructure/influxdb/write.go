package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordExecution writes one point per routine execution to the
// routine_executions measurement.
//
// Tags carry the routine identity, final status, and trigger type for
// filtering; fields carry duration and step counts. The write is
// non-blocking; data is batched and sent asynchronously.
func (c *Client) RecordExecution(routineID, status, triggerType string, duration time.Duration, stepsTotal, stepsCompleted int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"routine_executions",
		map[string]string{
			"routine_id":   routineID,
			"status":       status,
			"trigger_type": triggerType,
		},
		map[string]interface{}{
			"duration_ms":     duration.Milliseconds(),
			"steps_total":     stepsTotal,
			"steps_completed": stepsCompleted,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordTriggerFired writes one point per trigger firing to the
// routine_triggers measurement, whether or not the execution that
// followed succeeded.
func (c *Client) RecordTriggerFired(routineID, triggerType string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"routine_triggers",
		map[string]string{
			"routine_id":   routineID,
			"trigger_type": triggerType,
		},
		map[string]interface{}{
			"fired": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
