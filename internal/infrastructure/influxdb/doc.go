// Package influxdb provides execution telemetry storage for Hearth Core.
//
// Routine executions and trigger firings are written as time-series
// points so operators can chart reliability and timing over weeks of
// history without bloating the SQLite store.
//
// Writes are batched and non-blocking: the engine never waits on
// InfluxDB, and a down server only costs the buffered points. The
// integration is optional and controlled by the influxdb.enabled
// config flag.
package influxdb
