// Package influxdb records analysis and skill metrics in InfluxDB v2.
//
// Metrics are optional; when disabled in config, Connect returns
// ErrDisabled and callers simply skip wiring the client. Writes are
// batched and asynchronous so a slow or absent InfluxDB never stalls the
// request path.
package influxdb
