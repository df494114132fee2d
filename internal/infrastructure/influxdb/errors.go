package influxdb

import "errors"

// Sentinel errors for InfluxDB operations. Check with errors.Is.
var (
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
	ErrNotConnected     = errors.New("influxdb: client not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
