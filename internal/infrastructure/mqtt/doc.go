// Package mqtt publishes testing results to an MQTT broker.
//
// The publisher is optional; when enabled in config, detected issues and
// session summaries are published for dashboards to subscribe to. The
// server never subscribes, so this package only wraps the publishing and
// connection-lifecycle side of paho.mqtt.golang.
package mqtt
