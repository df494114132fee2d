package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAnalysis records one analysis run: how long inference took and how
// many issues came back, tagged by model and app package.
func (c *Client) WriteAnalysis(model, packageName string, inferenceMS int64, utterances, issuesFound int) {
	if !c.IsConnected() {
		return
	}
	if packageName == "" {
		packageName = "unknown"
	}

	point := write.NewPoint(
		"analysis",
		map[string]string{
			"model":   model,
			"package": packageName,
		},
		map[string]interface{}{
			"inference_ms": inferenceMS,
			"utterances":   utterances,
			"issues_found": issuesFound,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteSkill records one skill execution outcome and its round-trip time.
func (c *Client) WriteSkill(skillName string, success bool, elapsedMS int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"skill",
		map[string]string{
			"skill": skillName,
		},
		map[string]interface{}{
			"success":    success,
			"elapsed_ms": elapsedMS,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement with full control over tags and
// fields. Tags should stay low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
