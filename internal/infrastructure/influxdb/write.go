package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAttributeEvent records a numeric device attribute change.
//
// This is the primary method for recording device telemetry pushed from
// the SmartThings cloud. The write is non-blocking; data is batched and
// sent asynchronously. Non-numeric attribute values are not recorded here;
// callers filter before writing.
//
// Parameters:
//   - deviceID: SmartThings device identifier
//   - component: Component the event originated from (usually "main")
//   - capability: Capability that changed (e.g., "audioVolume")
//   - attribute: Attribute that changed (e.g., "volume")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteAttributeEvent("device-abc", "main", "battery", "battery", 87)
func (c *Client) WriteAttributeEvent(deviceID, component, capability, attribute string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"attribute_events",
		map[string]string{
			"device_id":  deviceID,
			"component":  component,
			"capability": capability,
			"attribute":  attribute,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHealthCheck records the result of a device health check.
//
// Used for tracking connectivity and response times over time.
//
// Parameters:
//   - deviceID: Device identifier
//   - online: Whether the device was reported ONLINE by the cloud
//   - responseTime: How long the health query took
func (c *Client) WriteHealthCheck(deviceID string, online bool, responseTime time.Duration) {
	if !c.IsConnected() {
		return
	}

	onlineValue := 0
	if online {
		onlineValue = 1
	}

	point := write.NewPoint(
		"health_checks",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"online":           onlineValue,
			"response_time_ms": float64(responseTime.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("event_batches",
//	    map[string]string{"installed_app_id": "iapp-01"},
//	    map[string]interface{}{"events": 12, "devices_touched": 4})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
