// Package mqtt provides MQTT client connectivity for SmartThings NG.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// SmartThings NG publishes entity discovery configs, states, and events
// to MQTT following the Home Assistant discovery layout, and accepts
// entity commands on {base}/{device}/{entity}/set topics. The broker
// decouples the daemon from whatever consumes the entities (typically
// Home Assistant, but any MQTT client works).
//
//	SmartThings Cloud ↔ SmartThings NG ↔ MQTT Broker ↔ Home Assistant
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all entity command topics
//	err = client.Subscribe(client.Topics().AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish entity state
//	topic := client.Topics().State("device-abc", "switch")
//	client.PublishRetained(topic, []byte(`{"state":"on"}`))
package mqtt
