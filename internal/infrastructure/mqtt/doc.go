// Package mqtt provides the MQTT client shared by the plant telemetry services.
//
// This package manages:
//   - Connection to the broker with startup retry and auto-reconnect
//   - Blocking and fire-and-forget publishing
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Retained presence on <status_prefix>/status/<client_id>, with a
//     Last Will so crashes are visible to other clients
//
// # Architecture
//
// The broker is the only coupling between the publisher and the dashboard.
// Neither side knows the other exists; they agree only on topic layout and
// payload format.
//
//	plantsim → MQTT Broker → plantdash
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) whenever the broker is not on localhost
//   - Credentials come from config or PLANT_MQTT_USERNAME / PLANT_MQTT_PASSWORD
//   - Payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.ConnectWithRetry(ctx, cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("battery_plant/1/process/+/sensor/+", 0,
//	    func(topic string, payload []byte) error {
//	        return agg.HandleMessage(topic, payload)
//	    })
//
//	err = client.PublishAsync("battery_plant/1/process/mixing/sensor/temperature", payload)
package mqtt
