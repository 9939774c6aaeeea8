package sensors

import (
	"context"
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/suryavirkapur/DrivinData/internal/monitoring"
)

// MQTTConfig configures the accelerometer producer.
type MQTTConfig struct {
	// Broker is the MQTT broker URL, e.g. "tcp://localhost:1883".
	Broker string
	// Topic carries accelerometer payloads as JSON {"x":..,"y":..,"z":..}.
	Topic string
	// ClientID identifies this subscriber to the broker.
	ClientID string
}

// MQTTMotionProducer subscribes to an accelerometer topic and republishes
// each reading as a MotionSample. The upstream sampler runs at its own fixed
// cadence; this producer adds no pacing of its own. A broker outage means
// the producer yields no events, not an error.
type MQTTMotionProducer struct {
	bus    *Bus[MotionSample]
	config MQTTConfig
}

// NewMQTTMotionProducer creates a motion producer publishing onto bus.
func NewMQTTMotionProducer(bus *Bus[MotionSample], config MQTTConfig) *MQTTMotionProducer {
	if config.ClientID == "" {
		config.ClientID = "drivindata-motion"
	}
	return &MQTTMotionProducer{bus: bus, config: config}
}

// Monitor connects to the broker and forwards readings until the context is
// cancelled.
func (p *MQTTMotionProducer) Monitor(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	token := client.Subscribe(p.config.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		p.handlePayload(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	<-ctx.Done()
	return ctx.Err()
}

func (p *MQTTMotionProducer) handlePayload(payload []byte) {
	var sample MotionSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		monitoring.Logf("skipping malformed accelerometer payload: %v", err)
		return
	}
	p.bus.Publish(sample)
}
