package broadcast

import (
	"context"
	"time"

	"codeberg.org/mutker/driveassist/internal/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMillis  = 250
)

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// MQTT publishes the advisory payload as a retained message, so a client
// subscribing late still gets the latest one.
type MQTT struct {
	client mqtt.Client
	topic  string
}

func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)

	if err := awaitConnect(client.Connect(), mqttConnectTimeout, cfg.Broker, client.Disconnect); err != nil {
		return nil, err
	}

	return &MQTT{client: client, topic: cfg.Topic}, nil
}

// awaitConnect waits for the connect token. On failure the client is
// disconnected so it does not keep retrying in the background.
func awaitConnect(token mqtt.Token, timeout time.Duration, broker string, disconnect func(quiesce uint)) error {
	if !token.WaitTimeout(timeout) {
		disconnect(mqttQuiesceMillis)
		return errors.New().WithMessage(ErrConnectFailed, "timed out connecting to MQTT broker "+broker)
	}
	if err := token.Error(); err != nil {
		disconnect(mqttQuiesceMillis)
		return errors.New().WithData(ErrConnectFailed, struct {
			Sink   string
			Broker string
			Error  string
		}{
			Sink:   "mqtt",
			Broker: broker,
			Error:  err.Error(),
		})
	}

	return nil
}

func (*MQTT) Name() string {
	return "mqtt"
}

func (m *MQTT) Send(ctx context.Context, ev Event) error {
	payload, err := ev.Payload.Encode()
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic, 0, true, payload)

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return errors.New().WithMessage(ErrSendFailed, "timed out publishing to "+m.topic)
	}

	return token.Error()
}

func (m *MQTT) Close() error {
	m.client.Disconnect(mqttQuiesceMillis)

	return nil
}
