// mqtt.go - MQTT bridge that republishes domain events to a broker

package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cima-backend/logging"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

var ErrPublishTimeout = errors.New("mqtt: publish timed out")

// Client wraps a connected paho client.
type Client struct {
	client paho.Client
}

// Connect dials the broker and keeps reconnecting in the background if
// the link drops later.
func Connect(broker, clientID string) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			logging.Info().Str("broker", broker).Msg("mqtt connected")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
		})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return &Client{client: c}, nil
}

// Publish sends payload with QoS 0. Strings and byte slices are sent as
// is; anything else is JSON encoded.
func (c *Client) Publish(topic string, payload any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}
	token := c.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// Close disconnects, allowing in-flight work 250ms to finish.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("mqtt: encode payload: %w", err)
		}
		return b, nil
	}
}
