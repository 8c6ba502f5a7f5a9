package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/loggo"
	"github.com/pkg/errors"

	"bb-battery-state/config"
	"bb-battery-state/params"
	"bb-battery-state/publishers/common"
)

var log = loggo.GetLogger("bbbs.mqtt")

const publishTimeout = 5 * time.Second

// NewPublisher connects to the configured broker. Records are published
// retained with QoS 1, so a new subscriber always gets the latest state.
func NewPublisher(cfg config.MQTT) (common.Publisher, error) {
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, errors.Wrap(err, "fetching client options")
	}
	p := &Publisher{
		broker: cfg.Broker,
		topic:  cfg.Topic,
	}
	opts.SetAutoReconnect(true)
	opts.OnConnect = p.mqttOnConnect
	opts.OnConnectionLost = p.mqttConnectionLostHandler

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connecting to %s", cfg.Broker)
	}
	p.client = client
	return p, nil
}

type Publisher struct {
	client mqtt.Client
	broker string
	topic  string
}

func (p *Publisher) mqttOnConnect(client mqtt.Client) {
	log.Infof("Connected to %s", p.broker)
}

func (p *Publisher) mqttConnectionLostHandler(client mqtt.Client, err error) {
	log.Warningf("Connection to %s has been lost: %q", p.broker, err)
}

func (p *Publisher) Publish(state params.BatteryState) error {
	payload, err := EncodeState(state)
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to %s", p.broker)
	}
	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s timed out after %s", p.topic, publishTimeout)
	}
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "publishing to %s", p.topic)
	}
	log.Tracef("published %d bytes to %s", len(payload), p.topic)
	return nil
}

func (p *Publisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// EncodeState returns the JSON payload published for state.
func EncodeState(state params.BatteryState) ([]byte, error) {
	return json.Marshal(state)
}
