package monitor

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mattermost/mattermost-plugin-geofence/server/engine"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

const (
	// RegionsTopic carries the retained region set.
	RegionsTopic = "regions"

	// TransitionsTopic carries transitions published by devices.
	TransitionsTopic = "transitions"

	// UnavailableTopic is where devices signal that their region set is gone.
	UnavailableTopic = "regions/unavailable"

	qos = 1

	// DefaultTimeout bounds every broker round trip.
	DefaultTimeout = 10 * time.Second
)

// Client is the subset of mqtt.Client used by the monitor.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// TransitionHandler receives decoded transitions.
type TransitionHandler func(geo.Transition)

// UnavailableHandler is called when devices report that the region set
// they were monitoring is gone.
type UnavailableHandler func()

// Monitor exposes the devices listening on an MQTT broker as the
// location-monitoring capability. The full region set is published retained
// so that devices connecting later receive it.
type Monitor struct {
	client  Client
	prefix  string
	log     engine.Logger
	timeout time.Duration
	now     func() time.Time
}

// New creates a monitor publishing under the topic prefix.
func New(client Client, prefix string, log engine.Logger) *Monitor {
	return &Monitor{
		client:  client,
		prefix:  prefix,
		log:     log,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
}

// Connect opens a connection to broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts = opts.SetOrderMatters(false).SetAutoReconnect(true).SetConnectTimeout(DefaultTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(DefaultTimeout) {
		return nil, fmt.Errorf("timed out connecting to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", broker, err)
	}
	return client, nil
}

// Topic returns the full name of a monitor topic under prefix.
func Topic(prefix, name string) string {
	return prefix + "/" + name
}

func (m *Monitor) topic(name string) string {
	return Topic(m.prefix, name)
}

// RegisterRegions publishes the full region set. done is called from
// another goroutine once the broker acknowledged the publish.
func (m *Monitor) RegisterRegions(regions []geo.Region, done func(error)) {
	m.publishRegions(regions, done)
}

// UnregisterAll publishes an empty region set.
func (m *Monitor) UnregisterAll(done func(error)) {
	m.publishRegions(nil, done)
}

func (m *Monitor) publishRegions(regions []geo.Region, done func(error)) {
	data, err := encodeRegions(regions, m.now())
	if err != nil {
		go done(fmt.Errorf("failed to encode regions: %w", err))
		return
	}

	token := m.client.Publish(m.topic(RegionsTopic), qos, true, data)
	go func() {
		done(m.wait(token))
	}()
}

// Subscribe forwards transitions and unavailability signals to the handlers.
func (m *Monitor) Subscribe(onTransition TransitionHandler, onUnavailable UnavailableHandler) error {
	token := m.client.Subscribe(m.topic(TransitionsTopic), qos, func(_ mqtt.Client, msg mqtt.Message) {
		t, err := DecodeTransition(msg.Payload())
		if err != nil {
			m.log.Warn("Dropping malformed transition", "topic", msg.Topic(), "error", err.Error())
			return
		}
		onTransition(t)
	})
	if err := m.wait(token); err != nil {
		return fmt.Errorf("failed to subscribe to transitions: %w", err)
	}

	token = m.client.Subscribe(m.topic(UnavailableTopic), qos, func(_ mqtt.Client, _ mqtt.Message) {
		onUnavailable()
	})
	if err := m.wait(token); err != nil {
		return fmt.Errorf("failed to subscribe to unavailable signals: %w", err)
	}

	m.log.Info("Subscribed to location monitor", "prefix", m.prefix)
	return nil
}

// Close unsubscribes from the device topics.
func (m *Monitor) Close() error {
	token := m.client.Unsubscribe(m.topic(TransitionsTopic), m.topic(UnavailableTopic))
	return m.wait(token)
}

func (m *Monitor) wait(token mqtt.Token) error {
	if !token.WaitTimeout(m.timeout) {
		return errors.New("timed out waiting for the broker")
	}
	return token.Error()
}
