package main

import (
	"net/url"
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-geofence/server/scheduler"
)

const (
	defaultTopicPrefix    = "geofence"
	defaultDatabasePath   = "geofence/messages.db"
	defaultTimeZone       = "UTC"
	defaultReplanSchedule = "@every 1h"
	defaultBotUsername    = "geofence"
)

var brokerSchemes = map[string]bool{
	"tcp":   true,
	"ssl":   true,
	"tls":   true,
	"mqtt":  true,
	"mqtts": true,
	"ws":    true,
	"wss":   true,
}

// configuration captures the plugin's external configuration as exposed in the Mattermost server
// configuration, as well as values computed from the configuration. Any public fields will be
// deserialized from the Mattermost server configuration in OnConfigurationChange.
//
// As plugins are inherently concurrent (hooks being called asynchronously), and the plugin
// configuration can change at any time, access to the configuration must be synchronized. The
// strategy used in this plugin is to guard a pointer to the configuration, and clone the entire
// struct whenever it changes.
type configuration struct {
	// ReportingURL is the base URL of the backend geo events are reported to.
	ReportingURL    string `json:"ReportingURL"`
	ReportingAPIKey string `json:"ReportingAPIKey"`

	// MQTTBroker is the broker devices monitor regions through, e.g. tcp://broker:1883.
	MQTTBroker      string `json:"MQTTBroker"`
	MQTTTopicPrefix string `json:"MQTTTopicPrefix"`

	DatabasePath string `json:"DatabasePath"`

	// ChannelID receives a post for every surfaced event. Optional.
	ChannelID string `json:"ChannelID"`

	// TimeZone is the IANA zone delivery windows are evaluated in.
	TimeZone string `json:"TimeZone"`

	// ReplanSchedule is the cron spec of the periodic safety re-plan.
	ReplanSchedule string `json:"ReplanSchedule"`

	BotUsername string `json:"BotUsername"`
}

// Clone creates a copy of the configuration. All fields are value types.
func (c *configuration) Clone() *configuration {
	clone := *c
	return &clone
}

func (c *configuration) topicPrefix() string {
	if c.MQTTTopicPrefix == "" {
		return defaultTopicPrefix
	}
	return c.MQTTTopicPrefix
}

func (c *configuration) databasePath() string {
	if c.DatabasePath == "" {
		return defaultDatabasePath
	}
	return c.DatabasePath
}

func (c *configuration) timeZone() string {
	if c.TimeZone == "" {
		return defaultTimeZone
	}
	return c.TimeZone
}

func (c *configuration) replanSchedule() string {
	if c.ReplanSchedule == "" {
		return defaultReplanSchedule
	}
	return c.ReplanSchedule
}

func (c *configuration) botUsername() string {
	if c.BotUsername == "" {
		return defaultBotUsername
	}
	return c.BotUsername
}

// location returns the configured time zone. validate guarantees it loads.
func (c *configuration) location() *time.Location {
	loc, err := time.LoadLocation(c.timeZone())
	if err != nil {
		return time.UTC
	}
	return loc
}

// ready reports whether the engine has everything it needs to run.
func (c *configuration) ready() bool {
	return c.ReportingURL != "" && c.MQTTBroker != ""
}

// validate checks the configuration. Empty optional fields fall back to defaults.
func (c *configuration) validate() error {
	if c.ReportingURL != "" {
		u, err := url.Parse(c.ReportingURL)
		if err != nil {
			return errors.Wrap(err, "invalid reporting URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Errorf("reporting URL must use http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("reporting URL has no host")
		}
	}

	if c.MQTTBroker != "" {
		u, err := url.Parse(c.MQTTBroker)
		if err != nil {
			return errors.Wrap(err, "invalid MQTT broker URL")
		}
		if !brokerSchemes[u.Scheme] {
			return errors.Errorf("unsupported MQTT broker scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("MQTT broker URL has no host")
		}
	}

	if _, err := time.LoadLocation(c.timeZone()); err != nil {
		return errors.Wrapf(err, "invalid time zone %q", c.TimeZone)
	}

	if err := scheduler.ValidateSchedule(c.replanSchedule()); err != nil {
		return err
	}

	return nil
}

// getConfiguration retrieves the active configuration under lock, making it safe to use
// concurrently. The active configuration may change underneath the client of this method, but
// the struct returned by this API call is considered immutable.
func (p *Plugin) getConfiguration() *configuration {
	p.configurationLock.RLock()
	defer p.configurationLock.RUnlock()

	if p.configuration == nil {
		return &configuration{}
	}

	return p.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// Do not call setConfiguration while holding the configurationLock, as sync.Mutex is not
// reentrant. In particular, avoid using the plugin API entirely, as this may in turn trigger a
// hook back into the plugin. If that hook attempts to acquire this lock, a deadlock may occur.
//
// This method panics if setConfiguration is called with the existing configuration. This almost
// certainly means that the configuration was modified without being cloned and may result in
// an unsafe access.
func (p *Plugin) setConfiguration(configuration *configuration) {
	p.configurationLock.Lock()
	defer p.configurationLock.Unlock()

	if configuration != nil && p.configuration == configuration {
		// Ignore assignment if the configuration struct is empty. Go will optimize the
		// allocation for same to point at the same memory address, breaking the check
		// above.
		if reflect.ValueOf(*configuration).NumField() == 0 {
			return
		}

		panic("setConfiguration called with the existing configuration")
	}

	p.configuration = configuration
}

// OnConfigurationChange is invoked when configuration changes may have been made.
// A running engine is restarted when any field changed.
func (p *Plugin) OnConfigurationChange() error {
	var newConfig = new(configuration)

	// Load the public configuration fields from the Mattermost server configuration.
	if err := p.API.LoadPluginConfiguration(newConfig); err != nil {
		return errors.Wrap(err, "failed to load plugin configuration")
	}

	if err := newConfig.validate(); err != nil {
		return errors.Wrap(err, "invalid plugin configuration")
	}

	oldConfig := p.getConfiguration()
	changed := *oldConfig != *newConfig

	p.setConfiguration(newConfig)

	// Hooks before OnActivate only load the configuration.
	if p.client == nil || !changed {
		return nil
	}

	p.restartEngine(newConfig)
	return nil
}
