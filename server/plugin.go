package main

import (
	"context"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-geofence/server/engine"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
	"github.com/mattermost/mattermost-plugin-geofence/server/messagestore"
	"github.com/mattermost/mattermost-plugin-geofence/server/monitor"
	"github.com/mattermost/mattermost-plugin-geofence/server/poster"
	"github.com/mattermost/mattermost-plugin-geofence/server/reporting"
	"github.com/mattermost/mattermost-plugin-geofence/server/scheduler"
)

// mqttDisconnectQuiesce is how long, in milliseconds, the broker connection
// may take to finish in-flight work on shutdown.
const mqttDisconnectQuiesce = 250

// geofence is the part of the engine served over HTTP.
type geofence interface {
	HandleTransition(ctx context.Context, t geo.Transition) error
	HandleRegionsUnavailable(ctx context.Context) error
	AddEntry(ctx context.Context, entry geo.Entry) error
	Status() (engine.Status, error)
}

// Plugin implements the interface expected by the Mattermost server to communicate between the server and plugin processes.
type Plugin struct {
	plugin.MattermostPlugin

	// client is the Mattermost server API client.
	client *pluginapi.Client

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active plugin configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// botID posts surfaced events.
	botID string

	// engineLock guards runtime and geofence.
	engineLock sync.Mutex

	// runtime owns the running engine and its connections. Nil when the
	// engine is not configured.
	runtime *runtime

	// geofence is the running coordinator.
	geofence geofence
}

// runtime holds everything started for one engine run.
type runtime struct {
	coordinator *engine.Coordinator
	scheduler   *scheduler.Scheduler
	monitor     *monitor.Monitor
	mqtt        mqtt.Client
	messages    *messagestore.Store
	dedup       *Deduplicator
}

// OnActivate is invoked when the plugin is activated. If an error is returned, the plugin will be deactivated.
func (p *Plugin) OnActivate() error {
	p.client = pluginapi.NewClient(p.API, p.Driver)

	config := p.getConfiguration()

	botID, err := p.API.EnsureBotUser(&model.Bot{
		Username:    config.botUsername(),
		DisplayName: "Geofence",
		Description: "Bot for posting surfaced geofence events to Mattermost channels",
	})
	if err != nil {
		return errors.Wrap(err, "failed to ensure bot user")
	}
	p.botID = botID

	p.API.LogInfo("Bot user initialized", "botID", botID, "username", config.botUsername())

	p.engineLock.Lock()
	defer p.engineLock.Unlock()

	if err := p.startEngine(config); err != nil {
		// A broken broker or database must not keep the plugin from activating;
		// the next configuration change retries.
		p.API.LogError("Failed to start geofence engine", "error", err.Error())
	}

	return nil
}

// OnDeactivate is invoked when the plugin is deactivated.
func (p *Plugin) OnDeactivate() error {
	p.engineLock.Lock()
	defer p.engineLock.Unlock()

	return p.stopEngine()
}

// restartEngine stops the running engine and starts one with config.
func (p *Plugin) restartEngine(config *configuration) {
	p.engineLock.Lock()
	defer p.engineLock.Unlock()

	if err := p.stopEngine(); err != nil {
		p.API.LogWarn("Failed to stop geofence engine cleanly", "error", err.Error())
	}
	if err := p.startEngine(config); err != nil {
		p.API.LogError("Failed to restart geofence engine", "error", err.Error())
	}
}

// startEngine wires the collaborators and starts the coordinator.
// Must be called with engineLock held.
func (p *Plugin) startEngine(config *configuration) error {
	if !config.ready() {
		p.API.LogWarn("Geofence engine not started: reporting URL and MQTT broker must be configured")
		return nil
	}

	log := &p.client.Log
	ctx := context.Background()
	rt := &runtime{}

	messages, err := messagestore.Open(config.databasePath(), log)
	if err != nil {
		return errors.Wrap(err, "failed to open message store")
	}
	rt.messages = messages
	if err := messages.InitSchema(ctx); err != nil {
		p.closeRuntime(rt)
		return errors.Wrap(err, "failed to initialize message store")
	}

	client, err := monitor.Connect(config.MQTTBroker, "mm-geofence-"+model.NewId())
	if err != nil {
		p.closeRuntime(rt)
		return errors.Wrap(err, "failed to connect to MQTT broker")
	}
	rt.mqtt = client
	rt.monitor = monitor.New(client, config.topicPrefix(), log)

	// The scheduler needs the coordinator and the coordinator the scheduler;
	// wake-ups only fire after Start, once coordinator is set.
	var coordinator *engine.Coordinator
	rt.scheduler = scheduler.New(scheduler.NewClusterJobScheduler(p.API), log, func(reason geo.WakeupReason) {
		if err := coordinator.HandleWakeup(context.Background(), reason); err != nil {
			log.Error("Wake-up failed", "reason", string(reason), "error", err.Error())
		}
	})

	location := config.location()
	coordinator, err = engine.NewCoordinator(engine.Options{
		Messages:   messages,
		Monitor:    rt.monitor,
		Reporter:   reporting.NewClient(config.ReportingURL, config.ReportingAPIKey, log),
		Scheduler:  rt.scheduler,
		Dispatcher: poster.New(p.API, p.botID, config.ChannelID, location),
		KV:         p.API,
		Logger:     log,
		Location:   location,
	})
	if err != nil {
		p.closeRuntime(rt)
		return errors.Wrap(err, "failed to create coordinator")
	}
	rt.coordinator = coordinator

	rt.dedup = NewDeduplicator(p.client)
	guarded := &dedupingGeofence{geofence: coordinator, dedup: rt.dedup, log: log}

	err = rt.monitor.Subscribe(
		func(t geo.Transition) {
			if err := guarded.HandleTransition(context.Background(), t); err != nil {
				log.Error("Failed to handle transition", "event", string(t.EventType), "error", err.Error())
			}
		},
		func() {
			if err := coordinator.HandleRegionsUnavailable(context.Background()); err != nil {
				log.Error("Failed to handle unavailable regions", "error", err.Error())
			}
		},
	)
	if err != nil {
		p.closeRuntime(rt)
		return errors.Wrap(err, "failed to subscribe to location monitor")
	}

	if err := coordinator.Start(ctx); err != nil {
		p.closeRuntime(rt)
		return errors.Wrap(err, "failed to start coordinator")
	}

	if err := rt.scheduler.StartCron(config.replanSchedule()); err != nil {
		p.closeRuntime(rt)
		return errors.Wrap(err, "failed to start re-plan schedule")
	}

	p.runtime = rt
	p.geofence = guarded

	p.API.LogInfo("Geofence engine started", "broker", config.MQTTBroker, "prefix", config.topicPrefix())
	return nil
}

// stopEngine tears down the running engine, if any.
// Must be called with engineLock held.
func (p *Plugin) stopEngine() error {
	if p.runtime == nil {
		return nil
	}

	rt := p.runtime
	p.runtime = nil
	p.geofence = nil

	var err error
	if rt.coordinator != nil {
		err = rt.coordinator.Stop()
	}
	p.closeRuntime(rt)

	if err != nil {
		return errors.Wrap(err, "failed to stop coordinator")
	}
	p.API.LogInfo("Geofence engine stopped")
	return nil
}

// closeRuntime releases whatever part of rt was started. Errors are logged.
func (p *Plugin) closeRuntime(rt *runtime) {
	if rt.scheduler != nil {
		if err := rt.scheduler.Close(); err != nil {
			p.API.LogWarn("Failed to close scheduler", "error", err.Error())
		}
	}
	if rt.monitor != nil {
		if err := rt.monitor.Close(); err != nil {
			p.API.LogWarn("Failed to unsubscribe from location monitor", "error", err.Error())
		}
	}
	if rt.mqtt != nil {
		rt.mqtt.Disconnect(mqttDisconnectQuiesce)
	}
	if rt.dedup != nil {
		rt.dedup.Stop()
	}
	if rt.messages != nil {
		if err := rt.messages.Close(); err != nil {
			p.API.LogWarn("Failed to close message store", "error", err.Error())
		}
	}
}

// activeGeofence returns the running coordinator, or nil.
func (p *Plugin) activeGeofence() geofence {
	p.engineLock.Lock()
	defer p.engineLock.Unlock()

	return p.geofence
}

// See https://developers.mattermost.com/extend/plugins/server/reference/
