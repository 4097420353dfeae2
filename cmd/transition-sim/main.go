// Command transition-sim plays a device for manual testing. It follows the
// region set the plugin publishes, walks a simulated position around a
// starting point and publishes an entry transition whenever the position
// enters a monitored area.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
	"github.com/mattermost/mattermost-plugin-geofence/server/monitor"
)

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_195.0

type device struct {
	mu       sync.Mutex
	regions  []geo.Region
	position geo.Location
	inside   map[string]bool
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	prefix := flag.String("prefix", "geofence", "Topic prefix the plugin is configured with")
	lat := flag.Float64("lat", 52.520008, "Starting latitude")
	lng := flag.Float64("lng", 13.404954, "Starting longitude")
	step := flag.Float64("step", 25, "Maximum distance in meters moved per interval")
	interval := flag.Duration("interval", 2*time.Second, "Interval between position updates")
	unavailable := flag.Bool("unavailable", false, "Publish a regions-unavailable signal and exit")

	flag.Parse()

	clientID := fmt.Sprintf("transition-sim-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	if *unavailable {
		token := client.Publish(monitor.Topic(*prefix, monitor.UnavailableTopic), 1, false, []byte("{}"))
		token.Wait()
		if err := token.Error(); err != nil {
			log.Fatalf("publish error: %v", err)
		}
		log.Print("published regions-unavailable signal")
		client.Disconnect(250)
		return
	}

	d := &device{
		position: geo.Location{Latitude: *lat, Longitude: *lng},
		inside:   make(map[string]bool),
	}

	regionsTopic := monitor.Topic(*prefix, monitor.RegionsTopic)
	token := client.Subscribe(regionsTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		regions, err := monitor.DecodeRegions(msg.Payload())
		if err != nil {
			log.Printf("ignoring region set: %v", err)
			return
		}
		d.setRegions(regions)
		log.Printf("monitoring %d regions", len(regions))
	})
	if token.Wait() && token.Error() != nil {
		log.Fatalf("failed to subscribe to %s: %v", regionsTopic, token.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	transitionsTopic := monitor.Topic(*prefix, monitor.TransitionsTopic)
	publish := func() {
		t, ok := d.move(*step, time.Now())
		if !ok {
			return
		}

		data, err := monitor.EncodeTransition(t)
		if err != nil {
			log.Printf("failed to encode transition: %v", err)
			return
		}

		token := client.Publish(transitionsTopic, 1, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s areas=%v at (%.6f, %.6f)", t.EventType, t.AreaIDs, t.Location.Latitude, t.Location.Longitude)
	}

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}

// setRegions replaces the monitored regions. Areas that are no longer
// monitored are forgotten so that re-adding them can trigger again.
func (d *device) setRegions(regions []geo.Region) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regions = regions
	monitored := make(map[string]bool, len(regions))
	for _, r := range regions {
		monitored[r.ID] = true
	}
	for id := range d.inside {
		if !monitored[id] {
			delete(d.inside, id)
		}
	}
}

// move takes a random step and returns the entry transition for areas the
// device just entered.
func (d *device) move(step float64, now time.Time) (geo.Transition, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	angle := rand.Float64() * 2 * math.Pi
	dist := rand.Float64() * step
	d.position.Latitude += dist * math.Cos(angle) / metersPerDegree
	d.position.Longitude += dist * math.Sin(angle) / (metersPerDegree * math.Cos(d.position.Latitude*math.Pi/180))

	var entered []string
	for _, r := range d.regions {
		if r.Expiry != nil && !r.Expiry.After(now) {
			continue
		}
		in := contains(r.Area, d.position)
		if in && !d.inside[r.ID] {
			entered = append(entered, r.ID)
		}
		d.inside[r.ID] = in
	}

	if len(entered) == 0 {
		return geo.Transition{}, false
	}
	return geo.Transition{
		EventType:  geo.EventEntry,
		AreaIDs:    entered,
		Location:   d.position,
		OccurredAt: now,
	}, true
}
