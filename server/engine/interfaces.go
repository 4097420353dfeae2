package engine

import (
	"context"
	"time"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks github.com/mattermost/mattermost-plugin-geofence/server/engine Reporter,RegionMonitor,WakeupScheduler,Dispatcher

// Logger is the structured logger used by the engine.
// *pluginapi.LogService satisfies it.
type Logger interface {
	Debug(message string, keyValuePairs ...any)
	Info(message string, keyValuePairs ...any)
	Warn(message string, keyValuePairs ...any)
	Error(message string, keyValuePairs ...any)
}

// MessageStore holds the signaling entries carrying geo payloads and the
// notification messages generated from them.
type MessageStore interface {
	// FindAll returns every stored entry whose payload could be decoded.
	FindAll(ctx context.Context) ([]geo.Entry, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	SaveEntry(ctx context.Context, entry geo.Entry) error
	SaveMessage(ctx context.Context, msg geo.Message) error
	RemapMessageIDs(ctx context.Context, ids map[string]string) error
}

// RegionMonitor is the location-monitoring capability.
// Registration calls return immediately; done is called once the
// capability accepted or rejected the request.
type RegionMonitor interface {
	RegisterRegions(regions []geo.Region, done func(error))
	UnregisterAll(done func(error))
}

// Reporter delivers reports to the backend.
type Reporter interface {
	ReportSync(ctx context.Context, reports []geo.Report) (geo.ReportResult, error)
}

// WakeupScheduler runs the coordinator again at a given instant.
// Scheduling a reason that is already scheduled replaces it.
type WakeupScheduler interface {
	Schedule(at time.Time, reason geo.WakeupReason) error
	Cancel(reason geo.WakeupReason) error
}

// Dispatcher shows a surfaced event to users.
type Dispatcher interface {
	Dispatch(entry geo.Entry, msg geo.Message) error
}
