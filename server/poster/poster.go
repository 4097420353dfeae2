package poster

import (
	"fmt"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"

	"github.com/mattermost/mattermost-plugin-geofence/server/formatter"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
	"github.com/mattermost/mattermost-plugin-geofence/server/hashtag"
)

// WebSocketEventGeo is the plugin websocket event published for every surfaced geo event.
const WebSocketEventGeo = "geo_event"

// Poster delivers surfaced geo events to Mattermost.
// This struct is stateless - it only holds immutable configuration.
type Poster struct {
	api       plugin.API
	botID     string
	channelID string
	location  *time.Location
}

// New creates a new Poster instance. An empty channelID disables channel posts;
// the websocket event is always published.
func New(api plugin.API, botID, channelID string, location *time.Location) *Poster {
	if location == nil {
		location = time.UTC
	}
	return &Poster{
		api:       api,
		botID:     botID,
		channelID: channelID,
		location:  location,
	}
}

// Dispatch posts the formatted event to the configured channel and publishes
// a websocket event so that connected clients can display it.
func (p *Poster) Dispatch(entry geo.Entry, msg geo.Message) error {
	if p.channelID != "" {
		attachment := formatter.FormatEvent(entry, msg, p.location)

		post := &model.Post{
			UserId:    p.botID,
			ChannelId: p.channelID,
			Message:   hashtag.Generate(eventArea(entry, msg), msg.EventType),
			Type:      model.PostTypeSlackAttachment,
			Props:     model.StringInterface{},
		}
		model.ParseSlackAttachment(post, []*model.SlackAttachment{attachment})

		if _, appErr := p.api.CreatePost(post); appErr != nil {
			return fmt.Errorf("failed to post geo event %s: %w", msg.ID, appErr)
		}
	}

	p.api.PublishWebSocketEvent(WebSocketEventGeo, map[string]any{
		"message_id":  msg.ID,
		"entry_id":    entry.ID,
		"campaign_id": msg.CampaignID,
		"area_id":     msg.AreaID,
		"event":       string(msg.EventType),
		"title":       msg.Title,
		"body":        msg.Body,
		"created_at":  msg.CreatedAt.UTC().Format(time.RFC3339),
	}, &model.WebsocketBroadcast{ChannelId: p.channelID})

	return nil
}

// eventArea returns the area the message was generated for. Entries that no
// longer carry the area fall back to what the message recorded.
func eventArea(entry geo.Entry, msg geo.Message) geo.Area {
	if entry.Geo != nil {
		if area, ok := entry.Geo.Area(msg.AreaID); ok {
			return area
		}
	}
	return geo.Area{ID: msg.AreaID, Title: msg.Title}
}
