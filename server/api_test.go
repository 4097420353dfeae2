package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-plugin-geofence/server/engine"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

type fakeGeofence struct {
	transitions []geo.Transition
	entries     []geo.Entry
	unavailable int
	status      engine.Status
	err         error
}

func (f *fakeGeofence) HandleTransition(_ context.Context, t geo.Transition) error {
	f.transitions = append(f.transitions, t)
	return f.err
}

func (f *fakeGeofence) HandleRegionsUnavailable(_ context.Context) error {
	f.unavailable++
	return f.err
}

func (f *fakeGeofence) AddEntry(_ context.Context, entry geo.Entry) error {
	f.entries = append(f.entries, entry)
	return f.err
}

func (f *fakeGeofence) Status() (engine.Status, error) {
	return f.status, f.err
}

func setupAPITest(t *testing.T) (*Plugin, *plugintest.API, *fakeGeofence) {
	api := &plugintest.API{}
	t.Cleanup(func() { api.AssertExpectations(t) })

	p := &Plugin{}
	p.SetAPI(api)

	g := &fakeGeofence{}
	p.geofence = g
	return p, api, g
}

func doRequest(p *Plugin, method, path, body string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authorized {
		req.Header.Set("Mattermost-User-ID", "user-id")
	}
	w := httptest.NewRecorder()
	p.ServeHTTP(nil, w, req)
	return w
}

func TestServeHTTP_Authorization(t *testing.T) {
	p, _, _ := setupAPITest(t)

	w := doRequest(p, http.MethodGet, "/api/v1/status", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServeHTTP_EngineNotRunning(t *testing.T) {
	p, _, _ := setupAPITest(t)
	p.geofence = nil

	w := doRequest(p, http.MethodGet, "/api/v1/status", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleTransition(t *testing.T) {
	t.Run("valid transition", func(t *testing.T) {
		p, _, g := setupAPITest(t)

		body := `{"eventType":"entry","areaIds":["a1","a2"],"latitude":52.52,"longitude":13.4,"occurredAt":"2025-03-04T10:00:00Z"}`
		w := doRequest(p, http.MethodPost, "/api/v1/transitions", body, true)

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, g.transitions, 1)
		got := g.transitions[0]
		assert.Equal(t, geo.EventEntry, got.EventType)
		assert.Equal(t, []string{"a1", "a2"}, got.AreaIDs)
		assert.Equal(t, geo.Location{Latitude: 52.52, Longitude: 13.4}, got.Location)
		assert.True(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC).Equal(got.OccurredAt))
	})

	t.Run("missing timestamp is left to the engine", func(t *testing.T) {
		p, _, g := setupAPITest(t)

		w := doRequest(p, http.MethodPost, "/api/v1/transitions", `{"eventType":"entry","areaIds":["a1"]}`, true)

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, g.transitions, 1)
		assert.True(t, g.transitions[0].OccurredAt.IsZero())
	})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"eventType":`},
		{"unsupported event", `{"eventType":"dwell","areaIds":["a1"]}`},
		{"no areas", `{"eventType":"entry","areaIds":[]}`},
		{"bad timestamp", `{"eventType":"entry","areaIds":["a1"],"occurredAt":"yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, g := setupAPITest(t)

			w := doRequest(p, http.MethodPost, "/api/v1/transitions", tt.body, true)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, g.transitions)
		})
	}

	t.Run("engine failure", func(t *testing.T) {
		p, api, g := setupAPITest(t)
		g.err = errors.New("store down")
		api.On("LogError", "Failed to handle transition", "error", "store down").Once()

		w := doRequest(p, http.MethodPost, "/api/v1/transitions", `{"eventType":"entry","areaIds":["a1"]}`, true)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		p, _, _ := setupAPITest(t)

		w := doRequest(p, http.MethodGet, "/api/v1/transitions", "", true)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleRegionsUnavailable(t *testing.T) {
	p, _, g := setupAPITest(t)

	w := doRequest(p, http.MethodPost, "/api/v1/regions/unavailable", "", true)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, g.unavailable)
}

func TestHandleAddEntry(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		p, _, g := setupAPITest(t)

		body := `{"id":"entry-1","geo":{"campaignId":"c1","geo":[{"id":"a1","latitude":52.5,"longitude":13.4,"radiusInMeters":100}],"expiryTime":"2025-04-01T00:00:00Z"}}`
		w := doRequest(p, http.MethodPost, "/api/v1/entries", body, true)

		assert.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, g.entries, 1)
		entry := g.entries[0]
		assert.Equal(t, "entry-1", entry.ID)
		require.NotNil(t, entry.Geo)
		assert.Equal(t, "c1", entry.Geo.CampaignID)
		require.Len(t, entry.Geo.Areas, 1)
		assert.Equal(t, 100, entry.Geo.Areas[0].RadiusMeters)
		require.NotNil(t, entry.Geo.ExpiryDate)
	})

	t.Run("geo without campaign is rejected", func(t *testing.T) {
		p, _, g := setupAPITest(t)

		w := doRequest(p, http.MethodPost, "/api/v1/entries", `{"id":"entry-1","geo":{"geo":[]}}`, true)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, g.entries)
	})

	t.Run("missing geo", func(t *testing.T) {
		p, _, g := setupAPITest(t)

		w := doRequest(p, http.MethodPost, "/api/v1/entries", `{"id":"entry-1"}`, true)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, g.entries)
	})

	t.Run("engine failure", func(t *testing.T) {
		p, api, g := setupAPITest(t)
		g.err = errors.New("disk full")
		api.On("LogError", "Failed to add entry", "id", "entry-1", "error", "disk full").Once()

		w := doRequest(p, http.MethodPost, "/api/v1/entries", `{"id":"entry-1","geo":{"campaignId":"c1"}}`, true)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	t.Run("returns the engine status", func(t *testing.T) {
		p, _, g := setupAPITest(t)
		next := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
		g.status = engine.Status{Registered: true, Regions: 3, PendingReports: 2, NextRefresh: &next}

		w := doRequest(p, http.MethodGet, "/api/v1/status", "", true)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var got engine.Status
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.True(t, got.Registered)
		assert.Equal(t, 3, got.Regions)
		assert.Equal(t, 2, got.PendingReports)
		require.NotNil(t, got.NextRefresh)
		assert.True(t, next.Equal(*got.NextRefresh))
		assert.Nil(t, got.NextExpire)
	})

	t.Run("engine failure", func(t *testing.T) {
		p, api, g := setupAPITest(t)
		g.err = errors.New("kv down")
		api.On("LogError", "Failed to read engine status", "error", mock.Anything).Once()

		w := doRequest(p, http.MethodGet, "/api/v1/status", "", true)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
