package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func testReports() []geo.Report {
	return []geo.Report{{
		CampaignID:      "c1",
		AreaID:          "a1",
		EventType:       geo.EventEntry,
		OccurredAt:      time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		Location:        geo.Location{Latitude: 52.52, Longitude: 13.40},
		SourceMessageID: "m1",
		MessageID:       "local-1",
	}}
}

func TestClient_ReportSync_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/geo/event/v2", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(APIKeyHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string][]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body["events"], 1)
		event := body["events"][0]
		assert.Equal(t, "c1", event["campaignId"])
		assert.Equal(t, "a1", event["geofenceAreaId"])
		assert.Equal(t, "entry", event["event"])
		assert.Equal(t, "2025-03-04T10:00:00Z", event["timestamp"])
		assert.Equal(t, "m1", event["sdkMessageId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"messageIds": {"local-1": "backend-1"},
			"inactiveCampaignIds": ["c1"],
			"finishedCampaignIds": [],
			"suspendedCampaignIds": ["c7"]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", nopLogger{})
	result, err := client.ReportSync(context.Background(), testReports())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"local-1": "backend-1"}, result.MessageIDs)
	assert.Equal(t, []string{"c1"}, result.InactiveCampaignIDs)
	assert.Empty(t, result.FinishedCampaignIDs)
	assert.Equal(t, []string{"c7"}, result.SuspendedCampaignIDs)
}

func TestClient_ReportSync_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    string
	}{
		{
			name:       "unauthorized with body",
			statusCode: http.StatusUnauthorized,
			body:       `{"errors":[{"code":"auth.key","message":"Unknown API key"}]}`,
			wantErr:    "authentication error (HTTP 401): Code auth.key: Unknown API key",
		},
		{
			name:       "forbidden without body",
			statusCode: http.StatusForbidden,
			wantErr:    "authentication error (HTTP 403): invalid API key",
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			wantErr:    "rate limit exceeded (HTTP 429)",
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"errors":[{"code":"event.invalid","message":"missing timestamp"}]}`,
			wantErr:    "bad request (HTTP 400): Code event.invalid: missing timestamp",
		},
		{
			name:       "server error",
			statusCode: http.StatusBadGateway,
			wantErr:    "server error (HTTP 502): backend internal error",
		},
		{
			name:       "unexpected status",
			statusCode: http.StatusTeapot,
			wantErr:    "unexpected HTTP status 418",
		},
		{
			name:       "malformed success body",
			statusCode: http.StatusOK,
			body:       `{"messageIds": [`,
			wantErr:    "failed to parse report response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "secret", nopLogger{})
			_, err := client.ReportSync(context.Background(), testReports())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_ReportSync_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", nopLogger{})
	result, err := client.ReportSync(context.Background(), testReports())
	require.NoError(t, err)
	assert.Equal(t, geo.ReportResult{}, result)
}

func TestClient_ReportSync_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "secret", nopLogger{})
	_, err := client.ReportSync(ctx, testReports())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report request failed")
}
