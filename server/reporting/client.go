package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mattermost/mattermost-plugin-geofence/server/engine"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

const (
	eventsPath = "/geo/event/v2"

	// APIKeyHeader carries the reporting API key.
	APIKeyHeader = "X-Api-Key"
)

// Client delivers geo reports to the campaign backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     engine.Logger
}

// NewClient creates a reporting client for the backend at baseURL.
func NewClient(baseURL, apiKey string, logger engine.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// ReportSync sends the reports and returns the backend's verdict on the
// campaigns they belong to.
func (c *Client) ReportSync(ctx context.Context, reports []geo.Report) (geo.ReportResult, error) {
	body, err := json.Marshal(eventsRequest{Events: reports})
	if err != nil {
		return geo.ReportResult{}, fmt.Errorf("failed to encode reports: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return geo.ReportResult{}, fmt.Errorf("failed to create report request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.ReportResult{}, fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		// accepted with nothing to report back
		return geo.ReportResult{}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			return geo.ReportResult{}, fmt.Errorf("authentication error (HTTP %d): %s", resp.StatusCode, apiErr.Error())
		}
		return geo.ReportResult{}, fmt.Errorf("authentication error (HTTP %d): invalid API key", resp.StatusCode)
	case http.StatusTooManyRequests:
		return geo.ReportResult{}, fmt.Errorf("rate limit exceeded (HTTP 429): too many requests")
	case http.StatusBadRequest:
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			return geo.ReportResult{}, fmt.Errorf("bad request (HTTP 400): %s", apiErr.Error())
		}
		return geo.ReportResult{}, fmt.Errorf("bad request (HTTP 400): invalid report payload")
	default:
		if resp.StatusCode >= http.StatusInternalServerError {
			var apiErr APIError
			if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
				return geo.ReportResult{}, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, apiErr.Error())
			}
			return geo.ReportResult{}, fmt.Errorf("server error (HTTP %d): backend internal error", resp.StatusCode)
		}
		return geo.ReportResult{}, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	var result geo.ReportResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return geo.ReportResult{}, fmt.Errorf("failed to parse report response: %w", err)
	}

	c.logger.Debug("Report accepted by backend",
		"count", len(reports),
		"remapped", len(result.MessageIDs),
		"inactive", len(result.InactiveCampaignIDs),
		"finished", len(result.FinishedCampaignIDs),
		"suspended", len(result.SuspendedCampaignIDs))

	return result, nil
}
