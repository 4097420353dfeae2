package reporting

import (
	"fmt"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// eventsRequest is the body of a report request.
type eventsRequest struct {
	Events []geo.Report `json:"events"`
}

// APIError is the error body returned by the backend.
// Format: {"errors": [{"code": "campaign.unknown", "message": "..."}]}
type APIError struct {
	Errors []ErrorDetail `json:"errors"`
}

// ErrorDetail describes one backend error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("Code %s: %s", e.Errors[0].Code, e.Errors[0].Message)
	}
	return "unknown API error"
}
