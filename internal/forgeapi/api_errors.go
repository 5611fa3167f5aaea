package forgeapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrMissingKey   = errors.New("forgeapi: access key missing")
	ErrUnauthorized = errors.New("forgeapi: access key rejected")
	ErrNotFound     = errors.New("forgeapi: not found")
)

// APIError represents a structured error payload from the Forge API
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// handleAPIError maps a response into the sentinel errors callers match on
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", operation, ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", operation, ErrNotFound)
		}
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			return fmt.Errorf("%s %w", operation, apiErr)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Status)
	}

	return nil
}
