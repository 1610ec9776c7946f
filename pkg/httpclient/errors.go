package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxBodyBytes = 1 << 20

// downstreamError matches both the {"error":{code,message}} envelope and the
// {"success":false,"message":...} shape used by the catalogue API.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// ParseResponseError consumes and closes a non-2xx response and translates it
// into an AppError where the status has a storefront meaning.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := string(body)
	var downstream downstreamError
	if json.Unmarshal(body, &downstream) == nil {
		switch {
		case downstream.Error != nil:
			message = downstream.Error.Message
		case downstream.Message != "":
			message = downstream.Message
		}
	}

	return mapDownstreamError(resp.StatusCode, message, serviceName)
}

func mapDownstreamError(status int, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusTooManyRequests, status >= 500:
		return apperrors.ServiceUnavailable(qualified)
	default:
		return fmt.Errorf("%s returned status %d: %s", serviceName, status, message)
	}
}
