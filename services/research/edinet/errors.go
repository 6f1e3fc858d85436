// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edinet

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classifying API failures with errors.Is. Server
// errors are the only retryable class.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("resource not found")
	ErrServer         = errors.New("server error")
)

// APIError describes a failed EDINET API call. StatusCode holds either
// the HTTP status or EDINET's internal status when the HTTP layer
// reported 200.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EDINET API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap maps the status code onto the sentinel taxonomy: 401 is an
// authentication failure, 404 a missing resource, 5xx a server error.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrAuthentication
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return nil
	}
}

func newAPIError(statusCode int, message, endpoint string) *APIError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &APIError{StatusCode: statusCode, Message: message, Endpoint: endpoint}
}
