package sse

import (
	"errors"
	"fmt"
	"time"
)

// ErrConnectionClosed is the retry cause when the server ended a successful stream.
var ErrConnectionClosed = errors.New("connection closed normally")

// ErrRestartRequested is the retry cause when the caller asked the client to reconnect.
var ErrRestartRequested = errors.New("stream restart requested")

var (
	errShutdown       = errors.New("stream client shut down")
	errConnectTimeout = errors.New("timed out waiting for response headers")
)

// ReadTimeoutError is reported when no bytes arrived on an open stream within the read timeout.
// The client reconnects after reporting it.
type ReadTimeoutError struct {
	Timeout time.Duration
}

func (e ReadTimeoutError) Error() string {
	return fmt.Sprintf("no data received on stream within %s", e.Timeout)
}

// UnrecoverableClientError is reported when the server returned a status that means retrying
// cannot help, such as 401 or 204. The client stops after reporting it.
type UnrecoverableClientError struct {
	StatusCode int
}

func (e UnrecoverableClientError) Error() string {
	return fmt.Sprintf("unrecoverable HTTP status %d", e.StatusCode)
}

// NotRedirectableError is reported for a redirect status that the client cannot follow: a status
// other than 301 or 307, or a missing or unparseable Location. The client stops after reporting it.
type NotRedirectableError struct {
	StatusCode int
	Location   string
}

func (e NotRedirectableError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("HTTP status %d without a usable Location header", e.StatusCode)
	}
	return fmt.Sprintf("HTTP status %d with unusable Location %q", e.StatusCode, e.Location)
}

// BadStatusError is the retry cause for an error status that the client will retry after a delay.
type BadStatusError struct {
	StatusCode int
}

func (e BadStatusError) Error() string {
	return fmt.Sprintf("HTTP status %d", e.StatusCode)
}

// IsRecoverableStatus returns true if a stream that failed with this HTTP status should be retried.
// Among 4xx statuses only 400, 408 and 429 are recoverable.
func IsRecoverableStatus(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 400, 408, 429:
			return true
		default:
			return false
		}
	}
	return true
}
