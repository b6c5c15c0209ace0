package interfaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDataSourceErrorInfoString(t *testing.T) {
	at := time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)
	stamp := "@" + at.Format(time.RFC3339)

	cases := []struct {
		name     string
		info     DataSourceErrorInfo
		expected string
	}{
		{"no error", DataSourceErrorInfo{}, ""},
		{"kind only", DataSourceErrorInfo{Kind: DataSourceErrorKindUnknown}, "UNKNOWN"},
		{"status", DataSourceErrorInfo{Kind: DataSourceErrorKindErrorResponse, StatusCode: 503, Time: at},
			"ERROR_RESPONSE(503)" + stamp},
		{"status and message",
			DataSourceErrorInfo{Kind: DataSourceErrorKindErrorResponse, StatusCode: 302, Message: "no Location", Time: at},
			"ERROR_RESPONSE(302,no Location)" + stamp},
		{"read timeout", DataSourceErrorInfo{Kind: DataSourceErrorKindNetworkError, Message: "read timeout", Time: at},
			"NETWORK_ERROR(read timeout)" + stamp},
		{"malformed event", DataSourceErrorInfo{Kind: DataSourceErrorKindInvalidData, Message: "bad patch", Time: at},
			"INVALID_DATA(bad patch)" + stamp},
		{"store unavailable", DataSourceErrorInfo{Kind: DataSourceErrorKindStoreError, Time: at},
			"STORE_ERROR" + stamp},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.info.String())
		})
	}
}

func TestDataSourceStatusString(t *testing.T) {
	since := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	sinceText := since.Format(time.RFC3339)

	assert.Equal(t, "Status(INITIALIZING,"+sinceText+",)",
		DataSourceStatus{State: DataSourceStateInitializing, StateSince: since}.String())

	lastError := DataSourceErrorInfo{Kind: DataSourceErrorKindStoreError, Time: since.Add(time.Minute)}
	interrupted := DataSourceStatus{State: DataSourceStateInterrupted, StateSince: since, LastError: lastError}
	assert.Equal(t, "Status(INTERRUPTED,"+sinceText+","+lastError.String()+")", interrupted.String())

	// the last error is still reported after recovering
	valid := DataSourceStatus{State: DataSourceStateValid, StateSince: since, LastError: lastError}
	assert.Equal(t, "Status(VALID,"+sinceText+","+lastError.String()+")", valid.String())
}
