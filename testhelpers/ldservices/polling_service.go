package ldservices

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/launchdarkly/go-test-helpers/v3/jsonhelpers"
)

const (
	serverSideSDKPollingPath = "/sdk/latest-all"
)

// ServerSidePollingServiceHandler creates an HTTP handler to mimic the LaunchDarkly server-side polling service.
//
// The data is marshalled to JSON again for each request, so changes made to a ServerSDKData after the
// handler was created are visible to later requests. Each response carries an ETag computed from the body,
// and a request whose If-None-Match matches the current ETag gets a 304 response.
func ServerSidePollingServiceHandler(data interface{}) http.Handler {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := jsonhelpers.ToJSON(data)
		sum := sha256.Sum256(body)
		etag := fmt.Sprintf(`"%s"`, hex.EncodeToString(sum[:8]))
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "max-age=0")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
	return httphelpers.HandlerForPath(serverSideSDKPollingPath, httphelpers.HandlerForMethod("GET", handler, nil), nil)
}
