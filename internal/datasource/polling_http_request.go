package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/endpoints"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"

	"github.com/gregjones/httpcache"
	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/maps"
)

// Cached polling responses are kept only for this long, so that a service which stops sending
// ETags, or keeps answering 304 to an old ETag, cannot pin an old payload forever.
const pollingResponseCacheTTL = time.Hour

// pollingRequester is the internal implementation of getting flag/segment data from the LD polling endpoints.
type pollingRequester struct {
	httpClient *http.Client
	baseURI    string
	filterKey  string
	headers    http.Header
	loggers    ldlog.Loggers
}

// responseCache adapts go-cache to the httpcache.Cache interface.
type responseCache struct {
	entries *cache.Cache
}

func newResponseCache(ttl time.Duration) *responseCache {
	// no janitor goroutine: expired entries are skipped by Get and replaced by the next Set
	return &responseCache{entries: cache.New(ttl, 0)}
}

func (c *responseCache) Get(key string) ([]byte, bool) {
	if value, ok := c.entries.Get(key); ok {
		return value.([]byte), true
	}
	return nil, false
}

func (c *responseCache) Set(key string, responseBytes []byte) {
	c.entries.SetDefault(key, responseBytes)
}

func (c *responseCache) Delete(key string) {
	c.entries.Delete(key)
}

func newPollingRequester(
	context subsystems.ClientContext,
	httpClient *http.Client,
	baseURI string,
	filterKey string,
) *pollingRequester {
	if httpClient == nil {
		httpClient = context.GetHTTP().CreateHTTPClient()
	}

	modifiedClient := *httpClient
	modifiedClient.Transport = &httpcache.Transport{
		Cache:               newResponseCache(pollingResponseCacheTTL),
		MarkCachedResponses: true,
		Transport:           httpClient.Transport,
	}

	return &pollingRequester{
		httpClient: &modifiedClient,
		baseURI:    baseURI,
		filterKey:  filterKey,
		headers:    context.GetHTTP().DefaultHeaders,
		loggers:    context.GetLogging().Loggers,
	}
}

func (r *pollingRequester) BaseURI() string {
	return r.baseURI
}

func (r *pollingRequester) FilterKey() string {
	return r.filterKey
}

// Request fetches the full data set. If the response was served from the HTTP cache, meaning the
// service answered 304 Not Modified, it returns cached=true and no data.
func (r *pollingRequester) Request(ctx context.Context) ([]ldstoretypes.Collection, bool, error) {
	if r.loggers.IsDebugEnabled() {
		r.loggers.Debug("Polling LaunchDarkly for feature flag updates")
	}

	body, cached, err := r.makeRequest(ctx, endpoints.PollingRequestPath)
	if err != nil {
		return nil, false, err
	}
	if cached {
		return nil, true, nil
	}

	reader := jreader.NewReader(body)
	data := parseAllStoreDataFromJSONReader(&reader)
	if err := reader.Error(); err != nil {
		return nil, false, malformedJSONError{err}
	}
	return data, false, nil
}

func (r *pollingRequester) makeRequest(ctx context.Context, resource string) ([]byte, bool, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoints.AddPath(r.baseURI, resource), nil)
	if reqErr != nil {
		reqErr = fmt.Errorf(
			"unable to create a poll request; this is not a network problem, most likely a bad base URI: %w",
			reqErr,
		)
		return nil, false, reqErr
	}
	if r.filterKey != "" {
		req.URL.RawQuery = url.Values{
			"filter": {r.filterKey},
		}.Encode()
	}
	url := req.URL.String()
	if r.headers != nil {
		req.Header = maps.Clone(r.headers)
	}

	res, resErr := r.httpClient.Do(req)
	if resErr != nil {
		return nil, false, resErr
	}

	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()

	if err := checkForHTTPError(res.StatusCode, url); err != nil {
		return nil, false, err
	}

	cached := res.Header.Get(httpcache.XFromCache) != ""

	body, ioErr := io.ReadAll(res.Body)
	if ioErr != nil {
		return nil, false, ioErr // COVERAGE: there is no way to simulate this condition in unit tests
	}
	return body, cached, nil
}
