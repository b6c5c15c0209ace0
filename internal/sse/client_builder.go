package sse

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/reactor"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

const (
	// DefaultReadTimeout is how long an open stream may stay silent before it is dropped.
	DefaultReadTimeout = 5 * time.Minute
	// DefaultConnectTimeout is how long to wait for response headers.
	DefaultConnectTimeout = 15 * time.Second

	// ReportMethod is the HTTP method used to send a request body with a stream request.
	ReportMethod = "REPORT"
)

// ClientBuilder configures a streaming Client.
type ClientBuilder struct {
	url                   string
	method                string
	headers               http.Header
	body                  string
	httpClient            *http.Client
	initialReconnectDelay time.Duration
	maxReconnectDelay     time.Duration
	readTimeout           time.Duration
	connectTimeout        time.Duration
	lastEventID           ldvalue.OptionalString
	loggers               ldlog.Loggers
	receiver              func(Event)
	errors                func(error)
	connected             func()
	retrying              func(cause error, delay time.Duration)
	backoff               *Backoff
}

// NewClientBuilder returns a builder for a GET request to the given URL, with the standard
// text/event-stream headers.
func NewClientBuilder(streamURL string) *ClientBuilder {
	headers := make(http.Header)
	headers.Set("Accept", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	return &ClientBuilder{
		url:                   streamURL,
		method:                http.MethodGet,
		headers:               headers,
		initialReconnectDelay: DefaultInitialReconnectDelay,
		maxReconnectDelay:     DefaultMaxReconnectDelay,
		readTimeout:           DefaultReadTimeout,
		connectTimeout:        DefaultConnectTimeout,
		loggers:               ldlog.NewDisabledLoggers(),
	}
}

// Method sets the HTTP method. A body is only sent for POST and REPORT.
func (b *ClientBuilder) Method(method string) *ClientBuilder {
	b.method = method
	return b
}

// Header sets a request header, replacing any previous value.
func (b *ClientBuilder) Header(name, value string) *ClientBuilder {
	b.headers.Set(name, value)
	return b
}

// Headers adds all of the given headers, replacing any previous values with the same names.
func (b *ClientBuilder) Headers(headers http.Header) *ClientBuilder {
	for name, values := range headers {
		b.headers[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return b
}

// Body sets the request body. If no Content-Type header was set, text/plain is used.
func (b *ClientBuilder) Body(body string) *ClientBuilder {
	b.body = body
	return b
}

// HTTPClient sets the client used for requests. It is copied; the copy never follows redirects by
// itself and has no overall timeout.
func (b *ClientBuilder) HTTPClient(client *http.Client) *ClientBuilder {
	b.httpClient = client
	return b
}

// InitialReconnectDelay sets the first reconnect delay.
func (b *ClientBuilder) InitialReconnectDelay(d time.Duration) *ClientBuilder {
	b.initialReconnectDelay = d
	return b
}

// MaxReconnectDelay sets the upper bound on reconnect delays.
func (b *ClientBuilder) MaxReconnectDelay(d time.Duration) *ClientBuilder {
	b.maxReconnectDelay = d
	return b
}

// ReadTimeout sets how long an open stream may go without receiving any bytes. Zero disables it.
func (b *ClientBuilder) ReadTimeout(d time.Duration) *ClientBuilder {
	b.readTimeout = d
	return b
}

// ConnectTimeout sets how long to wait for response headers. Zero disables it.
func (b *ClientBuilder) ConnectTimeout(d time.Duration) *ClientBuilder {
	b.connectTimeout = d
	return b
}

// LastEventID sets an initial value for the Last-Event-ID header.
func (b *ClientBuilder) LastEventID(id string) *ClientBuilder {
	b.lastEventID = ldvalue.NewOptionalString(id)
	return b
}

// Logging sets the loggers.
func (b *ClientBuilder) Logging(loggers ldlog.Loggers) *ClientBuilder {
	b.loggers = loggers
	return b
}

// Receiver sets the function that receives events, including comments. It runs on the reactor.
func (b *ClientBuilder) Receiver(receiver func(Event)) *ClientBuilder {
	b.receiver = receiver
	return b
}

// Errors sets the function that receives reportable errors: ReadTimeoutError,
// UnrecoverableClientError and NotRedirectableError. It runs on the reactor.
func (b *ClientBuilder) Errors(errors func(error)) *ClientBuilder {
	b.errors = errors
	return b
}

// Connected sets a function to call each time a 2xx response starts streaming. It runs on the
// reactor.
func (b *ClientBuilder) Connected(connected func()) *ClientBuilder {
	b.connected = connected
	return b
}

// Retrying sets a function to call each time the client schedules a reconnect, with the cause and
// the delay. It runs on the reactor.
func (b *ClientBuilder) Retrying(retrying func(cause error, delay time.Duration)) *ClientBuilder {
	b.retrying = retrying
	return b
}

// Backoff replaces the default backoff policy built from the reconnect delays.
func (b *ClientBuilder) Backoff(backoff *Backoff) *ClientBuilder {
	b.backoff = backoff
	return b
}

// Build creates the Client. All of its callbacks and timers run on the given reactor.
func (b *ClientBuilder) Build(r *reactor.Reactor) (*Client, error) {
	target, err := url.Parse(b.url)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL %q: %w", b.url, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid stream URL %q: scheme must be http or https", b.url)
	}

	var httpClient http.Client
	if b.httpClient != nil {
		httpClient = *b.httpClient
	}
	httpClient.Timeout = 0
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	headers := b.headers.Clone()
	body := ""
	if b.method == http.MethodPost || b.method == ReportMethod {
		body = b.body
		if body != "" && headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "text/plain")
		}
	}

	backoff := b.backoff
	if backoff == nil {
		backoff = NewBackoff(b.initialReconnectDelay, b.maxReconnectDelay)
	}

	c := &Client{
		reactor:        r,
		method:         b.method,
		headers:        headers,
		body:           body,
		url:            target,
		httpClient:     &httpClient,
		readTimeout:    b.readTimeout,
		connectTimeout: b.connectTimeout,
		loggers:        b.loggers,
		receiver:       b.receiver,
		errors:         b.errors,
		connected:      b.connected,
		retrying:       b.retrying,
		backoff:        backoff,
	}
	c.parser = NewParser(c.postEvent)
	c.parser.SetLastEventID(b.lastEventID)
	return c, nil
}
