package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/reactor"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const readBufferSize = 4096

type connectionState int

const (
	stateIdle connectionState = iota
	stateConnecting
	stateStreaming
	stateBackingOff
	stateShuttingDown
	stateShutdown
)

func (s connectionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateStreaming:
		return "streaming"
	case stateBackingOff:
		return "backing off"
	case stateShuttingDown:
		return "shutting down"
	case stateShutdown:
		return "shut down"
	default:
		return "unknown"
	}
}

// Client maintains one logical server-sent-events connection, reconnecting with backoff.
//
// Each connection attempt runs on its own goroutine, which performs the blocking request and feeds
// the body to the Parser. Everything else (events, errors, backoff, lifecycle state) is handled
// on the reactor the Client was built with. At most one attempt goroutine exists at a time.
type Client struct {
	reactor        *reactor.Reactor
	method         string
	headers        http.Header
	body           string
	httpClient     *http.Client
	readTimeout    time.Duration
	connectTimeout time.Duration
	loggers        ldlog.Loggers
	receiver       func(Event)
	errors         func(error)
	connected      func()
	retrying       func(cause error, delay time.Duration)

	// owned by the reactor
	url          *url.URL
	state        connectionState
	backoff      *Backoff
	backoffTimer *reactor.Timer

	// used only by the current attempt goroutine; attempts never overlap
	parser *Parser

	workerLock   sync.Mutex
	worker       *attemptWorker
	shuttingDown atomic.Bool
}

type attemptWorker struct {
	done   chan struct{}
	cancel context.CancelCauseFunc
}

type attemptResult struct {
	statusCode int
	location   string
	err        error
}

// AsyncConnect starts connecting, if the client is not already connected or connecting. A pending
// reconnect delay is skipped.
func (c *Client) AsyncConnect() {
	c.reactor.Post(c.doConnect)
}

// AsyncRestart drops the current connection, if any, and reconnects after a backoff delay.
func (c *Client) AsyncRestart() {
	c.abortWorker(ErrRestartRequested)
}

// AsyncShutdown permanently stops the client. Any pending reconnect is cancelled and any in-flight
// request is interrupted; completion is called once the attempt goroutine has exited.
//
// It may be called any number of times, from any goroutine, including before AsyncConnect. Every
// call's completion is invoked.
func (c *Client) AsyncShutdown(completion func()) {
	c.shuttingDown.Store(true)
	c.abortWorker(errShutdown)
	finish := func() {
		c.backoffTimer.Cancel()
		c.backoffTimer = nil
		if c.state != stateShutdown {
			c.state = stateShuttingDown
		}
		c.joinWorker()
		c.state = stateShutdown
		if completion != nil {
			completion()
		}
	}
	if !c.reactor.Post(finish) {
		go func() {
			<-c.reactor.Done()
			finish()
		}()
	}
}

func (c *Client) doConnect() {
	if c.shuttingDown.Load() {
		return
	}
	switch c.state {
	case stateConnecting, stateStreaming, stateShuttingDown, stateShutdown:
		return
	case stateBackingOff:
		c.backoffTimer.Cancel()
		c.backoffTimer = nil
	}
	c.joinWorker()

	ctx, cancel := context.WithCancelCause(context.Background())
	w := &attemptWorker{done: make(chan struct{}), cancel: cancel}
	c.workerLock.Lock()
	if c.shuttingDown.Load() {
		c.workerLock.Unlock()
		cancel(errShutdown)
		return
	}
	c.worker = w
	c.workerLock.Unlock()

	c.state = stateConnecting
	target := *c.url
	c.loggers.Debugf("Connecting to %s", target.Redacted())
	go c.runWorker(ctx, w, target)
}

func (c *Client) runWorker(ctx context.Context, w *attemptWorker, target url.URL) {
	result := c.performRequest(ctx, w, target)
	w.cancel(nil)
	// This is the worker's last message; the reactor takes over from here.
	c.reactor.Post(func() { c.onAttemptDone(result) })
	close(w.done)
}

func (c *Client) performRequest(ctx context.Context, w *attemptWorker, target url.URL) attemptResult {
	c.parser.Reset()

	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, target.String(), body)
	if err != nil {
		return attemptResult{err: err}
	}
	req.Header = c.headers.Clone()
	if id := c.parser.LastEventID(); id.IsDefined() && id.StringValue() != "" {
		req.Header.Set("Last-Event-ID", id.StringValue())
	}

	var connectTimer *time.Timer
	if c.connectTimeout > 0 {
		connectTimer = time.AfterFunc(c.connectTimeout, func() { w.cancel(errConnectTimeout) })
	}
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // closed below
	if connectTimer != nil {
		connectTimer.Stop()
	}
	if err != nil {
		return attemptResult{err: causeOf(ctx, err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	result := attemptResult{statusCode: resp.StatusCode, location: resp.Header.Get("Location")}
	if resp.StatusCode/100 != 2 || resp.StatusCode == http.StatusNoContent {
		return result
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		c.loggers.Warnf("Unexpected Content-Type for stream response: %q", contentType)
	}
	c.reactor.Post(c.onConnected)
	result.err = c.readBody(ctx, w, resp.Body)
	return result
}

// readBody feeds the body to the parser until it ends. If no bytes arrive within the read
// timeout, the watchdog cancels the request, which makes the pending Read return.
func (c *Client) readBody(ctx context.Context, w *attemptWorker, body io.Reader) error {
	if c.readTimeout > 0 {
		watchdog := time.AfterFunc(c.readTimeout, func() { w.cancel(ReadTimeoutError{Timeout: c.readTimeout}) })
		defer watchdog.Stop()
		body = &progressReader{r: body, onProgress: func() { watchdog.Reset(c.readTimeout) }}
	}
	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			c.parser.Put(buf[:n])
		}
		if err != nil {
			if cause := context.Cause(ctx); cause != nil {
				return cause
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (c *Client) onConnected() {
	if c.shuttingDown.Load() {
		return
	}
	c.state = stateStreaming
	c.backoff.Succeed()
	if c.connected != nil {
		c.connected()
	}
}

func (c *Client) onAttemptDone(result attemptResult) {
	if c.shuttingDown.Load() {
		return
	}
	c.joinWorker()
	c.state = stateIdle

	status := result.statusCode
	switch {
	case result.err != nil:
		var readTimeout ReadTimeoutError
		if errors.As(result.err, &readTimeout) {
			c.reportError(readTimeout)
		}
		c.scheduleBackoff(result.err)
	case status == http.StatusMovedPermanently || status == http.StatusTemporaryRedirect:
		if target, ok := c.resolveRedirect(result.location); ok {
			c.loggers.Infof("Stream redirected (%d) to %s", status, target.Redacted())
			c.url = target
			c.doConnect()
			return
		}
		c.reportError(NotRedirectableError{StatusCode: status, Location: result.location})
	case status/100 == 3:
		c.reportError(NotRedirectableError{StatusCode: status, Location: result.location})
	case status == http.StatusNoContent:
		c.reportError(UnrecoverableClientError{StatusCode: status})
	case status/100 == 2:
		c.scheduleBackoff(ErrConnectionClosed)
	case !IsRecoverableStatus(status):
		c.reportError(UnrecoverableClientError{StatusCode: status})
	default:
		c.scheduleBackoff(BadStatusError{StatusCode: status})
	}
}

func (c *Client) resolveRedirect(location string) (*url.URL, bool) {
	if location == "" {
		return nil, false
	}
	ref, err := url.Parse(location)
	if err != nil {
		return nil, false
	}
	target := c.url.ResolveReference(ref)
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, false
	}
	return target, true
}

func (c *Client) scheduleBackoff(cause error) {
	c.backoff.Fail()
	delay := c.backoff.Delay()
	c.state = stateBackingOff
	c.loggers.Debugf("Stream connection ended (%s), reconnecting in %s", cause, delay)
	if c.retrying != nil {
		c.retrying(cause, delay)
	}
	c.backoffTimer = c.reactor.AfterFunc(delay, c.doConnect)
}

func (c *Client) reportError(err error) {
	if c.errors != nil {
		c.errors(err)
	}
}

func (c *Client) postEvent(e Event) {
	c.reactor.Post(func() {
		if !c.shuttingDown.Load() && c.receiver != nil {
			c.receiver(e)
		}
	})
}

func (c *Client) abortWorker(cause error) {
	c.workerLock.Lock()
	if c.worker != nil {
		c.worker.cancel(cause)
	}
	c.workerLock.Unlock()
}

func (c *Client) joinWorker() {
	c.workerLock.Lock()
	w := c.worker
	c.workerLock.Unlock()
	if w == nil {
		return
	}
	<-w.done
	c.workerLock.Lock()
	if c.worker == w {
		c.worker = nil
	}
	c.workerLock.Unlock()
}

func causeOf(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}

type progressReader struct {
	r          io.Reader
	onProgress func()
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.onProgress()
	}
	return n, err
}
