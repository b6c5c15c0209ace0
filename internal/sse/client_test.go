package sse

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-server-sdk-datasync/internal/reactor"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	briefDelay = time.Millisecond * 50
	timeout    = time.Second * 3
)

type retryInfo struct {
	cause error
	delay time.Duration
}

type clientTestParams struct {
	client    *Client
	reactor   *reactor.Reactor
	events    <-chan Event
	errors    <-chan error
	retries   <-chan retryInfo
	connected <-chan struct{}
	mockLog   *ldlogtest.MockLog
}

func runClientTest(t *testing.T, handler http.Handler, configure func(*ClientBuilder), action func(clientTestParams)) {
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		events := make(chan Event, 100)
		errs := make(chan error, 100)
		retries := make(chan retryInfo, 100)
		connected := make(chan struct{}, 100)
		mockLog := ldlogtest.NewMockLog()

		builder := NewClientBuilder(server.URL+"/stream").
			InitialReconnectDelay(time.Millisecond).
			Logging(mockLog.Loggers).
			Receiver(func(e Event) { events <- e }).
			Errors(func(err error) { errs <- err }).
			Connected(func() { connected <- struct{}{} }).
			Retrying(func(cause error, delay time.Duration) { retries <- retryInfo{cause, delay} })
		if configure != nil {
			configure(builder)
		}

		r := reactor.New()
		defer r.Close()
		client, err := builder.Build(r)
		require.NoError(t, err)

		client.AsyncConnect()
		action(clientTestParams{client, r, events, errs, retries, connected, mockLog})

		shutdownDone := make(chan struct{})
		client.AsyncShutdown(func() { close(shutdownDone) })
		th.AssertChannelClosed(t, shutdownDone, timeout)
	})
}

// streamingHandler writes the body as an event stream and then holds the connection open until
// the client goes away.
func streamingHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
}

// closingHandler writes the body as an event stream and then ends the response.
func closingHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

// tickingHandler sends an event every few milliseconds until the client goes away.
func tickingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		ticker := time.NewTicker(time.Millisecond * 5)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				_, _ = w.Write([]byte("data: tick\n\n"))
				w.(http.Flusher).Flush()
			}
		}
	})
}

func redirectHandler(status int, location string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if location != "" {
			w.Header().Set("Location", location)
		}
		w.WriteHeader(status)
	})
}

func TestClientReceivesEvents(t *testing.T) {
	t.Parallel()
	initial := httphelpers.SSEEvent{Event: "put", Data: `{"a":1}`}
	handler, stream := httphelpers.SSEHandler(&initial)
	defer stream.Close()

	runClientTest(t, handler, nil, func(p clientTestParams) {
		th.RequireValue(t, p.connected, timeout)
		e := th.RequireValue(t, p.events, timeout)
		assert.Equal(t, "put", e.Type)
		assert.Equal(t, `{"a":1}`, e.Data)

		stream.Send(httphelpers.SSEEvent{Event: "patch", Data: "1"})
		stream.Send(httphelpers.SSEEvent{Event: "patch", Data: "2"})
		assert.Equal(t, "1", th.RequireValue(t, p.events, timeout).Data)
		assert.Equal(t, "2", th.RequireValue(t, p.events, timeout).Data)
		th.AssertNoMoreValues(t, p.errors, briefDelay)
	})
}

func TestClientPassesCommentsThrough(t *testing.T) {
	t.Parallel()
	runClientTest(t, streamingHandler(":hello\ndata: x\n\n"), nil, func(p clientTestParams) {
		c := th.RequireValue(t, p.events, timeout)
		assert.True(t, c.IsComment())
		assert.Equal(t, "hello", c.Data)
		assert.Equal(t, "x", th.RequireValue(t, p.events, timeout).Data)
	})
}

func TestClientRequestProperties(t *testing.T) {
	t.Parallel()

	t.Run("default GET headers", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(streamingHandler(""))
		runClientTest(t, handler, func(b *ClientBuilder) {
			b.Header("Authorization", "sdk-key").Body("ignored for GET")
		}, func(p clientTestParams) {
			r := th.RequireValue(t, requests, timeout)
			assert.Equal(t, http.MethodGet, r.Request.Method)
			assert.Equal(t, "/stream", r.Request.URL.Path)
			assert.Equal(t, "text/event-stream", r.Request.Header.Get("Accept"))
			assert.Equal(t, "no-cache", r.Request.Header.Get("Cache-Control"))
			assert.Equal(t, "sdk-key", r.Request.Header.Get("Authorization"))
			assert.Equal(t, "", r.Request.Header.Get("Last-Event-ID"))
			assert.Len(t, r.Body, 0)
		})
	})

	for _, method := range []string{ReportMethod, http.MethodPost} {
		t.Run(method+" sends body with default content type", func(t *testing.T) {
			handler, requests := httphelpers.RecordingHandler(streamingHandler(""))
			runClientTest(t, handler, func(b *ClientBuilder) {
				b.Method(method).Body("context-json")
			}, func(p clientTestParams) {
				r := th.RequireValue(t, requests, timeout)
				assert.Equal(t, method, r.Request.Method)
				assert.Equal(t, "context-json", string(r.Body))
				assert.Equal(t, "text/plain", r.Request.Header.Get("Content-Type"))
			})
		})
	}

	t.Run("explicit content type is kept", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(streamingHandler(""))
		runClientTest(t, handler, func(b *ClientBuilder) {
			b.Method(ReportMethod).Body("{}").Header("Content-Type", "application/json")
		}, func(p clientTestParams) {
			r := th.RequireValue(t, requests, timeout)
			assert.Equal(t, "application/json", r.Request.Header.Get("Content-Type"))
		})
	})

	t.Run("initial last event ID", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(streamingHandler(""))
		runClientTest(t, handler, func(b *ClientBuilder) {
			b.LastEventID("abc")
		}, func(p clientTestParams) {
			r := th.RequireValue(t, requests, timeout)
			assert.Equal(t, "abc", r.Request.Header.Get("Last-Event-ID"))
		})
	})
}

func TestClientReconnectsAfterNormalClose(t *testing.T) {
	t.Parallel()
	handler, requests := httphelpers.RecordingHandler(httphelpers.SequentialHandler(
		closingHandler("id: 7\ndata: first\n\n"),
		streamingHandler("data: second\n\n"),
	))
	runClientTest(t, handler, nil, func(p clientTestParams) {
		assert.Equal(t, "first", th.RequireValue(t, p.events, timeout).Data)

		retry := th.RequireValue(t, p.retries, timeout)
		assert.Equal(t, ErrConnectionClosed, retry.cause)

		e := th.RequireValue(t, p.events, timeout)
		assert.Equal(t, "second", e.Data)
		assert.Equal(t, "7", e.ID.StringValue())

		first := th.RequireValue(t, requests, timeout)
		second := th.RequireValue(t, requests, timeout)
		assert.Equal(t, "", first.Request.Header.Get("Last-Event-ID"))
		assert.Equal(t, "7", second.Request.Header.Get("Last-Event-ID"))
		th.AssertNoMoreValues(t, p.errors, briefDelay)
	})
}

func TestClientPartialEventIsDiscardedOnReconnect(t *testing.T) {
	t.Parallel()
	handler := httphelpers.SequentialHandler(
		closingHandler("data: incomplete"),
		streamingHandler("data: complete\n\n"),
	)
	runClientTest(t, handler, nil, func(p clientTestParams) {
		assert.Equal(t, "complete", th.RequireValue(t, p.events, timeout).Data)
	})
}

func TestClientStatusClassification(t *testing.T) {
	t.Parallel()

	for _, status := range []int{400, 408, 429, 500, 502, 503} {
		t.Run("recoverable status", func(t *testing.T) {
			handler := httphelpers.SequentialHandler(
				httphelpers.HandlerWithStatus(status),
				streamingHandler("data: ok\n\n"),
			)
			runClientTest(t, handler, nil, func(p clientTestParams) {
				retry := th.RequireValue(t, p.retries, timeout)
				assert.Equal(t, BadStatusError{StatusCode: status}, retry.cause)
				assert.Equal(t, "ok", th.RequireValue(t, p.events, timeout).Data)
				th.AssertNoMoreValues(t, p.errors, briefDelay)
			})
		})
	}

	for _, status := range []int{401, 403, 404, 405} {
		t.Run("unrecoverable status", func(t *testing.T) {
			handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(status))
			runClientTest(t, handler, nil, func(p clientTestParams) {
				err := th.RequireValue(t, p.errors, timeout)
				assert.Equal(t, UnrecoverableClientError{StatusCode: status}, err)
				th.RequireValue(t, requests, timeout)
				th.AssertNoMoreValues(t, requests, briefDelay*2)
				th.AssertNoMoreValues(t, p.retries, briefDelay)
			})
		})
	}

	t.Run("204 is unrecoverable", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(204))
		runClientTest(t, handler, nil, func(p clientTestParams) {
			assert.Equal(t, UnrecoverableClientError{StatusCode: 204}, th.RequireValue(t, p.errors, timeout))
			th.RequireValue(t, requests, timeout)
			th.AssertNoMoreValues(t, requests, briefDelay*2)
		})
	})

	t.Run("unrecoverable error can be followed by an explicit reconnect", func(t *testing.T) {
		handler := httphelpers.SequentialHandler(
			httphelpers.HandlerWithStatus(401),
			streamingHandler("data: ok\n\n"),
		)
		runClientTest(t, handler, nil, func(p clientTestParams) {
			th.RequireValue(t, p.errors, timeout)
			p.client.AsyncConnect()
			assert.Equal(t, "ok", th.RequireValue(t, p.events, timeout).Data)
		})
	})
}

func TestClientRedirects(t *testing.T) {
	t.Parallel()

	for _, status := range []int{301, 307} {
		t.Run("followed without backoff", func(t *testing.T) {
			mux := http.NewServeMux()
			mux.Handle("/stream", redirectHandler(status, "/elsewhere"))
			mux.Handle("/elsewhere", streamingHandler("data: moved\n\n"))
			handler, requests := httphelpers.RecordingHandler(mux)
			runClientTest(t, handler, nil, func(p clientTestParams) {
				assert.Equal(t, "moved", th.RequireValue(t, p.events, timeout).Data)
				assert.Equal(t, "/stream", th.RequireValue(t, requests, timeout).Request.URL.Path)
				assert.Equal(t, "/elsewhere", th.RequireValue(t, requests, timeout).Request.URL.Path)
				th.AssertNoMoreValues(t, p.retries, briefDelay)
				th.AssertNoMoreValues(t, p.errors, briefDelay)
			})
		})
	}

	t.Run("redirect chains have no limit", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.Handle("/stream", redirectHandler(301, "/r1"))
		for i, next := range []string{"/r2", "/r3", "/r4", "/r5", "/r6", "/r7", "/r8", "/r9", "/r10", "/r11", "/end"} {
			mux.Handle("/r"+strconv.Itoa(i+1), redirectHandler(307, next))
		}
		mux.Handle("/end", streamingHandler("data: done\n\n"))
		runClientTest(t, mux, nil, func(p clientTestParams) {
			assert.Equal(t, "done", th.RequireValue(t, p.events, timeout).Data)
		})
	})

	t.Run("other redirect statuses are not followed", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(redirectHandler(302, "/elsewhere"))
		runClientTest(t, handler, nil, func(p clientTestParams) {
			err := th.RequireValue(t, p.errors, timeout)
			assert.Equal(t, NotRedirectableError{StatusCode: 302, Location: "/elsewhere"}, err)
			th.RequireValue(t, requests, timeout)
			th.AssertNoMoreValues(t, requests, briefDelay*2)
		})
	})

	t.Run("missing location", func(t *testing.T) {
		runClientTest(t, redirectHandler(301, ""), nil, func(p clientTestParams) {
			assert.Equal(t, NotRedirectableError{StatusCode: 301}, th.RequireValue(t, p.errors, timeout))
		})
	})

	t.Run("unparseable location", func(t *testing.T) {
		runClientTest(t, redirectHandler(307, "http://[::1"), nil, func(p clientTestParams) {
			assert.Equal(t, NotRedirectableError{StatusCode: 307, Location: "http://[::1"},
				th.RequireValue(t, p.errors, timeout))
		})
	})
}

func TestClientReadTimeout(t *testing.T) {
	t.Parallel()
	handler := httphelpers.SequentialHandler(
		streamingHandler(""),
		streamingHandler("data: after\n\n"),
	)
	runClientTest(t, handler, func(b *ClientBuilder) {
		b.ReadTimeout(briefDelay * 2)
	}, func(p clientTestParams) {
		err := th.RequireValue(t, p.errors, timeout)
		assert.Equal(t, ReadTimeoutError{Timeout: briefDelay * 2}, err)
		retry := th.RequireValue(t, p.retries, timeout)
		assert.Equal(t, err, retry.cause)
		assert.Equal(t, "after", th.RequireValue(t, p.events, timeout).Data)
	})
}

func TestClientWarnsAboutUnexpectedContentType(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("data: x\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	runClientTest(t, handler, nil, func(p clientTestParams) {
		assert.Equal(t, "x", th.RequireValue(t, p.events, timeout).Data)
		p.mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Unexpected Content-Type.*application/json")
	})
}

func TestClientRestart(t *testing.T) {
	t.Parallel()
	handler, requests := httphelpers.RecordingHandler(httphelpers.SequentialHandler(
		streamingHandler("data: one\n\n"),
		streamingHandler("data: two\n\n"),
	))
	runClientTest(t, handler, nil, func(p clientTestParams) {
		assert.Equal(t, "one", th.RequireValue(t, p.events, timeout).Data)
		p.client.AsyncRestart()
		assert.Equal(t, ErrRestartRequested, th.RequireValue(t, p.retries, timeout).cause)
		assert.Equal(t, "two", th.RequireValue(t, p.events, timeout).Data)
		th.RequireValue(t, requests, timeout)
		th.RequireValue(t, requests, timeout)
	})
}

func TestClientBackoffKeepsGrowingAfterBriefConnection(t *testing.T) {
	t.Parallel()
	handler := httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithStatus(503),
		closingHandler("data: brief\n\n"),
		streamingHandler(""),
	)
	runClientTest(t, handler, func(b *ClientBuilder) {
		b.Backoff(NewBackoffWithOptions(time.Millisecond, time.Second, 0, time.Hour, nil))
	}, func(p clientTestParams) {
		assert.Equal(t, time.Millisecond*2, th.RequireValue(t, p.retries, timeout).delay)
		assert.Equal(t, time.Millisecond*4, th.RequireValue(t, p.retries, timeout).delay)
		assert.Equal(t, time.Millisecond*8, th.RequireValue(t, p.retries, timeout).delay)
	})
}

func TestClientShutdown(t *testing.T) {
	t.Parallel()

	t.Run("interrupts an open stream promptly", func(t *testing.T) {
		httphelpers.WithServer(tickingHandler(), func(server *httptest.Server) {
			r := reactor.New()
			defer r.Close()
			connected := make(chan struct{}, 1)
			events := make(chan Event, 10000)
			client, err := NewClientBuilder(server.URL).
				Connected(func() { connected <- struct{}{} }).
				Receiver(func(e Event) { events <- e }).
				Build(r)
			require.NoError(t, err)
			client.AsyncConnect()
			th.RequireValue(t, connected, timeout)

			th.RequireValue(t, events, timeout)

			done := make(chan struct{})
			client.AsyncShutdown(func() { close(done) })
			th.AssertChannelClosed(t, done, timeout)

			for len(events) > 0 {
				<-events
			}
			th.AssertNoMoreValues(t, events, briefDelay)
		})
	})

	t.Run("before connect", func(t *testing.T) {
		r := reactor.New()
		defer r.Close()
		client, err := NewClientBuilder("http://localhost:1/stream").Build(r)
		require.NoError(t, err)
		done := make(chan struct{})
		client.AsyncShutdown(func() { close(done) })
		th.AssertChannelClosed(t, done, timeout)

		client.AsyncConnect()
		var state connectionState
		r.Sync(func() { state = client.state })
		assert.Equal(t, stateShutdown, state)
	})

	t.Run("repeated and concurrent calls each complete", func(t *testing.T) {
		httphelpers.WithServer(streamingHandler(""), func(server *httptest.Server) {
			r := reactor.New()
			defer r.Close()
			client, err := NewClientBuilder(server.URL).Build(r)
			require.NoError(t, err)
			client.AsyncConnect()

			var wg sync.WaitGroup
			completions := make(chan struct{}, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					client.AsyncShutdown(func() { completions <- struct{}{} })
				}()
			}
			wg.Wait()
			for i := 0; i < 20; i++ {
				th.RequireValue(t, completions, timeout)
			}
		})
	})

	t.Run("cancels pending backoff", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(503))
		httphelpers.WithServer(handler, func(server *httptest.Server) {
			r := reactor.New()
			defer r.Close()
			retrying := make(chan struct{}, 10)
			client, err := NewClientBuilder(server.URL).
				InitialReconnectDelay(briefDelay * 2).
				Retrying(func(error, time.Duration) { retrying <- struct{}{} }).
				Build(r)
			require.NoError(t, err)
			client.AsyncConnect()
			th.RequireValue(t, retrying, timeout)
			th.RequireValue(t, requests, timeout)

			done := make(chan struct{})
			client.AsyncShutdown(func() { close(done) })
			th.AssertChannelClosed(t, done, timeout)
			th.AssertNoMoreValues(t, requests, briefDelay*4)
		})
	})

	t.Run("after reactor is closed", func(t *testing.T) {
		r := reactor.New()
		client, err := NewClientBuilder("http://localhost:1/stream").Build(r)
		require.NoError(t, err)
		r.Close()
		done := make(chan struct{})
		client.AsyncShutdown(func() { close(done) })
		th.AssertChannelClosed(t, done, timeout)
	})
}

func TestClientBuilderRejectsBadURL(t *testing.T) {
	r := reactor.New()
	defer r.Close()
	_, err := NewClientBuilder("::not a url").Build(r)
	assert.Error(t, err)
	_, err = NewClientBuilder("ftp://example").Build(r)
	assert.Error(t, err)
}
