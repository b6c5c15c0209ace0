package datasource

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-server-sdk-datasync/interfaces"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-datasync/internal/sharedtest/mocks"
	"github.com/launchdarkly/go-server-sdk-datasync/subsystems"
	"github.com/launchdarkly/go-server-sdk-datasync/testhelpers/ldservices"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	briefDelay                     = time.Millisecond * 50
	streamProcessorTestHeaderName  = "my-header"
	streamProcessorTestHeaderValue = "my-value"
)

type streamingTestParams struct {
	dest     *mocks.MockDataDestination
	sp       *StreamProcessor
	stream   httphelpers.SSEStreamControl
	requests <-chan httphelpers.HTTPRequestInfo
	mockLog  *ldlogtest.MockLog
}

func runStreamingTest(
	t *testing.T,
	initialData *ldservices.ServerSDKData,
	test func(streamingTestParams),
) {
	runStreamingTestWithConfig(t, initialData, StreamConfig{}, test)
}

func runStreamingTestWithConfig(
	t *testing.T,
	initialData *ldservices.ServerSDKData,
	cfg StreamConfig,
	test func(streamingTestParams),
) {
	streamHandler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())

	// A second handler lets the data source reconnect if a test ends the first stream.
	extraStreamHandler, extraStream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
	defer extraStream.Close()
	defer stream.Close()

	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.SequentialHandler(streamHandler, extraStreamHandler),
	)

	headers := make(http.Header)
	headers.Set(streamProcessorTestHeaderName, streamProcessorTestHeaderValue)
	context, mockLog := clientContextWithMockLog(headers)

	httphelpers.WithServer(handler, func(streamServer *httptest.Server) {
		withMockDataDestination(func(dest *mocks.MockDataDestination) {
			cfg.URI = streamServer.URL
			if cfg.InitialReconnectDelay == 0 {
				cfg.InitialReconnectDelay = briefDelay
			}
			sp := NewStreamProcessor(context, dest, dest, cfg)
			defer sp.Close()

			closeWhenReady := make(chan struct{})
			sp.Start(closeWhenReady)

			select {
			case <-closeWhenReady:
			case <-time.After(time.Second):
				assert.Fail(t, "start timeout")
				return
			}

			test(streamingTestParams{dest, sp, stream, requestsCh, mockLog})
		})
	})
}

func TestStreamProcessor(t *testing.T) {
	t.Parallel()
	initialData := ldservices.NewServerSDKData().
		Flags(ldservices.KeyAndVersionItem("my-flag", 2)).
		Segments(ldservices.KeyAndVersionItem("my-segment", 2))
	timeout := 3 * time.Second

	t.Run("configured headers are passed in request", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			r := <-p.requests
			assert.Equal(t, streamProcessorTestHeaderValue, r.Request.Header.Get(streamProcessorTestHeaderName))
			assert.Equal(t, "GET", r.Request.Method)
			assert.Equal(t, "/all", r.Request.URL.Path)
			assert.Equal(t, "", r.Request.URL.RawQuery)
		})
	})

	t.Run("payload filter is passed as query parameter", func(t *testing.T) {
		runStreamingTestWithConfig(t, initialData, StreamConfig{FilterKey: "microservice-1"}, func(p streamingTestParams) {
			r := <-p.requests
			assert.Equal(t, "microservice-1", r.Request.URL.Query().Get("filter"))
		})
	})

	t.Run("initial put", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.dest.DataStore.WaitForInit(t, initialData, timeout)
			assert.True(t, p.sp.IsInitialized())
			p.dest.RequireStatusOf(t, interfaces.DataSourceStateValid)
			p.mockLog.AssertMessageMatch(t, true, ldlog.Info, "Connecting to LaunchDarkly stream")
			p.mockLog.AssertMessageMatch(t, true, ldlog.Info, "LaunchDarkly streaming is active")
		})
	})

	t.Run("patch flag", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.stream.Send(httphelpers.SSEEvent{Event: patchEvent,
				Data: `{"path": "/flags/my-flag", "data": {"key": "my-flag", "version": 3}}`})

			p.dest.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 3, timeout)
		})
	})

	t.Run("delete flag", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.stream.Send(httphelpers.SSEEvent{Event: deleteEvent,
				Data: `{"path": "/flags/my-flag", "version": 4}`})

			p.dest.DataStore.WaitForDelete(t, datakinds.Features, "my-flag", 4, timeout)
		})
	})

	t.Run("patch segment", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.stream.Send(ldservices.NewPatchEvent("/segments/my-segment", ldservices.KeyAndVersionItem("my-segment", 7)))

			p.dest.DataStore.WaitForUpsert(t, datakinds.Segments, "my-segment", 7, timeout)
		})
	})

	t.Run("delete segment", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.stream.Send(ldservices.NewDeleteEvent("/segments/my-segment", 8))

			p.dest.DataStore.WaitForDelete(t, datakinds.Segments, "my-segment", 8, timeout)
		})
	})

	t.Run("stale patch is passed on and discarded by the store", func(t *testing.T) {
		runStreamingTest(t, initialData, func(p streamingTestParams) {
			p.dest.DataStore.WaitForInit(t, initialData, timeout)
			p.stream.Send(ldservices.NewPatchEvent("/flags/my-flag", ldservices.KeyAndVersionItem("my-flag", 1)))
			p.dest.DataStore.WaitForUpsert(t, datakinds.Features, "my-flag", 1, timeout)

			item, err := p.dest.DataStore.Get(datakinds.Features, "my-flag")
			require.NoError(t, err)
			assert.Equal(t, 2, item.Version)
		})
	})
}

func TestStreamProcessorRecoverableErrorsCauseStreamRestart(t *testing.T) {
	t.Parallel()

	expectRestart := func(t *testing.T, p streamingTestParams) {
		<-p.requests // initial request
		select {
		case <-p.requests:
		case <-time.After(time.Millisecond * 500):
			assert.Fail(t, "expected stream restart, did not see one")
			return
		}
		p.dest.RequireStatusOf(t, interfaces.DataSourceStateValid)       // the initial connection
		p.dest.RequireStatusOf(t, interfaces.DataSourceStateInterrupted) // the error
		p.dest.RequireStatusOf(t, interfaces.DataSourceStateValid)       // the restarted connection
	}

	for _, status := range []int{400, 408, 429, 500, 503} {
		t.Run(fmt.Sprintf("HTTP status %d", status), func(t *testing.T) {
			testStreamProcessorRecoverableHTTPError(t, status)
		})
	}

	t.Run("dropped connection", func(t *testing.T) {
		runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
			p.stream.EndAll()
			expectRestart(t, p)
			p.mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Error in stream connection \\(will retry\\)")
		})
	})

	malformedEvents := map[string]httphelpers.SSEEvent{
		"put with malformed JSON": {Event: putEvent, Data: `{"path": "/", "data": }"`},
		"put with well-formed JSON but malformed data model item": {Event: putEvent,
			Data: `{"path": "/", "data": {"flags": {"flagkey": {"key": [], "version": true}}, "segments": {}}}`},
		"patch with omitted path":  {Event: patchEvent, Data: `{"data": {"key": "flagkey"}}`},
		"patch with malformed JSON": {Event: patchEvent, Data: `{"path":"/flags/flagkey"`},
		"patch with well-formed JSON but malformed data model item": {Event: patchEvent,
			Data: `{"path":"/flags/flagkey", "data": {"key": [], "version": true}}`},
		"delete with omitted path":   {Event: deleteEvent, Data: `{"version": 8}`},
		"delete with malformed JSON": {Event: deleteEvent, Data: `{"path":"/flags/flagkey"`},
	}
	for name, event := range malformedEvents {
		t.Run(name, func(t *testing.T) {
			runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
				p.stream.Send(event)
				<-p.requests
				th.RequireValue(t, p.requests, time.Millisecond*500, "expected stream restart")
				p.dest.RequireStatusOf(t, interfaces.DataSourceStateValid)
				status := p.dest.RequireStatusOf(t, interfaces.DataSourceStateInterrupted)
				assert.Equal(t, interfaces.DataSourceErrorKindInvalidData, status.LastError.Kind)
				p.mockLog.AssertMessageMatch(t, true, ldlog.Error, "malformed JSON data.*will restart")
			})
		})
	}
}

func TestStreamProcessorUnrecoverableErrorsCauseStreamShutdown(t *testing.T) {
	for _, status := range []int{204, 401, 403, 404} {
		t.Run(fmt.Sprintf("HTTP status %d", status), func(t *testing.T) {
			testStreamProcessorUnrecoverableHTTPError(t, status)
		})
	}
}

func TestStreamProcessorUnrecognizedDataIsIgnored(t *testing.T) {
	t.Parallel()

	expectNoRestart := func(t *testing.T, p streamingTestParams) {
		<-p.requests // initial request
		th.AssertNoMoreValues(t, p.requests, time.Millisecond*100, "stream restarted unexpectedly")
		assert.Len(t, p.mockLog.GetOutput(ldlog.Error), 0)

		p.dest.RequireStatusOf(t, interfaces.DataSourceStateValid)
		th.AssertNoMoreValues(t, p.dest.Statuses, time.Millisecond*100, "unexpected data source status change")
	}

	t.Run("patch with unrecognized path", func(t *testing.T) {
		runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
			p.stream.Send(httphelpers.SSEEvent{Event: patchEvent,
				Data: `{"path": "/wrong", "data": {"key": "flagkey"}}`})
			expectNoRestart(t, p)
		})
	})

	t.Run("delete with unrecognized path", func(t *testing.T) {
		runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
			p.stream.Send(httphelpers.SSEEvent{Event: deleteEvent,
				Data: `{"path": "/wrong", "version": 8}`})
			expectNoRestart(t, p)
		})
	})

	t.Run("unknown message type", func(t *testing.T) {
		runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
			p.stream.Send(httphelpers.SSEEvent{Event: "weird-event", Data: `x`})
			expectNoRestart(t, p)
			p.mockLog.AssertMessageMatch(t, true, ldlog.Info, "Unexpected event found in stream: weird-event")
		})
	})
}

func TestStreamProcessorStoreUpdateFailureCausesRestart(t *testing.T) {
	fakeError := errors.New("sorry")

	for name, event := range map[string]httphelpers.SSEEvent{
		"Init fails on put":      ldservices.NewServerSDKData().ToPutEvent(),
		"Upsert fails on patch":  ldservices.NewPatchEvent("/flags/my-flag", ldservices.KeyAndVersionItem("my-flag", 3)),
		"Upsert fails on delete": ldservices.NewDeleteEvent("/flags/my-flag", 4),
	} {
		t.Run(name, func(t *testing.T) {
			runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
				<-p.requests // initial request
				p.dest.DataStore.SetFakeError(fakeError)

				p.stream.Send(event)

				th.RequireValue(t, p.requests, time.Millisecond*500, "expected stream restart")
				p.mockLog.AssertMessageMatch(t, true, ldlog.Error, "Failed to store.*will restart stream until successful")
			})
		})
	}
}

func TestStreamProcessorIgnoresComments(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(":heartbeat\n\nevent: put\ndata: {\"path\":\"/\",\"data\":{\"flags\":{},\"segments\":{}}}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	context, mockLog := clientContextWithMockLog(nil)

	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		withMockDataDestination(func(dest *mocks.MockDataDestination) {
			sp := NewStreamProcessor(context, dest, dest, StreamConfig{URI: ts.URL, InitialReconnectDelay: briefDelay})
			defer sp.Close()

			closeWhenReady := make(chan struct{})
			sp.Start(closeWhenReady)
			waitForReadyWithTimeout(t, closeWhenReady, time.Second)

			assert.True(t, sp.IsInitialized())
			p := dest.RequireStatusOf(t, interfaces.DataSourceStateValid)
			assert.Equal(t, interfaces.DataSourceErrorInfo{}, p.LastError)
			mockLog.AssertMessageMatch(t, true, ldlog.Debug, "Received stream comment: heartbeat")
			assert.Len(t, mockLog.GetOutput(ldlog.Info), 2) // connecting, then active
		})
	})
}

func TestStreamProcessorWithInvalidBaseURI(t *testing.T) {
	withMockDataDestination(func(dest *mocks.MockDataDestination) {
		context, mockLog := clientContextWithMockLog(nil)
		sp := NewStreamProcessor(context, dest, dest, StreamConfig{URI: "ftp://example"})
		defer sp.Close()

		closeWhenReady := make(chan struct{})
		sp.Start(closeWhenReady)
		waitForReadyWithTimeout(t, closeWhenReady, time.Second)

		assert.False(t, sp.IsInitialized())
		status := dest.RequireStatusOf(t, interfaces.DataSourceStateOff)
		assert.Equal(t, interfaces.DataSourceErrorKindUnknown, status.LastError.Kind)
		mockLog.AssertMessageMatch(t, true, ldlog.Error, "Unable to create a stream request")
	})
}

func TestStreamProcessorShutdown(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		withMockDataDestination(func(dest *mocks.MockDataDestination) {
			sp := NewStreamProcessor(basicClientContext(), dest, dest, StreamConfig{URI: "http://localhost"})
			done := make(chan struct{})
			sp.ShutdownAsync(func() { close(done) })
			th.AssertChannelClosed(t, done, time.Second)
			dest.RequireStatusOf(t, interfaces.DataSourceStateOff)

			// a closed data source never connects
			closeWhenReady := make(chan struct{})
			sp.Start(closeWhenReady)
			assert.Nil(t, sp.client)
		})
	})

	t.Run("concurrent calls all complete", func(t *testing.T) {
		runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
			var wg sync.WaitGroup
			completions := make(chan struct{}, 10)
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					p.sp.ShutdownAsync(func() { completions <- struct{}{} })
				}()
			}
			wg.Wait()
			for i := 0; i < 5; i++ {
				th.RequireValue(t, completions, time.Second, "missing shutdown completion")
			}
			th.AssertNoMoreValues(t, completions, time.Millisecond*50)
		})
	})

	t.Run("no reconnect after close", func(t *testing.T) {
		runStreamingTest(t, ldservices.NewServerSDKData(), func(p streamingTestParams) {
			<-p.requests
			require.NoError(t, p.sp.Close())
			p.stream.EndAll()
			th.AssertNoMoreValues(t, p.requests, briefDelay*4, "stream reconnected after close")
		})
	})
}

func TestStreamProcessorIdentity(t *testing.T) {
	sp := NewStreamProcessor(basicClientContext(), nil, nil, StreamConfig{})
	assert.Equal(t, "streaming data source", sp.Identity())
	assert.Equal(t, DefaultStreamInitialReconnectDelay, sp.GetInitialReconnectDelay())
}

func testStreamProcessorUnrecoverableHTTPError(t *testing.T, statusCode int) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(statusCode), func(ts *httptest.Server) {
		withMockDataDestination(func(dest *mocks.MockDataDestination) {
			context, mockLog := clientContextWithMockLog(nil)
			sp := NewStreamProcessor(context, dest, dest, StreamConfig{URI: ts.URL, InitialReconnectDelay: briefDelay})
			defer sp.Close()

			closeWhenReady := make(chan struct{})
			sp.Start(closeWhenReady)

			select {
			case <-closeWhenReady:
				assert.False(t, sp.IsInitialized())
			case <-time.After(time.Second * 3):
				assert.Fail(t, "Initialization shouldn't block after this error")
			}

			status := dest.RequireStatusOf(t, interfaces.DataSourceStateOff)
			assert.Equal(t, interfaces.DataSourceErrorKindErrorResponse, status.LastError.Kind)
			assert.Equal(t, statusCode, status.LastError.StatusCode)
			mockLog.AssertMessageMatch(t, true, ldlog.Error, "giving up permanently")
		})
	})
}

func testStreamProcessorRecoverableHTTPError(t *testing.T, statusCode int) {
	initialData := ldservices.NewServerSDKData().Flags(ldservices.KeyAndVersionItem("my-flag", 2))
	streamHandler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
	defer stream.Close()
	sequentialHandler := httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(statusCode), // fails the first time
		streamHandler, // then gets a valid stream
	)
	httphelpers.WithServer(sequentialHandler, func(ts *httptest.Server) {
		withMockDataDestination(func(dest *mocks.MockDataDestination) {
			context, mockLog := clientContextWithMockLog(nil)
			sp := NewStreamProcessor(context, dest, dest, StreamConfig{URI: ts.URL, InitialReconnectDelay: briefDelay})
			defer sp.Close()

			closeWhenReady := make(chan struct{})
			sp.Start(closeWhenReady)

			select {
			case <-closeWhenReady:
				assert.True(t, sp.IsInitialized())
			case <-time.After(time.Second * 3):
				assert.Fail(t, "Should have successfully retried before now")
			}

			// The data source reports Interrupted; a status manager would turn that into Initializing
			// since it has not yet been initialized.
			status1 := dest.RequireStatusOf(t, interfaces.DataSourceStateInterrupted)
			assert.Equal(t, interfaces.DataSourceErrorKindErrorResponse, status1.LastError.Kind)
			assert.Equal(t, statusCode, status1.LastError.StatusCode)
			_ = dest.RequireStatusOf(t, interfaces.DataSourceStateValid)
			mockLog.AssertMessageMatch(t, true, ldlog.Warn, fmt.Sprintf("HTTP error %d", statusCode))
		})
	})
}

func TestStreamProcessorUsesHTTPClientFactory(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(401))

	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		withMockDataDestination(func(dest *mocks.MockDataDestination) {
			context := subsystems.BasicClientContext{
				HTTP:    subsystems.HTTPConfiguration{CreateHTTPClient: urlAppendingHTTPClientFactory("/transformed")},
				Logging: basicClientContext().GetLogging(),
			}

			sp := NewStreamProcessor(context, dest, dest, StreamConfig{URI: ts.URL, InitialReconnectDelay: briefDelay})
			defer sp.Close()
			closeWhenReady := make(chan struct{})
			sp.Start(closeWhenReady)

			r := <-requestsCh

			assert.Equal(t, "/all/transformed", r.Request.URL.Path)
		})
	})
}
