// Package mocks contains test doubles for the datasource package.
package mocks

import (
	"context"

	"github.com/launchdarkly/go-server-sdk-datasync/subsystems/ldstoretypes"
)

// PollingRequester is a Requester whose responses are supplied by the test through RequestAllRespCh.
// Each completed request is signaled on PollsCh.
type PollingRequester struct {
	RequestAllRespCh chan RequestAllResponse
	PollsCh          chan struct{}
	CloserCh         chan struct{}
}

// RequestAllResponse is one canned result for PollingRequester.Request.
type RequestAllResponse struct {
	Data   []ldstoretypes.Collection
	Cached bool
	Err    error
}

// NewPollingRequester creates a PollingRequester.
func NewPollingRequester() *PollingRequester {
	return &PollingRequester{
		RequestAllRespCh: make(chan RequestAllResponse, 100),
		PollsCh:          make(chan struct{}, 100),
		CloserCh:         make(chan struct{}),
	}
}

// Close makes any pending or future Request calls return immediately.
func (r *PollingRequester) Close() {
	close(r.CloserCh)
}

func (r *PollingRequester) FilterKey() string { //nolint:revive
	return ""
}

func (r *PollingRequester) BaseURI() string { //nolint:revive
	return ""
}

// Request waits for the test to supply a response, or for the context to be cancelled.
func (r *PollingRequester) Request(ctx context.Context) ([]ldstoretypes.Collection, bool, error) {
	select {
	case resp := <-r.RequestAllRespCh:
		r.PollsCh <- struct{}{}
		return resp.Data, resp.Cached, resp.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-r.CloserCh:
		return nil, false, nil
	}
}
