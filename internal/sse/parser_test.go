package sse

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(chunks ...string) []Event {
	var events []Event
	p := NewParser(func(e Event) { events = append(events, e) })
	for _, c := range chunks {
		p.Put([]byte(c))
	}
	return events
}

func msg(data string) Event {
	return Event{Type: DefaultEventType, Data: data}
}

func TestParserDispatchesSimpleEvent(t *testing.T) {
	events := collect("event: put\ndata: {}\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: "put", Data: "{}"}, events[0])
}

func TestParserJoinsChunksAcrossBoundaries(t *testing.T) {
	assert.Equal(t, []Event{msg("hello")}, collect("data: hel", "lo\n\n"))

	whole := "event: patch\ndata: line1\ndata: line2\nid: 7\n\n"
	expected := []Event{{Type: "patch", Data: "line1\nline2", ID: ldvalue.NewOptionalString("7")}}
	for split := 0; split <= len(whole); split++ {
		assert.Equal(t, expected, collect(whole[:split], whole[split:]), "split at %d", split)
	}

	var bytewise []string
	for _, b := range whole {
		bytewise = append(bytewise, string(b))
	}
	assert.Equal(t, expected, collect(bytewise...))
}

func TestParserLineTerminators(t *testing.T) {
	for name, input := range map[string]string{
		"LF":   "data: a\n\ndata: b\n\n",
		"CRLF": "data: a\r\n\r\ndata: b\r\n\r\n",
		"CR":   "data: a\r\rdata: b\r\r",
		"mix":  "data: a\r\n\ndata: b\r\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []Event{msg("a"), msg("b")}, collect(input))
		})
	}

	t.Run("CRLF split between chunks is one terminator", func(t *testing.T) {
		assert.Equal(t, []Event{msg("a")}, collect("data: a\r", "\n", "\r", "\n"))
	})
}

func TestParserBlankLineWithoutFieldsDispatchesNothing(t *testing.T) {
	assert.Len(t, collect("\n\n\r\n\n"), 0)
}

func TestParserComments(t *testing.T) {
	t.Run("comment dispatched immediately with leading space kept", func(t *testing.T) {
		events := collect(": hello")
		assert.Len(t, events, 0)
		events = collect(": hello\n")
		assert.Equal(t, []Event{{Type: CommentEventType, Data: " hello"}}, events)
	})

	t.Run("comment does not disturb pending event", func(t *testing.T) {
		events := collect("data: a\n:keepalive\ndata: b\n\n")
		require.Len(t, events, 2)
		assert.True(t, events[0].IsComment())
		assert.Equal(t, "keepalive", events[0].Data)
		assert.Equal(t, msg("a\nb"), events[1])
	})
}

func TestParserFieldParsing(t *testing.T) {
	t.Run("only one leading space is stripped", func(t *testing.T) {
		assert.Equal(t, []Event{msg("  x")}, collect("data:   x\n\n"))
	})

	t.Run("no space after colon", func(t *testing.T) {
		assert.Equal(t, []Event{msg("x")}, collect("data:x\n\n"))
	})

	t.Run("field without colon has empty value", func(t *testing.T) {
		assert.Equal(t, []Event{msg("")}, collect("data\n\n"))
		assert.Equal(t, []Event{msg("\n")}, collect("data\ndata\n\n"))
	})

	t.Run("value may contain colons", func(t *testing.T) {
		assert.Equal(t, []Event{msg(`{"a":1}`)}, collect(`data: {"a":1}`+"\n\n"))
	})

	t.Run("event type resets after dispatch", func(t *testing.T) {
		assert.Equal(t, []Event{{Type: "put", Data: "1"}, msg("2")},
			collect("event: put\ndata: 1\n\ndata: 2\n\n"))
	})

	t.Run("empty event type means message", func(t *testing.T) {
		assert.Equal(t, []Event{msg("1")}, collect("event:\ndata: 1\n\n"))
	})

	t.Run("retry and unknown fields are ignored but still start an event", func(t *testing.T) {
		assert.Equal(t, []Event{msg("")}, collect("retry: 1000\nfoo: bar\n\n"))
	})
}

func TestParserEventIDs(t *testing.T) {
	t.Run("id carries forward", func(t *testing.T) {
		events := collect("id: 1\ndata: a\n\n", "data: b\n\n")
		require.Len(t, events, 2)
		assert.Equal(t, ldvalue.NewOptionalString("1"), events[0].ID)
		assert.Equal(t, ldvalue.NewOptionalString("1"), events[1].ID)
	})

	t.Run("id can be overwritten", func(t *testing.T) {
		events := collect("id: 1\ndata: a\n\nid: 2\ndata: b\n\ndata: c\n\n")
		require.Len(t, events, 3)
		assert.Equal(t, "2", events[2].ID.StringValue())
	})

	t.Run("id containing NUL is rejected", func(t *testing.T) {
		events := collect("id: 1\ndata: a\n\nid: x\x00y\ndata: b\n\n")
		require.Len(t, events, 2)
		assert.Equal(t, "1", events[1].ID.StringValue())
	})

	t.Run("empty id is a defined value", func(t *testing.T) {
		events := collect("id: 1\ndata: a\n\nid\ndata: b\n\n")
		require.Len(t, events, 2)
		assert.True(t, events[1].ID.IsDefined())
		assert.Equal(t, "", events[1].ID.StringValue())
	})

	t.Run("no id means undefined", func(t *testing.T) {
		events := collect("data: a\n\n")
		assert.False(t, events[0].ID.IsDefined())
	})

	t.Run("reset keeps last event id", func(t *testing.T) {
		var events []Event
		p := NewParser(func(e Event) { events = append(events, e) })
		p.Put([]byte("id: 5\ndata: a\n\ndata: partial"))
		p.Reset()
		p.Put([]byte("data: b\n\n"))
		require.Len(t, events, 2)
		assert.Equal(t, msg("b").Data, events[1].Data)
		assert.Equal(t, "5", p.LastEventID().StringValue())
	})
}
