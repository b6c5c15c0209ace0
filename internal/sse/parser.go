package sse

import (
	"bytes"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Parser incrementally decodes a text/event-stream body into Events.
//
// Input may be split at arbitrary byte boundaries, including between the CR and LF of a CRLF pair.
// A Parser is not safe for concurrent use.
type Parser struct {
	receive     func(Event)
	line        []byte
	afterCR     bool
	pending     *pendingEvent
	lastEventID ldvalue.OptionalString
}

type pendingEvent struct {
	eventType string
	data      strings.Builder
	id        ldvalue.OptionalString
}

// NewParser creates a Parser that calls receive for every dispatched event, in order.
func NewParser(receive func(Event)) *Parser {
	return &Parser{receive: receive}
}

// Put feeds more of the stream to the parser.
func (p *Parser) Put(chunk []byte) {
	for len(chunk) > 0 {
		if p.afterCR {
			p.afterCR = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}
		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			p.line = append(p.line, chunk...)
			return
		}
		p.line = append(p.line, chunk[:i]...)
		p.afterCR = chunk[i] == '\r'
		chunk = chunk[i+1:]
		p.parseLine(p.line)
		p.line = p.line[:0]
	}
}

// LastEventID returns the ID of the most recently dispatched event that had one.
func (p *Parser) LastEventID() ldvalue.OptionalString {
	return p.lastEventID
}

// SetLastEventID sets the ID that will be carried forward to subsequent events.
func (p *Parser) SetLastEventID(id ldvalue.OptionalString) {
	p.lastEventID = id
}

// Reset discards any partial line and undispatched event, for use when a new connection starts. The
// last event ID is kept.
func (p *Parser) Reset() {
	p.line = p.line[:0]
	p.afterCR = false
	p.pending = nil
}

func (p *Parser) parseLine(line []byte) {
	if len(line) == 0 {
		p.dispatch()
		return
	}
	if line[0] == ':' {
		p.receive(Event{Type: CommentEventType, Data: string(line[1:]), ID: p.lastEventID})
		return
	}

	var field, value []byte
	if colon := bytes.IndexByte(line, ':'); colon < 0 {
		field = line
	} else {
		field, value = line[:colon], line[colon+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}

	if p.pending == nil {
		p.pending = &pendingEvent{id: p.lastEventID}
	}
	switch string(field) {
	case "event":
		p.pending.eventType = string(value)
	case "data":
		p.pending.data.Write(value)
		p.pending.data.WriteByte('\n')
	case "id":
		if bytes.IndexByte(value, 0) < 0 {
			p.pending.id = ldvalue.NewOptionalString(string(value))
		}
	default: // "retry" and unknown fields are ignored
	}
}

func (p *Parser) dispatch() {
	if p.pending == nil {
		return
	}
	e := p.pending
	p.pending = nil

	data := strings.TrimSuffix(e.data.String(), "\n")
	eventType := e.eventType
	if eventType == "" {
		eventType = DefaultEventType
	}
	if e.id.IsDefined() {
		p.lastEventID = e.id
	}
	p.receive(Event{Type: eventType, Data: data, ID: e.id})
}
