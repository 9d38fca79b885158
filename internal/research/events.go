package research

import "github.com/alexwday/web-research/session"

// EventType is the closed set of lifecycle event kinds emitted while a
// turn runs.
type EventType string

const (
	EventStatus   EventType = "status"
	EventToolUse  EventType = "tool_use"
	EventStream   EventType = "stream"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventCleared  EventType = "cleared"
)

// Event is one lifecycle event. Fields are populated per type and omitted
// otherwise, so the marshaled form matches the wire protocol exactly.
type Event struct {
	Type      EventType      `json:"type"`
	Status    string         `json:"status,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Content   string         `json:"content,omitempty"`
	Data      *CompleteData  `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// CompleteData is the payload of a complete event: the finalized answer
// plus the resolved source list.
type CompleteData struct {
	Response string           `json:"response"`
	Sources  []session.Source `json:"sources"`
}

// EventSink consumes events in generation order. Emit blocks until the
// consumer has taken the event; it never drops or reorders.
type EventSink interface {
	Emit(ev Event) error
}

// EventFunc adapts a function to EventSink.
type EventFunc func(ev Event) error

func (f EventFunc) Emit(ev Event) error { return f(ev) }

func statusEvent(status string) Event {
	return Event{Type: EventStatus, Status: status}
}

func toolUseEvent(tool string, args map[string]any) Event {
	return Event{Type: EventToolUse, Tool: tool, Arguments: args}
}

func streamEvent(chunk string) Event {
	return Event{Type: EventStream, Content: chunk}
}

func completeEvent(response string, sources []session.Source) Event {
	if sources == nil {
		sources = []session.Source{}
	}
	return Event{Type: EventComplete, Data: &CompleteData{Response: response, Sources: sources}}
}

func errorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}
