package schema

import (
	"time"
)

// EventType is the discriminant of an Event payload.
type EventType uint16

const (
	_eventType_beg EventType = iota
	EventTick
	EventSignal
	EventOrderRequest
	EventOrderUpdate
	EventFill
	EventPositionUpdate
	EventRiskBreach
	_eventType_end
)

var eventTypeNames = [...]string{
	EventTick:           "tick",
	EventSignal:         "signal",
	EventOrderRequest:   "order_request",
	EventOrderUpdate:    "order_update",
	EventFill:           "fill",
	EventPositionUpdate: "position_update",
	EventRiskBreach:     "risk_breach",
}

// EventTypes lists every valid event type in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, 0, int(_eventType_end)-1)
	for t := _eventType_beg + 1; t < _eventType_end; t++ {
		out = append(out, t)
	}
	return out
}

func (t EventType) IsAvailable() bool {
	return t > _eventType_beg && t < _eventType_end
}

func (t EventType) String() string {
	if !t.IsAvailable() {
		return "unknown"
	}
	return eventTypeNames[t]
}

func (t EventType) MarshalText() ([]byte, error) {
	return marshalEnum(t.IsAvailable(), t.String())
}

func (t *EventType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, eventTypeNames[:], (*uint16)(t))
}

// Payload is implemented by every type that can travel on the bus.
// The set is closed: only the payloads declared in this package satisfy it.
type Payload interface {
	EventType() EventType
	payload()
}

// Event is the envelope published on the bus. It is passed by value and
// never mutated after Publish.
type Event struct {
	Type      EventType `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// NewEvent wraps a payload, deriving the discriminant from the payload type.
func NewEvent(p Payload) Event {
	return Event{
		Type:      p.EventType(),
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

func (Tick) EventType() EventType         { return EventTick }
func (Signal) EventType() EventType       { return EventSignal }
func (OrderRequest) EventType() EventType { return EventOrderRequest }
func (OrderUpdate) EventType() EventType  { return EventOrderUpdate }
func (Fill) EventType() EventType         { return EventFill }
func (Position) EventType() EventType     { return EventPositionUpdate }
func (RiskBreach) EventType() EventType   { return EventRiskBreach }

func (Tick) payload()         {}
func (Signal) payload()       {}
func (OrderRequest) payload() {}
func (OrderUpdate) payload()  {}
func (Fill) payload()         {}
func (Position) payload()     {}
func (RiskBreach) payload()   {}
