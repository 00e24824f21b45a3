package model

type EventType string

const (
	EventNewItem EventType = "new_item"
	EventJoin    EventType = "join"
	EventLeave   EventType = "leave"
	EventError   EventType = "error"
)

// Event is the envelope pushed over live connections.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// PresencePayload accompanies join and leave events.
type PresencePayload struct {
	Count int `json:"count"`
}

// ErrorPayload accompanies error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

func NewItemEvent(item *SharedItem) Event {
	return Event{Type: EventNewItem, Payload: item}
}

func PresenceEvent(eventType EventType, count int) Event {
	return Event{Type: eventType, Payload: PresencePayload{Count: count}}
}
