package pipeline

import "time"

// EventType classifies progress events
type EventType string

const (
	EventDayStarted  EventType = "day_started"
	EventFileDone    EventType = "file_done"
	EventProductDone EventType = "product_done"
	EventDayDone     EventType = "day_done"
	EventRangeDone   EventType = "range_done"
)

// Event is a progress notification for live listeners
type Event struct {
	Type    EventType `json:"type"`
	Date    string    `json:"date,omitempty"`
	Product string    `json:"product,omitempty"`
	Source  string    `json:"source,omitempty"`
	Status  string    `json:"status,omitempty"`
	Error   string    `json:"error,omitempty"`
	Done    int       `json:"done,omitempty"`
	Total   int       `json:"total,omitempty"`
	Time    time.Time `json:"time"`
}

// EventSink receives progress events; Publish must not block
type EventSink interface {
	Publish(e Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
