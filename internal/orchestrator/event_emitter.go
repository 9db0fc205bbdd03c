package orchestrator

import (
	"log"
	"sync/atomic"
)

// EventEmitter delivers events to a single subscriber without ever blocking
// the analysis. Events that do not fit in the buffer are dropped and counted.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event if there is room in the buffer. Safe on a nil emitter.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}

	select {
	case e.events <- event:
	default:
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[heavy] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Call it only after every Analyze using
// this emitter has returned.
func (e *EventEmitter) Close() {
	close(e.events)
}
