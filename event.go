package netsim

// event.go holds the Event struct, the unit of work handed to a Simulator.
// An Event pairs a relative delay with a handler and an opaque data item.
// Events are never removed from the Simulator's queue once scheduled; a caller
// that no longer wants one to run calls Invalidate and the Simulator skips it
// when it reaches the head of the queue.

import (
	"errors"
	"fmt"
	"math"
)

// EventHandlerFunction is the signature of a function called when an Event fires.
// The Event itself is passed so the handler can reach its Data.  A non-nil
// return stops the Simulator's drive loop and is returned to the caller of Execute.
type EventHandlerFunction func(evt *Event) error

var (
	// ErrNegativeDelay is returned when an Event is created with a delay that is negative or not finite
	ErrNegativeDelay = errors.New("event delay must be non-negative and finite")

	// ErrNilHandler is returned when an Event is created without a handler
	ErrNilHandler = errors.New("event handler must not be nil")
)

// Event is something that gets scheduled in the Simulator
type Event struct {
	id      uint64               // assigned by the Simulator that created the event
	delay   float64              // seconds, relative to the time the event is scheduled
	handler EventHandlerFunction // called when the event fires
	data    any                  // passed through to the handler, may be nil
	valid   bool                 // cleared by Invalidate
	fired   bool                 // set once the handler has been called
	queued  bool                 // true while the event waits in a Simulator queue
}

// createEvent is a constructor, used by the Simulator which owns the id sequence
func createEvent(id uint64, delay float64, handler EventHandlerFunction, data any) (*Event, error) {
	if delay < 0.0 || math.IsNaN(delay) || math.IsInf(delay, 0) {
		return nil, fmt.Errorf("%w, got %v", ErrNegativeDelay, delay)
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	evt := new(Event)
	evt.id = id
	evt.delay = delay
	evt.handler = handler
	evt.data = data
	evt.valid = true
	return evt, nil
}

// ID returns the identifier the Simulator gave the event
func (evt *Event) ID() uint64 {
	return evt.id
}

// Delay returns the relative time (seconds) at which the event fires once scheduled
func (evt *Event) Delay() float64 {
	return evt.delay
}

// Data returns the data item the event was created with
func (evt *Event) Data() any {
	return evt.data
}

// IsValid is true until the event is invalidated.  The Simulator skips invalid events.
func (evt *Event) IsValid() bool {
	return evt.valid
}

// Fired reports whether the event's handler has been called
func (evt *Event) Fired() bool {
	return evt.fired
}

// Invalidate keeps the event from firing.  It is idempotent, may be called from
// inside any handler (including the event's own), and does nothing once the event has fired.
func (evt *Event) Invalidate() {
	if evt.fired {
		return
	}
	evt.valid = false
}

// Fire calls the event's handler with the event as its argument
func (evt *Event) Fire() error {
	evt.fired = true
	return evt.handler(evt)
}

func (evt *Event) String() string {
	return fmt.Sprintf("{Event: id %d delay %v valid %t data %v}", evt.id, evt.delay, evt.valid, evt.data)
}
