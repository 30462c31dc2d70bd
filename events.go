// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package kpal

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/mds/queue"
)

// An EventType identifies the kind of an event.
type EventType string

// EventShutdown is the type of the event that stops the event worker of a
// Core. It is sent by Core.Shutdown, and cannot be sent by other callers.
const EventShutdown EventType = "shutdown"

// An Event is a message delivered to the event worker of a Core.
type Event struct {
	Type    EventType
	Source  string // the name of the sending peripheral, if any
	Payload any
	Time    time.Time
}

// An EventHandler processes an event delivered by the event worker.
type EventHandler func(context.Context, Event) error

// An EventChannel is an unbounded ordered queue of events with any number of
// senders and a single receiver. Send never blocks.
type EventChannel struct {
	μ      sync.Mutex
	q      *queue.Queue[Event]
	closed bool
	ready  chan struct{} // signaled when the queue becomes non-empty or closes
}

func newEventChannel() *EventChannel {
	return &EventChannel{q: queue.New[Event](), ready: make(chan struct{}, 1)}
}

// Send adds ev to the channel. It reports ErrChannelClosed if the channel has
// been shut down. If ev has no time, it is stamped with the current time.
func (e *EventChannel) Send(ev Event) error {
	if ev.Type == EventShutdown {
		return ErrChannelClosed
	}
	return e.add(ev, false)
}

func (e *EventChannel) add(ev Event, last bool) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.μ.Lock()
	defer e.μ.Unlock()
	if e.closed {
		return ErrChannelClosed
	}
	e.q.Add(ev)
	e.closed = last
	e.signal()
	return nil
}

// close adds a final shutdown event and closes the channel to further sends.
// It reports ErrChannelClosed if the channel was already closed.
func (e *EventChannel) close() error { return e.add(Event{Type: EventShutdown}, true) }

func (e *EventChannel) signal() {
	select {
	case e.ready <- struct{}{}:
	default:
	}
}

// Len reports the number of undelivered events in the channel.
func (e *EventChannel) Len() int {
	e.μ.Lock()
	defer e.μ.Unlock()
	return e.q.Len()
}

// Closed reports whether the channel has been shut down.
func (e *EventChannel) Closed() bool {
	e.μ.Lock()
	defer e.μ.Unlock()
	return e.closed
}

// next blocks until an event is available and returns it, or reports false
// if the channel is closed and empty.
func (e *EventChannel) next() (Event, bool) {
	for {
		e.μ.Lock()
		ev, ok := e.q.Pop()
		closed := e.closed
		e.μ.Unlock()
		if ok {
			return ev, true
		} else if closed {
			return Event{}, false
		}
		<-e.ready
	}
}
