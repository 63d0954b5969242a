// Package notifier fans catalog events out to streaming HTTP clients.
package notifier

import (
	"sync"
	"time"
)

// Event kinds.
const (
	CatalogReloaded = "catalog.reloaded"
	CatalogFailed   = "catalog.failed"
)

// Event is one notification sent to subscribers.
type Event struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier broadcasts events to every subscribed listener.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 4)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast sends ev to all listeners. A listener whose buffer is full
// misses the event.
func (n *Notifier) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
