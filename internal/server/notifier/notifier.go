// Package notifier fans out server-side change events to SSE
// listeners. Events carry what changed so clients can re-query only
// the affected resource.
package notifier

import "sync"

// Event kinds.
const (
	// KindRulesChanged fires when a rules document is uploaded,
	// deleted, or the rules directory changes on disk.
	KindRulesChanged = "rules-changed"
	// KindRunFinished fires when a workflow run reaches a terminal
	// status.
	KindRunFinished = "run-finished"
)

// Event describes one server-side change.
type Event struct {
	// Kind is one of the Kind* constants.
	Kind string `json:"kind"`
	// Name identifies the affected resource: a rules document name
	// or a workflow name. Empty for bulk changes.
	Name string `json:"name,omitempty"`
}

// Notifier fans out events to subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates an empty Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events. The caller must
// Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 8)
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

// Broadcast delivers the event to all listeners without blocking; a
// listener whose buffer is full misses this event.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
