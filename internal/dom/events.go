package dom

import (
	"golang.org/x/net/html"
)

// Event types the recorder listens for
const (
	EventBlur         = "blur"
	EventChange       = "change"
	EventSubmit       = "submit"
	EventClick        = "click"
	EventBeforeUnload = "beforeunload"
	EventInput        = "input"
)

// Event is a dispatched DOM event. Target is nil for window-level events.
type Event struct {
	Type   string
	Target *html.Node
}

// Listener handles a dispatched event
type Listener func(Event)

type listener struct {
	id int
	fn Listener
}

// EventTarget is anything that accepts capture-phase listeners
type EventTarget interface {
	AddEventListener(eventType string, fn Listener) (remove func())
}

// AddEventListener registers fn for eventType at document level, in the
// capture phase. The returned func detaches it and is safe to call twice.
func (d *Document) AddEventListener(eventType string, fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[eventType] = append(d.listeners[eventType], &listener{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		list := d.listeners[eventType]
		for i, l := range list {
			if l.id == id {
				d.listeners[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers e to every listener registered for its type, in
// registration order. Listeners run without the document lock held.
func (d *Document) Dispatch(e Event) {
	d.mu.Lock()
	list := make([]*listener, len(d.listeners[e.Type]))
	copy(list, d.listeners[e.Type])
	d.mu.Unlock()

	for _, l := range list {
		l.fn(e)
	}
}

// ListenerCount returns how many listeners are attached for eventType
func (d *Document) ListenerCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[eventType])
}
