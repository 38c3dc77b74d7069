package provider

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Emitter is a concurrency-safe listener registry that concrete providers
// embed to implement On and RemoveListener.
type Emitter struct {
	mu        sync.RWMutex
	nextID    ListenerID
	listeners map[string]map[ListenerID]Listener
	order     map[string][]ListenerID
}

// On registers a listener for an event.
func (e *Emitter) On(event string, listener Listener) (ListenerID, error) {
	if event == "" {
		return 0, fmt.Errorf("event name is required")
	}
	if listener == nil {
		return 0, fmt.Errorf("listener cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string]map[ListenerID]Listener)
		e.order = make(map[string][]ListenerID)
	}
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[ListenerID]Listener)
	}

	e.nextID++
	id := e.nextID
	e.listeners[event][id] = listener
	e.order[event] = append(e.order[event], id)
	return id, nil
}

// RemoveListener unregisters a listener. Removing an unknown id is an error
// so that double releases are visible to callers.
func (e *Emitter) RemoveListener(event string, id ListenerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	byID, ok := e.listeners[event]
	if !ok {
		return fmt.Errorf("no listener %d for event %s", id, event)
	}
	if _, ok := byID[id]; !ok {
		return fmt.Errorf("no listener %d for event %s", id, event)
	}

	delete(byID, id)
	ids := e.order[event]
	for i, existing := range ids {
		if existing == id {
			e.order[event] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(byID) == 0 {
		delete(e.listeners, event)
		delete(e.order, event)
	}
	return nil
}

// Emit delivers payload to every listener of event in registration order.
func (e *Emitter) Emit(event string, payload json.RawMessage) {
	e.mu.RLock()
	ids := append([]ListenerID(nil), e.order[event]...)
	targets := make([]Listener, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, e.listeners[event][id])
	}
	e.mu.RUnlock()

	for _, listener := range targets {
		listener(payload)
	}
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// Events returns the names of events with at least one listener.
func (e *Emitter) Events() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	events := make([]string, 0, len(e.listeners))
	for event := range e.listeners {
		events = append(events, event)
	}
	return events
}
