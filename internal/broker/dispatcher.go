package broker

import "sync"

// ButtonEvent carries the metadata of a button push relayed from the cloud.
type ButtonEvent struct {
	ComponentID string `json:"component_id"`
	DeviceID    string `json:"device_id"`
	LocationID  string `json:"location_id"`
	Value       any    `json:"value"`
	Name        string `json:"name"`
}

// Dispatcher fans out broker notifications to subscribed entities.
//
// Update subscribers receive the set of device IDs touched by one push-event
// batch; exactly one notification is sent per batch regardless of how many
// events it contained. Button subscribers receive one event per button push.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks are
// invoked synchronously on the broadcasting goroutine and must not block.
type Dispatcher struct {
	mu         sync.RWMutex
	nextID     int
	updateSubs map[int]func(deviceIDs map[string]struct{})
	buttonSubs map[int]func(evt ButtonEvent)
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		updateSubs: make(map[int]func(map[string]struct{})),
		buttonSubs: make(map[int]func(ButtonEvent)),
	}
}

// SubscribeUpdates registers a callback for device-update notifications.
// The returned function removes the subscription; calling it more than
// once is safe.
func (d *Dispatcher) SubscribeUpdates(fn func(deviceIDs map[string]struct{})) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.updateSubs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.updateSubs, id)
		d.mu.Unlock()
	}
}

// SubscribeButtons registers a callback for button events. The returned
// function removes the subscription.
func (d *Dispatcher) SubscribeButtons(fn func(evt ButtonEvent)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.buttonSubs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.buttonSubs, id)
		d.mu.Unlock()
	}
}

// BroadcastUpdate notifies all update subscribers of the touched device set.
func (d *Dispatcher) BroadcastUpdate(deviceIDs map[string]struct{}) {
	d.mu.RLock()
	subs := make([]func(map[string]struct{}), 0, len(d.updateSubs))
	for _, fn := range d.updateSubs {
		subs = append(subs, fn)
	}
	d.mu.RUnlock()

	for _, fn := range subs {
		fn(deviceIDs)
	}
}

// BroadcastButton notifies all button subscribers of a button push.
func (d *Dispatcher) BroadcastButton(evt ButtonEvent) {
	d.mu.RLock()
	subs := make([]func(ButtonEvent), 0, len(d.buttonSubs))
	for _, fn := range d.buttonSubs {
		subs = append(subs, fn)
	}
	d.mu.RUnlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// SubscriberCount returns the number of update subscribers. Used by
// diagnostics.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.updateSubs)
}
