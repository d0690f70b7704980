/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package hmr

import "sync"

// Event names a Channel can notify listeners about.
type Event string

const (
	EventConnection Event = "connection"
	EventClose      Event = "close"
)

// Listener is called with an Event's associated value: nil for
// "connection"/"close", or a custom event's data for anything the caller
// registered via a custom event name.
type Listener func(data any)

// Channel is one transport carrying HMR payloads to a client. Send may be
// called concurrently with itself and with On/Off/Close.
type Channel interface {
	Send(p Payload) error
	On(event Event, l Listener)
	Off(event Event, l Listener)
	Listen() error
	Close() error
}

// Broadcaster fans a single logical HMR stream out to N channels (one per
// connected browser tab). It satisfies Channel itself so propagator code
// never needs to distinguish "one client" from "all clients".
type Broadcaster struct {
	mu       sync.RWMutex
	channels map[Channel]struct{}
	ready    map[Channel]struct{}

	listeners map[Event][]Listener
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		channels:  make(map[Channel]struct{}),
		ready:     make(map[Channel]struct{}),
		listeners: make(map[Event][]Listener),
	}
}

// Add registers a new constituent channel. Once every channel added before
// the next MarkReady sweep has reported ready, "connection" listeners fire.
func (b *Broadcaster) Add(ch Channel) {
	b.mu.Lock()
	b.channels[ch] = struct{}{}
	b.mu.Unlock()
}

// MarkReady records that ch has completed its handshake (e.g. the
// websocket upgrade finished and the client sent its first frame). Once
// every currently-registered channel is ready, fires "connection" once.
func (b *Broadcaster) MarkReady(ch Channel) {
	b.mu.Lock()
	b.ready[ch] = struct{}{}
	allReady := len(b.ready) >= len(b.channels) && len(b.channels) > 0
	var fire []Listener
	if allReady {
		fire = append(fire, b.listeners[EventConnection]...)
	}
	b.mu.Unlock()

	for _, l := range fire {
		l(nil)
	}
}

// Remove drops ch, e.g. on disconnect, and fires "close" listeners.
func (b *Broadcaster) Remove(ch Channel) {
	b.mu.Lock()
	delete(b.channels, ch)
	delete(b.ready, ch)
	fire := append([]Listener(nil), b.listeners[EventClose]...)
	b.mu.Unlock()

	for _, l := range fire {
		l(nil)
	}
}

// Send forwards p to every constituent channel, collecting the first
// error encountered but still attempting every send.
func (b *Broadcaster) Send(p Payload) error {
	b.mu.RLock()
	snapshot := make([]Channel, 0, len(b.channels))
	for ch := range b.channels {
		snapshot = append(snapshot, ch)
	}
	b.mu.RUnlock()

	var firstErr error
	for _, ch := range snapshot {
		if err := ch.Send(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// On registers a listener for the broadcaster-level "connection"/"close"
// events. Per-channel custom events are not fanned in; subscribe directly
// on the Channel for those.
func (b *Broadcaster) On(event Event, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], l)
}

// Off clears every listener registered for event, at the broadcaster
// level. See WSChannel.Off for why this cannot remove a single listener.
func (b *Broadcaster) Off(event Event, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, event)
}

// Listen is a no-op for Broadcaster: each constituent Channel runs its own
// read loop; the broadcaster itself has nothing to listen on.
func (b *Broadcaster) Listen() error { return nil }

// Close closes every constituent channel.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	snapshot := make([]Channel, 0, len(b.channels))
	for ch := range b.channels {
		snapshot = append(snapshot, ch)
	}
	b.channels = make(map[Channel]struct{})
	b.ready = make(map[Channel]struct{})
	b.mu.Unlock()

	var firstErr error
	for _, ch := range snapshot {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
