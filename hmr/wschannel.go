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

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxWebSocketReadSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin allows same-host and loopback origins, which covers plain
// localhost dev as well as reverse proxies and tunnels that preserve the
// Host header, while rejecting arbitrary third-party origins.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	originHost := originURL.Hostname()

	requestHost := r.Host
	if i := strings.IndexByte(requestHost, ':'); i != -1 {
		requestHost = requestHost[:i]
	}
	if originHost == requestHost {
		return true
	}

	switch originHost {
	case "localhost", "127.0.0.1", "[::1]", "::1":
		return true
	}
	if strings.HasSuffix(originHost, ".localhost") {
		return true
	}
	if strings.HasPrefix(originHost, "127.") && len(strings.Split(originHost, ".")) == 4 {
		return true
	}

	return false
}

// WSChannel is a Channel backed by one gorilla/websocket connection.
type WSChannel struct {
	conn *websocket.Conn
	mu   sync.Mutex

	listenersMu sync.RWMutex
	listeners   map[Event][]Listener
}

// Upgrade upgrades an incoming HTTP request to a websocket connection and
// wraps it as a Channel. The caller is expected to call Listen in a
// goroutine to drive the read loop that detects disconnects.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSChannel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxWebSocketReadSize)
	_ = conn.UnderlyingConn().SetDeadline(time.Time{})

	return &WSChannel{
		conn:      conn,
		listeners: make(map[Event][]Listener),
	}, nil
}

func (c *WSChannel) Send(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, body)
}

func (c *WSChannel) On(event Event, l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners[event] = append(c.listeners[event], l)
}

// Off clears every listener registered for event. Go function values carry
// no identity to compare against, so unlike a JS EventEmitter this removes
// the whole event rather than one specific listener.
func (c *WSChannel) Off(event Event, l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	delete(c.listeners, event)
}

// Listen runs the read loop that exists only to detect client disconnect
// (the client never sends real HMR traffic back); it returns once the
// connection closes, firing "close" listeners on the way out.
func (c *WSChannel) Listen() error {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.fire(EventClose, err)
			return err
		}
	}
}

func (c *WSChannel) fire(event Event, data any) {
	c.listenersMu.RLock()
	fns := append([]Listener(nil), c.listeners[event]...)
	c.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(data)
	}
}

// Close sends a close frame with a short deadline so an unresponsive
// client cannot hang shutdown, then closes the underlying connection.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
	c.mu.Unlock()
	return c.conn.Close()
}
