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

package devserver

import (
	"bennypowers.dev/devgraph/hmr"
	"bennypowers.dev/devgraph/internal/logging"
)

// logBroadcaster adapts an hmr.Broadcaster's Payload-shaped Send into the
// []LogEntry-shaped Broadcast the live logger expects, so console output
// can be mirrored to the same websocket connection HMR updates ride on.
type logBroadcaster struct {
	broadcaster *hmr.Broadcaster
}

// NewLogBroadcaster wraps broadcaster as a logging.Broadcaster.
func NewLogBroadcaster(broadcaster *hmr.Broadcaster) logging.Broadcaster {
	return &logBroadcaster{broadcaster: broadcaster}
}

func (l *logBroadcaster) Broadcast(entries []logging.LogEntry) error {
	return l.broadcaster.Send(hmr.Payload{
		Type:  hmr.PayloadCustom,
		Event: "logs",
		Data:  entries,
	})
}
