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

// Package hmr implements hot-module-replacement update propagation: given
// a changed module node, it walks importers to find self-accepting
// boundaries, builds update payloads, and ships them to browsers over a
// channel abstraction (normally a websocket broadcaster).
package hmr

// UpdateKind distinguishes the two update payload flavors a boundary can
// produce.
type UpdateKind string

const (
	JSUpdate  UpdateKind = "js-update"
	CSSUpdate UpdateKind = "css-update"
)

// Update describes one boundary's worth of hot-replaceable change.
type Update struct {
	Type                  UpdateKind `json:"type"`
	Path                  string     `json:"path"`
	AcceptedPath          string     `json:"acceptedPath"`
	Timestamp             int64      `json:"timestamp"`
	ExplicitImportRequired bool      `json:"explicitImportRequired"`
	IsWithinCircularImport bool      `json:"isWithinCircularImport"`
	SSRInvalidates        []string   `json:"ssrInvalidates"`
}

// PayloadType tags the discriminated union sent over an HMR channel.
type PayloadType string

const (
	PayloadUpdate      PayloadType = "update"
	PayloadFullReload  PayloadType = "full-reload"
	PayloadPrune       PayloadType = "prune"
	PayloadCustom      PayloadType = "custom"
	PayloadError       PayloadType = "error"
)

// Payload is the wire message shape sent to every connected client. Only
// the fields relevant to Type are populated; the rest are the zero value.
type Payload struct {
	Type PayloadType `json:"type"`

	Updates []Update `json:"updates,omitempty"`

	Path        string `json:"path,omitempty"`
	TriggeredBy string `json:"triggeredBy,omitempty"`

	Paths []string `json:"paths,omitempty"`

	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`

	Err string `json:"err,omitempty"`
}

// UpdatePayload wraps a batch of updates collected from one propagation run.
func UpdatePayload(updates []Update) Payload {
	return Payload{Type: PayloadUpdate, Updates: updates}
}

// FullReloadPayload requests that every client reload the page outright.
func FullReloadPayload(triggeredBy string) Payload {
	return Payload{Type: PayloadFullReload, TriggeredBy: triggeredBy}
}

// PrunePayload tells clients to drop cached modules at paths, e.g. after
// files are deleted.
func PrunePayload(paths []string) Payload {
	return Payload{Type: PayloadPrune, Paths: paths}
}

// ErrorPayload surfaces a server-side error (e.g. a transform failure) to
// the client's overlay.
func ErrorPayload(err error) Payload {
	return Payload{Type: PayloadError, Err: err.Error()}
}
