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

// Package optimizer keeps a cache of pre-bundled third-party dependencies
// current as a dev server discovers them, so the browser fetches one
// bundled chunk per package instead of hundreds of individual ESM files,
// while minimizing the full-page reloads a re-bundle can force.
package optimizer

// Strategy selects when dependency discovery happens relative to the
// server's request stream.
type Strategy string

const (
	StrategyPreScan Strategy = "pre-scan"
	StrategyScan    Strategy = "scan"
	StrategyLazy    Strategy = "lazy"
	StrategyEager   Strategy = "eager"
)

// DepInfo describes one third-party dependency, whether already present in
// a committed bundle (Optimized/Chunks) or only just discovered.
type DepInfo struct {
	ID           string `json:"id"`
	File         string `json:"file"`
	Src          string `json:"src,omitempty"`
	FileHash     string `json:"fileHash"`
	BrowserHash  string `json:"browserHash"`
	NeedsInterop bool   `json:"needsInterop"`
	ExportsData  any    `json:"exportsData,omitempty"`

	// Processing is set when a dep is registered in Metadata.Discovered
	// and is kept when that entry later moves into Optimized: it
	// resolves when the batch this dep was registered against commits or
	// is abandoned. Callers that need to block on a specific dep's
	// resolution (rather than just rewriting its URL immediately and
	// moving on) await this channel. Never persisted.
	Processing <-chan struct{} `json:"-"`
}

// Metadata is the optimizer's state for one environment: the hash of the
// inputs that produced the last commit, a browser-facing hash used in
// `?v=` query strings, and the three disjoint dependency sets a run moves
// deps between.
type Metadata struct {
	Hash        string
	BrowserHash string
	Optimized   map[string]DepInfo
	Chunks      map[string]DepInfo
	Discovered  map[string]DepInfo
}

// NewMetadata returns an empty Metadata ready to accept discoveries.
func NewMetadata() *Metadata {
	return &Metadata{
		Optimized:  make(map[string]DepInfo),
		Chunks:     make(map[string]DepInfo),
		Discovered: make(map[string]DepInfo),
	}
}

// clone deep-copies the three dep maps so a snapshot taken for an in-flight
// batch is unaffected by discoveries registered after the snapshot.
func (m *Metadata) clone() *Metadata {
	out := &Metadata{
		Hash:        m.Hash,
		BrowserHash: m.BrowserHash,
		Optimized:   make(map[string]DepInfo, len(m.Optimized)),
		Chunks:      make(map[string]DepInfo, len(m.Chunks)),
		Discovered:  make(map[string]DepInfo, len(m.Discovered)),
	}
	for k, v := range m.Optimized {
		out.Optimized[k] = v
	}
	for k, v := range m.Chunks {
		out.Chunks[k] = v
	}
	for k, v := range m.Discovered {
		out.Discovered[k] = v
	}
	return out
}

// OptimizedURL formats a pre-bundled dependency's browser-facing URL. The
// `?v=` query is what lets a reload-safe re-bundle swap the underlying
// chunk without changing the URL the browser already cached.
func OptimizedURL(fileRelativeToRoot, browserHash string) string {
	return fileRelativeToRoot + "?v=" + browserHash
}
