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

package optimizer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const metadataFileName = "metadata.json"

// persistedMetadata is the on-disk shape of Metadata. DepInfo.Processing
// is a runtime-only channel and is deliberately omitted.
type persistedMetadata struct {
	Hash        string             `json:"hash"`
	BrowserHash string             `json:"browserHash"`
	Optimized   map[string]DepInfo `json:"optimized"`
	Chunks      map[string]DepInfo `json:"chunks"`
}

// LoadFromDisk reads a previously persisted Metadata from cacheDir if its
// hash matches currentHash, per the "authoritative on hash match" rule.
// A missing file, unparseable contents, or a hash mismatch all mean
// "rebuild", signalled by a nil, nil return; any other read error is
// returned as is.
func LoadFromDisk(cacheDir, currentHash string) (*Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(cacheDir, metadataFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var persisted persistedMetadata
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, nil
	}
	if persisted.Hash != currentHash {
		return nil, nil
	}

	m := NewMetadata()
	m.Hash = persisted.Hash
	m.BrowserHash = persisted.BrowserHash
	for id, dep := range persisted.Optimized {
		m.Optimized[id] = dep
	}
	for id, dep := range persisted.Chunks {
		m.Chunks[id] = dep
	}
	return m, nil
}

// SaveToDisk writes Metadata's committed state (optimized + chunks, not
// the in-flight discovered set) to cacheDir, overwriting any prior file.
func SaveToDisk(cacheDir string, m *Metadata) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	persisted := persistedMetadata{
		Hash:        m.Hash,
		BrowserHash: m.BrowserHash,
		Optimized:   m.Optimized,
		Chunks:      m.Chunks,
	}
	raw, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(cacheDir, metadataFileName+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(cacheDir, metadataFileName))
}
