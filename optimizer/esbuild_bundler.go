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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// EsbuildBundler implements Bundler on top of github.com/evanw/esbuild's
// one-shot Build API, mirroring the way the teacher's transform engine
// drives esbuild (tsconfigRaw defaults, Loader/Target mapping) but for a
// multi-entry-point bundle instead of a single-file transform.
type EsbuildBundler struct {
	// CacheDir is where a commit atomically renames its temp build
	// output into place.
	CacheDir string
	Target   api.Target
}

// NewEsbuildBundler returns a Bundler rooted at cacheDir, targeting
// evergreen ES modules by default (matching the teacher's browser-facing
// transform target).
func NewEsbuildBundler(cacheDir string) *EsbuildBundler {
	return &EsbuildBundler{CacheDir: cacheDir, Target: api.ES2022}
}

// Bundle runs esbuild over the given dependency entry points in memory,
// then stages the result under a temp directory inside CacheDir. Commit
// renames the temp directory into place atomically; Cancel removes it.
func (b *EsbuildBundler) Bundle(ctx context.Context, inputDeps map[string]DepInfo) (*BundleResult, error) {
	if len(inputDeps) == 0 {
		return &BundleResult{
			Optimized: map[string]DepInfo{},
			Chunks:    map[string]DepInfo{},
			Commit:    func() error { return nil },
			Cancel:    func() error { return nil },
		}, nil
	}

	ids := make([]string, 0, len(inputDeps))
	for id := range inputDeps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entryPoints := make([]api.EntryPoint, 0, len(ids))
	for _, id := range ids {
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  inputDeps[id].Src,
			OutputPath: sanitizeChunkName(id),
		})
	}

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		Bundle:              true,
		Splitting:           true,
		Write:               false,
		Format:              api.FormatESModule,
		Target:              b.Target,
		Platform:            api.PlatformBrowser,
		Sourcemap:           api.SourceMapLinked,
		Metafile:            true,
		ChunkNames:          "chunks/[name]-[hash]",
		LegalComments:       api.LegalCommentsNone,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			msgs = append(msgs, m.Text)
		}
		return nil, &BundlerError{Err: errors.New(strings.Join(msgs, "; "))}
	}

	tmpDir, err := os.MkdirTemp(b.CacheDir, "bundle-*")
	if err != nil {
		return nil, &BundlerError{Err: fmt.Errorf("staging temp dir: %w", err)}
	}

	optimized := make(map[string]DepInfo, len(ids))
	chunks := make(map[string]DepInfo)
	hasher := sha256.New()

	for _, f := range result.OutputFiles {
		rel := filepath.Base(f.Path)
		if err := os.WriteFile(filepath.Join(tmpDir, rel), f.Contents, 0o644); err != nil {
			os.RemoveAll(tmpDir)
			return nil, &BundlerError{Err: fmt.Errorf("writing %s: %w", rel, err)}
		}
		fileHash := sha256sum(f.Contents)
		hasher.Write(f.Contents)

		if strings.HasPrefix(rel, "chunks"+string(filepath.Separator)) || strings.Contains(f.Path, string(filepath.Separator)+"chunks"+string(filepath.Separator)) {
			chunks[rel] = DepInfo{ID: rel, File: rel, FileHash: fileHash}
			continue
		}
		id := entryIDForOutput(ids, entryPoints, f.Path)
		if id == "" {
			continue
		}
		dep := inputDeps[id]
		dep.File = rel
		dep.FileHash = fileHash
		optimized[id] = dep
	}

	browserHash := hex.EncodeToString(hasher.Sum(nil))[:16]

	committed := false
	commit := func() error {
		if committed {
			return nil
		}
		finalDir := filepath.Join(b.CacheDir, "current")
		staged := tmpDir + "-ready"
		if err := os.Rename(tmpDir, staged); err != nil {
			return &BundlerError{Err: err}
		}
		os.RemoveAll(finalDir)
		if err := os.Rename(staged, finalDir); err != nil {
			return &BundlerError{Err: err}
		}
		committed = true
		return nil
	}
	cancel := func() error {
		if committed {
			return nil
		}
		return os.RemoveAll(tmpDir)
	}

	return &BundleResult{
		Hash:        inputHash(ids, inputDeps),
		BrowserHash: browserHash,
		Optimized:   optimized,
		Chunks:      chunks,
		Commit:      commit,
		Cancel:      cancel,
	}, nil
}

func sanitizeChunkName(id string) string {
	r := strings.NewReplacer("/", "_", "@", "", "\\", "_")
	return r.Replace(id)
}

func entryIDForOutput(ids []string, entryPoints []api.EntryPoint, outputPath string) string {
	base := filepath.Base(outputPath)
	for i, ep := range entryPoints {
		if strings.HasPrefix(base, ep.OutputPath) {
			return ids[i]
		}
	}
	return ""
}

func sha256sum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// inputHash content-hashes the set of dep ids plus their source paths, used
// as Metadata.Hash: two runs over the same lockfile/include/exclude config
// produce the same hash, letting the optimizer recognize reload-safety.
func inputHash(ids []string, deps map[string]DepInfo) string {
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(deps[id].Src))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
