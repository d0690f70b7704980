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
	"context"
	"path"
	"path/filepath"
	"strings"

	"bennypowers.dev/devgraph/internal/platform"
	"bennypowers.dev/devgraph/modulegraph"
	"bennypowers.dev/devgraph/optimizer"
)

// FileResolver resolves module specifiers against a project root on disk:
// relative and root-relative specifiers resolve to a file under Root,
// bare specifiers ("lit", "@lit/reactive-element") are handed to the
// environment's Optimizer, which returns the pre-bundled chunk URL the
// browser should fetch instead.
type FileResolver struct {
	Root        string
	Environment string
	FS          platform.FileSystem
	Optimizer   *optimizer.Optimizer
}

// ResolveID implements modulegraph.Resolver.
func (r *FileResolver) ResolveID(ctx context.Context, rawURL string) (*modulegraph.Resolved, error) {
	if isBareSpecifier(rawURL) {
		return r.resolveBare(rawURL), nil
	}

	clean := cleanServePath(rawURL)
	full := filepath.Join(r.Root, clean)
	if _, err := r.FS.Stat(full); err != nil {
		return nil, &modulegraph.ResolveError{RawURL: rawURL}
	}
	return &modulegraph.Resolved{ID: clean}, nil
}

// depsPrefix is the URL namespace the HTTP handler serves pre-bundled
// dependency chunks from.
const depsPrefix = "/~devgraph/deps/"

func (r *FileResolver) resolveBare(specifier string) *modulegraph.Resolved {
	dep := r.Optimizer.RegisterMissingImport(specifier, specifier)
	file := dep.File
	if file == "" {
		file = sanitizeDepID(specifier) + ".js"
	}
	url := optimizer.OptimizedURL(depsPrefix+r.Environment+"/"+file, dep.BrowserHash)
	return &modulegraph.Resolved{
		ID:   url,
		Meta: map[string]any{"bare": true, "specifier": specifier},
	}
}

func sanitizeDepID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// isBareSpecifier reports whether specifier names a package import rather
// than a relative or root-relative file path — the same rule browsers and
// bundlers use for import maps.
func isBareSpecifier(specifier string) bool {
	if specifier == "" {
		return false
	}
	if strings.HasPrefix(specifier, "/") || strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		return false
	}
	if strings.Contains(specifier, "://") {
		return false
	}
	return true
}

func cleanServePath(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}
