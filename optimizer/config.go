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
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/bmatcuk/doublestar/v4"
)

// Config carries the optimizer's per-environment knobs: which strategy to
// discover deps with, the include/exclude glob lists that decide whether a
// bare import is this optimizer's concern at all, and where its persisted
// cache lives.
type Config struct {
	Strategy Strategy
	Include  []string
	Exclude  []string
	// CacheDir overrides the default XDG cache location. Empty means use
	// DefaultCacheDir(environment).
	CacheDir string
}

// DefaultCacheDir resolves the optimizer's persisted pre-bundle directory
// under the user's XDG cache home, one subdirectory per environment, so a
// client and an ssr environment never collide.
func DefaultCacheDir(environment string) (string, error) {
	return xdg.CacheFile(filepath.Join("devgraph", "deps", environment))
}

// Matches reports whether id should be handled by this optimizer: included
// (or no include list, meaning "include everything") and not excluded.
// Bare specifiers like "lit" are matched directly; path-like ones are
// matched as globs so a config can exclude, e.g., "@scope/*".
func (c *Config) Matches(id string) bool {
	if len(c.Include) > 0 && !matchesAny(c.Include, id) {
		return false
	}
	if matchesAny(c.Exclude, id) {
		return false
	}
	return true
}

func matchesAny(patterns []string, id string) bool {
	for _, pattern := range patterns {
		if pattern == id {
			return true
		}
		if ok, err := doublestar.Match(pattern, id); err == nil && ok {
			return true
		}
	}
	return false
}
