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
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OptimizerConfig carries the dependency pre-bundler's tuning knobs.
type OptimizerConfig struct {
	// Strategy selects when bare imports are discovered and bundled:
	// "pre-scan", "scan", "lazy", or "eager".
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
	// Include is a set of glob patterns for the bare imports the optimizer
	// may pre-bundle. It is read and written with the file only; `serve`
	// does not pass it to the optimizer, so it has no effect on bundling.
	Include []string `mapstructure:"include" yaml:"include"`
	// Exclude is a set of glob patterns for bare imports not to pre-bundle.
	// Like Include, `serve` does not pass it on and it has no effect.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// CacheDir names a cache directory for committed dependency chunks.
	// `serve` does not read it; the cache location is not changed by it.
	CacheDir string `mapstructure:"cacheDir" yaml:"cacheDir"`
}

// WatchConfig carries the filesystem watcher's tuning knobs.
type WatchConfig struct {
	// Exclude is a set of glob patterns the watcher never reports changes for.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// DebounceWindow coalesces rapid bursts of file events (e.g. an editor's
	// save-then-rewrite) into a single batch.
	DebounceWindow time.Duration `mapstructure:"debounceWindow" yaml:"debounceWindow"`
	// IdleWindow is stored with the file only: `serve` does not pass it on,
	// and the optimizer always uses its fixed optimizer.IdleWindow.
	IdleWindow time.Duration `mapstructure:"idleWindow" yaml:"idleWindow"`
	// ReadRetryWindow is stored with the file only: `serve` does not pass it
	// on, and hmr.ReadWithRetry always polls a fixed 10 times, 10ms apart.
	ReadRetryWindow time.Duration `mapstructure:"readRetryWindow" yaml:"readRetryWindow"`
}

// DevgraphConfig is the root configuration for the devgraph CLI.
type DevgraphConfig struct {
	ProjectDir string `mapstructure:"projectDir" yaml:"projectDir"`
	ConfigFile string `mapstructure:"configFile" yaml:"configFile"`
	// Environments lists the named module-graph environments to serve
	// (e.g. "client", "ssr"). Empty defaults to ["client", "ssr"].
	Environments []string        `mapstructure:"environments" yaml:"environments"`
	Optimizer    OptimizerConfig `mapstructure:"optimizer" yaml:"optimizer"`
	Watch        WatchConfig     `mapstructure:"watch" yaml:"watch"`
	// Verbose logging output
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

func (c *DevgraphConfig) Clone() *DevgraphConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Environments != nil {
		clone.Environments = make([]string, len(c.Environments))
		copy(clone.Environments, c.Environments)
	}
	if c.Optimizer.Include != nil {
		clone.Optimizer.Include = make([]string, len(c.Optimizer.Include))
		copy(clone.Optimizer.Include, c.Optimizer.Include)
	}
	if c.Optimizer.Exclude != nil {
		clone.Optimizer.Exclude = make([]string, len(c.Optimizer.Exclude))
		copy(clone.Optimizer.Exclude, c.Optimizer.Exclude)
	}
	if c.Watch.Exclude != nil {
		clone.Watch.Exclude = make([]string, len(c.Watch.Exclude))
		copy(clone.Watch.Exclude, c.Watch.Exclude)
	}
	return &clone
}

var validStrategies = map[string]bool{
	"":         true,
	"pre-scan": true,
	"scan":     true,
	"lazy":     true,
	"eager":    true,
}

// Validate reports whether the config's values are well-formed.
func (c *DevgraphConfig) Validate() error {
	if !validStrategies[c.Optimizer.Strategy] {
		return fmt.Errorf("invalid optimizer strategy %q: must be one of pre-scan, scan, lazy, eager", c.Optimizer.Strategy)
	}
	for _, name := range c.Environments {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("environment names must not be empty")
		}
	}
	return nil
}

// Default returns the configuration devgraph ships as a starting point for
// a generated devgraph.yaml.
func Default() *DevgraphConfig {
	return &DevgraphConfig{
		Environments: []string{"client", "ssr"},
		Optimizer:    OptimizerConfig{Strategy: "lazy", Include: []string{}, Exclude: []string{}},
		Watch:        WatchConfig{Exclude: []string{}, DebounceWindow: 50 * time.Millisecond, IdleWindow: 200 * time.Millisecond, ReadRetryWindow: time.Second},
	}
}

// WriteYAML marshals c to YAML and writes it to path, creating parent
// directories as needed.
func (c *DevgraphConfig) WriteYAML(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config to yaml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
