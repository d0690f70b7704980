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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestValidate_ValidStrategies(t *testing.T) {
	validStrategies := []string{"", "pre-scan", "scan", "lazy", "eager"}

	for _, strategy := range validStrategies {
		t.Run(strategy, func(t *testing.T) {
			cfg := &DevgraphConfig{Optimizer: OptimizerConfig{Strategy: strategy}}

			if err := cfg.Validate(); err != nil {
				t.Errorf("expected strategy %q to be valid, got error: %v", strategy, err)
			}
		})
	}
}

func TestValidate_InvalidStrategy(t *testing.T) {
	cfg := &DevgraphConfig{Optimizer: OptimizerConfig{Strategy: "eagerly"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an invalid strategy to be rejected")
	}
	if !strings.Contains(err.Error(), "eagerly") {
		t.Errorf("error should mention the invalid value, got: %v", err)
	}
}

func TestValidate_RejectsEmptyEnvironmentName(t *testing.T) {
	cfg := &DevgraphConfig{Environments: []string{"client", "  "}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a blank environment name to be rejected")
	}
}

func TestValidate_EmptyConfigValid(t *testing.T) {
	cfg := &DevgraphConfig{}

	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should be valid, got error: %v", err)
	}
}

func TestClone_DeepCopiesSlices(t *testing.T) {
	cfg := &DevgraphConfig{
		Environments: []string{"client"},
		Optimizer:    OptimizerConfig{Include: []string{"lit"}, Exclude: []string{"@internal/*"}},
		Watch:        WatchConfig{Exclude: []string{"dist/**"}},
	}

	clone := cfg.Clone()
	if diff := cmp.Diff(cfg, clone); diff != "" {
		t.Errorf("clone should be structurally identical to the original before mutation (-want +got):\n%s", diff)
	}

	clone.Environments[0] = "ssr"
	clone.Optimizer.Include[0] = "preact"
	clone.Optimizer.Exclude[0] = "changed"
	clone.Watch.Exclude[0] = "changed"

	if cfg.Environments[0] != "client" {
		t.Error("mutating the clone's Environments slice mutated the original")
	}
	if cfg.Optimizer.Include[0] != "lit" {
		t.Error("mutating the clone's Optimizer.Include slice mutated the original")
	}
	if cfg.Optimizer.Exclude[0] != "@internal/*" {
		t.Error("mutating the clone's Optimizer.Exclude slice mutated the original")
	}
	if cfg.Watch.Exclude[0] != "dist/**" {
		t.Error("mutating the clone's Watch.Exclude slice mutated the original")
	}
}

func TestClone_NilConfig(t *testing.T) {
	var cfg *DevgraphConfig

	if cfg.Clone() != nil {
		t.Error("cloning a nil config should return nil")
	}
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	cfg := Default()
	path := filepath.Join(t.TempDir(), ".config", "devgraph.yaml")

	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var roundTripped DevgraphConfig
	if err := yaml.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(cfg, &roundTripped); diff != "" {
		t.Errorf("round-tripped config differs from the original (-want +got):\n%s", diff)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("the default config should validate, got error: %v", err)
	}
}
