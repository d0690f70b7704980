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

// Package modulegraph holds the per-environment directed graph of resolved
// modules a dev server has touched: one node per (environment, resolved
// URL), indexed by url, id, file path and transform-result etag, with the
// soft/hard invalidation bookkeeping the HMR propagator depends on.
package modulegraph

import "sync"

// NodeID addresses a ModuleNode within a single Graph's arena. It is never
// reused across graphs and stays stable for a node's entire lifetime.
type NodeID int

const invalidNodeID NodeID = -1

// ModuleType distinguishes the two kinds of served modules the propagator
// treats differently (CSS-registered deps are leaves, not dead ends).
type ModuleType int

const (
	ModuleJS ModuleType = iota
	ModuleCSS
)

// SelfAccepting is the tri-state described in the data model: a module is
// either known to self-accept, known not to, or has never been loaded and
// transformed, in which case the propagator must stop rather than guess.
type SelfAccepting int

const (
	SelfAcceptingUnknown SelfAccepting = iota
	SelfAcceptingFalse
	SelfAcceptingTrue
)

// TransformResult is the cached payload of a module's last successful
// transform: the code the client fetches, its source map, the etag the
// client environment indexes by, and the import specifiers that drove the
// edges recorded in updateModuleInfo.
type TransformResult struct {
	Code        string
	Map         string
	Etag        string
	Deps        []string
	DynamicDeps []string
}

// invalidationKind tags the three-way union backing InvalidationState:
// fresh (node is good to serve as-is), hard (must re-transform), or soft
// (the prior TransformResult may be reused with import timestamps rewritten).
type invalidationKind int

const (
	invalidationFresh invalidationKind = iota
	invalidationHard
	invalidationSoft
)

// InvalidationState is a tagged variant, never a bare nullable pointer, so
// "no prior result" and "fresh, nothing cached yet" can't be confused.
type InvalidationState struct {
	kind  invalidationKind
	prior *TransformResult
}

// FreshState is the zero state: the node has no pending invalidation.
func FreshState() InvalidationState { return InvalidationState{kind: invalidationFresh} }

// HardState marks a module for mandatory re-transform.
func HardState() InvalidationState { return InvalidationState{kind: invalidationHard} }

// SoftState preserves the prior transform result for reuse by the fast
// path that only rewrites import timestamps.
func SoftState(prior *TransformResult) InvalidationState {
	return InvalidationState{kind: invalidationSoft, prior: prior}
}

func (s InvalidationState) IsFresh() bool { return s.kind == invalidationFresh }
func (s InvalidationState) IsHard() bool  { return s.kind == invalidationHard }
func (s InvalidationState) IsSoft() bool  { return s.kind == invalidationSoft }

// PriorResult returns the preserved transform result for a soft-invalidated
// node, or (nil, false) otherwise.
func (s InvalidationState) PriorResult() (*TransformResult, bool) {
	if s.kind != invalidationSoft {
		return nil, false
	}
	return s.prior, true
}

func (s InvalidationState) equal(o InvalidationState) bool {
	if s.kind != o.kind {
		return false
	}
	if s.kind != invalidationSoft {
		return true
	}
	return s.prior == o.prior
}

// ModuleNode is one resolved module within one environment's Graph. Edge
// sets are stored as NodeID sets rather than node pointers (see the
// package-level Graph doc): this keeps nodes free of cyclic ownership and
// lets the whole graph be addressed, copied, and garbage-collected as a
// single arena.
type ModuleNode struct {
	mu sync.Mutex

	id NodeID

	URL  string
	ID   string
	File string
	Type ModuleType

	Importers        map[NodeID]struct{}
	ImportedModules  map[NodeID]struct{}
	StaticImported   map[NodeID]struct{} // subset of ImportedModules imported via a static `import` statement
	AcceptedHmrDeps  map[NodeID]struct{}
	AcceptedHmrExports map[string]struct{} // nil => no partial acceptance declared
	ImportedBindings map[string]map[string]struct{} // importee resolved id -> binding names consumed

	IsSelfAccepting SelfAccepting

	TransformResult *TransformResult
	Invalidation    InvalidationState

	LastHMRTimestamp          int64
	LastInvalidationTimestamp int64

	Meta map[string]any
	Info map[string]any
}

// NodeID returns the node's stable arena index (distinct from the exported
// ModuleNode.ID resolved-identifier string field). Other packages use it to
// test membership in the NodeID-keyed edge sets (Importers, ImportedModules,
// AcceptedHmrDeps, StaticImported).
func (n *ModuleNode) NodeID() NodeID { return n.id }

func newNode(id NodeID, url, resolvedID, file string, typ ModuleType) *ModuleNode {
	return &ModuleNode{
		id:               id,
		URL:              url,
		ID:               resolvedID,
		File:             file,
		Type:             typ,
		Importers:        make(map[NodeID]struct{}),
		ImportedModules:  make(map[NodeID]struct{}),
		StaticImported:   make(map[NodeID]struct{}),
		AcceptedHmrDeps:  make(map[NodeID]struct{}),
		ImportedBindings: make(map[string]map[string]struct{}),
		IsSelfAccepting:  SelfAcceptingUnknown,
		Invalidation:     FreshState(),
		Meta:             make(map[string]any),
		Info:             make(map[string]any),
	}
}

func moduleTypeFromFile(file string) ModuleType {
	if len(file) >= 4 && file[len(file)-4:] == ".css" {
		return ModuleCSS
	}
	return ModuleJS
}
