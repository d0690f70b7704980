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

package modulegraph

// InvalidateModule marks mod (and, transitively, its importers) for
// re-transform. isHmr distinguishes an HMR-triggered invalidation (which
// stamps LastHMRTimestamp, read by the client's HMR runtime to decide
// whether a pending fetch is stale) from a plain one. soft requests the
// lighter invalidation: the prior TransformResult is kept around so the
// fast path can rewrite only its import timestamps instead of re-running
// the whole transform pipeline.
//
// seen is shared across a whole invalidation run (see InvalidateAll and
// OnFileChange) so a diamond-shaped importer graph is only ever walked
// once per node.
func (g *Graph) InvalidateModule(mod *ModuleNode, seen map[NodeID]bool, timestamp int64, isHmr, soft bool) {
	if mod == nil {
		return
	}

	mod.mu.Lock()

	already, wasSeen := seen[mod.id]
	next := nextInvalidationState(mod.Invalidation, mod.TransformResult, soft)

	if wasSeen && already == isSoftState(next) && !next.IsFresh() {
		// Already walked this node in this run with the same soft/hard
		// outcome: nothing new would be discovered by recursing again.
		mod.mu.Unlock()
		return
	}

	mod.Invalidation = next
	mod.TransformResult = nil
	if isHmr {
		mod.LastHMRTimestamp = timestamp
	}
	mod.LastInvalidationTimestamp = timestamp

	importers := make([]NodeID, 0, len(mod.Importers))
	for id := range mod.Importers {
		importers = append(importers, id)
	}
	modID := mod.id
	mod.mu.Unlock()

	g.mu.Lock()
	if g.indexEtag {
		// The node's own TransformResult was just cleared; drop any etag
		// entry that pointed at it so stale etags 404 instead of serving
		// the wrong module.
		for etag, id := range g.etagToID {
			if id == modID {
				delete(g.etagToID, etag)
			}
		}
	}
	g.mu.Unlock()

	seen[modID] = isSoftState(next)

	for _, importerID := range importers {
		importer := g.nodeAt(importerID)
		if importer == nil {
			continue
		}
		if importerAcceptsDep(importer, modID) {
			continue
		}
		importerSoft := soft || staticallyImports(importer, modID)
		g.InvalidateModule(importer, seen, timestamp, isHmr, importerSoft)
	}
}

// nextInvalidationState computes the InvalidationState a node should move
// to given an incoming soft-or-hard invalidation request. Hard invalidation
// always wins and sticks: once a node is hard-invalidated nothing can soften
// it again until it is freshly transformed. A soft request against a node
// with no prior transform result is promoted to hard, since there is
// nothing to reuse.
func nextInvalidationState(current InvalidationState, prior *TransformResult, soft bool) InvalidationState {
	if current.IsHard() {
		return current
	}
	if !soft {
		return HardState()
	}
	if prior == nil {
		if p, ok := current.PriorResult(); ok {
			prior = p
		}
	}
	if prior == nil {
		return HardState()
	}
	return SoftState(prior)
}

func isSoftState(s InvalidationState) bool { return s.IsSoft() }

// importerAcceptsDep reports whether importer declared (via accept([...]))
// that it handles updates to dep itself, meaning propagation should stop
// at importer rather than continue to its own importers.
func importerAcceptsDep(importer *ModuleNode, dep NodeID) bool {
	importer.mu.Lock()
	defer importer.mu.Unlock()
	_, ok := importer.AcceptedHmrDeps[dep]
	return ok
}

// staticallyImports reports whether importer reaches target via a static
// `import` statement (as opposed to a dynamic import()). A static importer
// is soft-invalidated even when the invalidation that reached it was hard:
// its own code is unchanged, so its prior transform result is reused with
// only its import timestamps rewritten.
func staticallyImports(importer *ModuleNode, target NodeID) bool {
	importer.mu.Lock()
	defer importer.mu.Unlock()
	_, ok := importer.StaticImported[target]
	return ok
}

// InvalidateAll hard-invalidates every node in the graph, e.g. in response
// to a change the watcher can't attribute to one file (a config change, a
// restart request). One seen set is shared across the whole call so shared
// importers are only processed once.
func (g *Graph) InvalidateAll(timestamp int64) {
	seen := make(map[NodeID]bool)
	for _, mod := range g.AllNodes() {
		g.InvalidateModule(mod, seen, timestamp, false, false)
	}
}

// OnFileChange hard-invalidates every node registered against file,
// sharing one seen set across all of them so a file mapped to multiple
// nodes (distinct queries on the same path) doesn't walk shared importers
// more than once.
func (g *Graph) OnFileChange(file string, timestamp int64) {
	nodes := g.GetModulesByFile(file)
	if len(nodes) == 0 {
		return
	}
	seen := make(map[NodeID]bool)
	for _, mod := range nodes {
		g.InvalidateModule(mod, seen, timestamp, false, false)
	}
}
