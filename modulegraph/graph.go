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

import (
	"context"
	"sync"
)

// Graph is a single environment's module graph: an arena of ModuleNodes
// plus four string-keyed indexes (url, id, file, etag). Edges live as
// NodeID sets on the nodes themselves; the arena indirection is what lets
// a cyclic import graph be represented without any node owning another.
//
// The client environment indexes transform results by etag; other
// environments (e.g. ssr) do not, per the data model in spec.md §3.
type Graph struct {
	mu sync.RWMutex

	resolver  Resolver
	indexEtag bool

	nodes []*ModuleNode

	urlToID  map[string]NodeID
	idToID   map[string]NodeID
	fileToID map[string][]NodeID
	etagToID map[string]NodeID

	pending map[string]*entryFuture
}

// New creates an empty Graph for one environment. indexEtag should be true
// only for the client environment.
func New(resolver Resolver, indexEtag bool) *Graph {
	return &Graph{
		resolver:  resolver,
		indexEtag: indexEtag,
		urlToID:   make(map[string]NodeID),
		idToID:    make(map[string]NodeID),
		fileToID:  make(map[string][]NodeID),
		etagToID:  make(map[string]NodeID),
		pending:   make(map[string]*entryFuture),
	}
}

type entryFuture struct {
	done chan struct{}
	node *ModuleNode
	err  error
}

func (g *Graph) nodeAt(id NodeID) *ModuleNode {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// EnsureEntryFromURL is the graph's lazy module-resolution entry point.
// Concurrent callers passing the same raw URL are single-flighted: the
// first caller publishes an in-flight future before awaiting the resolver,
// and later callers join that same future rather than re-invoking it.
func (g *Graph) EnsureEntryFromURL(ctx context.Context, rawURL string) (*ModuleNode, error) {
	clean := cleanRawURL(rawURL)

	g.mu.Lock()
	if id, ok := g.urlToID[clean]; ok {
		node := g.nodeAt(id)
		g.mu.Unlock()
		return node, nil
	}
	if f, ok := g.pending[clean]; ok {
		g.mu.Unlock()
		<-f.done
		return f.node, f.err
	}

	f := &entryFuture{done: make(chan struct{})}
	g.pending[clean] = f
	g.mu.Unlock()

	node, err := g.resolveAndInsert(ctx, clean)

	g.mu.Lock()
	delete(g.pending, clean)
	g.mu.Unlock()

	f.node, f.err = node, err
	close(f.done)
	return node, err
}

func (g *Graph) resolveAndInsert(ctx context.Context, cleanURL string) (*ModuleNode, error) {
	resolved, err := g.resolver.ResolveID(ctx, cleanURL)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, &ResolveError{RawURL: cleanURL}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.idToID[resolved.ID]; ok {
		// Another raw URL already resolved to this id: register the new
		// URL as an alias and hand back the existing node.
		g.urlToID[cleanURL] = id
		return g.nodeAt(id), nil
	}

	id := NodeID(len(g.nodes))
	file := stripQuery(resolved.ID)
	node := newNode(id, cleanURL, resolved.ID, file, moduleTypeFromFile(file))
	if resolved.Meta != nil {
		node.Meta = resolved.Meta
	}
	g.nodes = append(g.nodes, node)

	g.urlToID[cleanURL] = id
	g.idToID[resolved.ID] = id
	g.fileToID[file] = append(g.fileToID[file], id)

	return node, nil
}

// GetModuleByURL looks up a node by raw URL, stripping HMR/import queries
// and waiting out any in-flight resolution for that URL.
func (g *Graph) GetModuleByURL(ctx context.Context, rawURL string) (*ModuleNode, error) {
	clean := cleanRawURL(rawURL)

	g.mu.RLock()
	if id, ok := g.urlToID[clean]; ok {
		node := g.nodeAt(id)
		g.mu.RUnlock()
		return node, nil
	}
	f, pending := g.pending[clean]
	g.mu.RUnlock()

	if !pending {
		return nil, nil
	}
	<-f.done
	return f.node, f.err
}

// GetModuleByID returns the node with the given resolved id, or nil.
func (g *Graph) GetModuleByID(id string) *ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nid, ok := g.idToID[id]
	if !ok {
		return nil
	}
	return g.nodeAt(nid)
}

// GetModulesByFile returns every node ever registered with the given
// filesystem path (there may be more than one: a file can be imported
// under several queries).
func (g *Graph) GetModulesByFile(file string) []*ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.fileToID[file]
	out := make([]*ModuleNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodeAt(id))
	}
	return out
}

// GetModuleByEtag returns the node whose last transform result carries the
// given etag. Only populated for graphs created with indexEtag=true.
func (g *Graph) GetModuleByEtag(etag string) *ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.etagToID[etag]
	if !ok {
		return nil
	}
	return g.nodeAt(id)
}

// CreateFileOnlyEntry creates (or returns the existing) synthetic node for
// an imported asset that has no URL of its own, e.g. a CSS @import child
// reached only via the filesystem. Dedupes against any node already
// registered for that file.
func (g *Graph) CreateFileOnlyEntry(file string) *ModuleNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ids := g.fileToID[file]; len(ids) > 0 {
		return g.nodeAt(ids[0])
	}

	url := "/@fs/" + file
	id := NodeID(len(g.nodes))
	node := newNode(id, url, url, file, moduleTypeFromFile(file))
	g.nodes = append(g.nodes, node)

	g.urlToID[url] = id
	g.idToID[url] = id
	g.fileToID[file] = append(g.fileToID[file], id)

	return node
}

// UpdateModuleInfo replaces mod's edge sets after a (re)transform. Imported
// is the list of raw import URLs found in the module's source; they are
// resolved via EnsureEntryFromURL in parallel, preserving input order.
// Accepted is the list of raw URLs passed to accept([...]) calls.
//
// Returns the set of previously-imported nodes that are no longer imported
// by anyone (their Importers set became empty) so callers can decide
// whether to garbage-collect associated resources.
func (g *Graph) UpdateModuleInfo(
	ctx context.Context,
	mod *ModuleNode,
	imported []string,
	bindings map[string]map[string]struct{},
	accepted []string,
	acceptedExports map[string]struct{},
	isSelfAccepting SelfAccepting,
	staticImportedRaw map[string]struct{},
) (map[NodeID]struct{}, error) {
	importedNodes, err := g.resolveAllOrdered(ctx, imported)
	if err != nil {
		return nil, err
	}
	acceptedNodes, err := g.resolveAllOrdered(ctx, accepted)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	newImported := make(map[NodeID]struct{}, len(importedNodes))
	for _, n := range importedNodes {
		if n != nil {
			newImported[n.id] = struct{}{}
		}
	}

	staticImported := make(map[NodeID]struct{}, len(staticImportedRaw))
	for raw := range staticImportedRaw {
		clean := cleanRawURL(raw)
		if id, ok := g.urlToID[clean]; ok {
			staticImported[id] = struct{}{}
		}
	}

	acceptedDeps := make(map[NodeID]struct{}, len(acceptedNodes))
	for _, n := range acceptedNodes {
		if n != nil {
			acceptedDeps[n.id] = struct{}{}
		}
	}

	noLongerImported := make(map[NodeID]struct{})
	for prevID := range mod.ImportedModules {
		if _, stillImported := newImported[prevID]; stillImported {
			continue
		}
		prev := g.nodeAt(prevID)
		if prev == nil {
			continue
		}
		delete(prev.Importers, mod.id)
		if len(prev.Importers) == 0 {
			noLongerImported[prevID] = struct{}{}
		}
	}
	for newID := range newImported {
		if newID == mod.id {
			continue
		}
		if n := g.nodeAt(newID); n != nil {
			n.Importers[mod.id] = struct{}{}
		}
	}

	mod.ImportedModules = newImported
	mod.StaticImported = staticImported
	mod.AcceptedHmrDeps = acceptedDeps
	mod.AcceptedHmrExports = acceptedExports
	mod.ImportedBindings = bindings
	mod.IsSelfAccepting = isSelfAccepting

	return noLongerImported, nil
}

func (g *Graph) resolveAllOrdered(ctx context.Context, rawURLs []string) ([]*ModuleNode, error) {
	out := make([]*ModuleNode, len(rawURLs))
	if len(rawURLs) == 0 {
		return out, nil
	}

	errs := make([]error, len(rawURLs))
	var wg sync.WaitGroup
	wg.Add(len(rawURLs))
	for i, raw := range rawURLs {
		go func(i int, raw string) {
			defer wg.Done()
			node, err := g.EnsureEntryFromURL(ctx, raw)
			out[i] = node
			errs[i] = err
		}(i, raw)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateModuleTransformResult stores the result of a (re)transform,
// maintains the etag index for client-environment graphs, and clears any
// pending invalidation.
func (g *Graph) UpdateModuleTransformResult(mod *ModuleNode, result *TransformResult) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.indexEtag {
		if mod.TransformResult != nil && mod.TransformResult.Etag != "" {
			if existing, ok := g.etagToID[mod.TransformResult.Etag]; ok && existing == mod.id {
				delete(g.etagToID, mod.TransformResult.Etag)
			}
		}
		if result != nil && result.Etag != "" {
			g.etagToID[result.Etag] = mod.id
		}
	}

	mod.TransformResult = result
	mod.Invalidation = FreshState()
}

// NodeAt resolves a NodeID (as found in an edge set like Importers or
// ImportedModules) to its node. Returns nil if the id is out of range.
func (g *Graph) NodeAt(id NodeID) *ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodeAt(id)
}

// AllNodes returns every node currently in the graph, in creation order.
func (g *Graph) AllNodes() []*ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*ModuleNode, len(g.nodes))
	copy(out, g.nodes)
	return out
}
