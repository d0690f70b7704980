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

package hmr

import (
	"strings"

	"bennypowers.dev/devgraph/modulegraph"
)

// boundary is one node at which propagation stops because it (or an
// importer of it) declared it can handle the update itself.
type boundary struct {
	node                   *modulegraph.ModuleNode
	acceptedVia            *modulegraph.ModuleNode
	isWithinCircularImport bool
}

// Propagator turns a changed file's module-graph nodes into HMR update
// payloads, one per environment.
type Propagator struct {
	Graph *modulegraph.Graph
}

// NewPropagator builds a Propagator bound to a single environment's graph.
func NewPropagator(g *modulegraph.Graph) *Propagator {
	return &Propagator{Graph: g}
}

// HandleChange runs the full propagation algorithm for one changed file
// and returns the Payload that should be sent over that environment's HMR
// channel, or the zero Payload (Type == "") if nothing should be sent.
func (p *Propagator) HandleChange(changedFile string, timestamp int64) Payload {
	nodes := p.Graph.GetModulesByFile(changedFile)
	if len(nodes) == 0 {
		return Payload{}
	}

	p.Graph.OnFileChange(changedFile, timestamp)

	var boundaries []boundary
	deadEnd := false

	for _, node := range nodes {
		traversed := make(map[*modulegraph.ModuleNode]bool)
		if propagateUpdate(p.Graph, node, traversed, &boundaries, []*modulegraph.ModuleNode{node}) {
			deadEnd = true
		}
	}

	if deadEnd {
		return FullReloadPayload(changedFile)
	}
	if len(boundaries) == 0 {
		return Payload{}
	}

	updates := make([]Update, 0, len(boundaries))
	for _, b := range boundaries {
		kind := JSUpdate
		if b.node.Type == modulegraph.ModuleCSS {
			kind = CSSUpdate
		}
		updates = append(updates, Update{
			Type:                   kind,
			Path:                   normalizeURL(b.node.URL),
			AcceptedPath:           normalizeURL(b.acceptedVia.URL),
			Timestamp:              timestamp,
			IsWithinCircularImport: b.isWithinCircularImport,
			SSRInvalidates:         ssrInvalidates(p.Graph, b.acceptedVia, timestamp),
		})
	}
	return UpdatePayload(updates)
}

// propagateUpdate is the recursive walk described in the propagator's
// design: it records boundaries where an update can be safely applied,
// and reports whether a dead end was reached (forcing a full reload).
func propagateUpdate(
	g *modulegraph.Graph,
	node *modulegraph.ModuleNode,
	traversed map[*modulegraph.ModuleNode]bool,
	boundaries *[]boundary,
	chain []*modulegraph.ModuleNode,
) bool {
	if traversed[node] {
		return false
	}
	traversed[node] = true

	if node.ID != "" && node.IsSelfAccepting == modulegraph.SelfAcceptingUnknown {
		// Never loaded: the next real fetch gets fresh code regardless.
		return false
	}

	if node.IsSelfAccepting == modulegraph.SelfAcceptingTrue {
		*boundaries = append(*boundaries, boundary{
			node:                   node,
			acceptedVia:            node,
			isWithinCircularImport: isCircular(g, node, chain),
		})
		for importerID := range node.Importers {
			importer := g.NodeAt(importerID)
			if importer == nil || importer.Type != modulegraph.ModuleCSS || containsNode(chain, importer) {
				continue
			}
			propagateUpdate(g, importer, traversed, boundaries, append(chain, importer))
		}
		return false
	}

	if len(node.AcceptedHmrExports) > 0 {
		*boundaries = append(*boundaries, boundary{
			node:                   node,
			acceptedVia:            node,
			isWithinCircularImport: isCircular(g, node, chain),
		})
		// fall through to the importer walk below
	}

	if len(node.Importers) == 0 {
		return true
	}

	if node.Type != modulegraph.ModuleCSS && allImportersCSS(g, node) {
		return true
	}

	for importerID := range node.Importers {
		importer := g.NodeAt(importerID)
		if importer == nil {
			continue
		}

		if _, accepts := importer.AcceptedHmrDeps[node.NodeID()]; accepts {
			*boundaries = append(*boundaries, boundary{
				node:                   importer,
				acceptedVia:            node,
				isWithinCircularImport: isCircular(g, importer, chain),
			})
			continue
		}

		if len(node.AcceptedHmrExports) > 0 && consumedWithinAccepted(importer, node) {
			continue
		}

		if containsNode(chain, importer) {
			continue
		}

		if propagateUpdate(g, importer, traversed, boundaries, append(chain, importer)) {
			return true
		}
	}

	return false
}

// consumedWithinAccepted reports whether importer only consumes bindings
// from node that node itself declared accepted, meaning the importer
// doesn't need to be invalidated for this change.
func consumedWithinAccepted(importer, node *modulegraph.ModuleNode) bool {
	consumed, ok := importer.ImportedBindings[node.ID]
	if !ok {
		return false
	}
	for name := range consumed {
		if _, accepted := node.AcceptedHmrExports[name]; !accepted {
			return false
		}
	}
	return true
}

func allImportersCSS(g *modulegraph.Graph, node *modulegraph.ModuleNode) bool {
	if len(node.Importers) == 0 {
		return false
	}
	for importerID := range node.Importers {
		importer := g.NodeAt(importerID)
		if importer == nil || importer.Type != modulegraph.ModuleCSS {
			return false
		}
	}
	return true
}

func containsNode(chain []*modulegraph.ModuleNode, n *modulegraph.ModuleNode) bool {
	for _, c := range chain {
		if c == n {
			return true
		}
	}
	return false
}

// isCircular runs the secondary DFS described for circular-import
// detection: starting from node, walk importer edges (skipping CSS
// importers and self-edges) looking for any node already present in
// chain.
func isCircular(g *modulegraph.Graph, node *modulegraph.ModuleNode, chain []*modulegraph.ModuleNode) bool {
	visited := make(map[*modulegraph.ModuleNode]bool)
	var walk func(n *modulegraph.ModuleNode) bool
	walk = func(n *modulegraph.ModuleNode) bool {
		if visited[n] {
			return false
		}
		visited[n] = true
		for importerID := range n.Importers {
			importer := g.NodeAt(importerID)
			if importer == nil || importer == n || importer.Type == modulegraph.ModuleCSS {
				continue
			}
			if containsNode(chain, importer) {
				return true
			}
			if walk(importer) {
				return true
			}
		}
		return false
	}
	return walk(node)
}

// ssrInvalidates walks importedModules transitively from acceptedVia,
// collecting the URLs of nodes whose timestamps match the current pass.
func ssrInvalidates(g *modulegraph.Graph, acceptedVia *modulegraph.ModuleNode, timestamp int64) []string {
	var out []string
	visited := make(map[*modulegraph.ModuleNode]bool)
	var walk func(n *modulegraph.ModuleNode)
	walk = func(n *modulegraph.ModuleNode) {
		if visited[n] {
			return
		}
		visited[n] = true
		for depID := range n.ImportedModules {
			dep := g.NodeAt(depID)
			if dep == nil {
				continue
			}
			if dep.LastHMRTimestamp == timestamp || dep.LastInvalidationTimestamp == timestamp {
				out = append(out, normalizeURL(dep.URL))
			}
			walk(dep)
		}
	}
	walk(acceptedVia)
	return out
}

// normalizeURL ensures a single leading slash, matching the format used
// for every path the HMR channel sends to the browser.
func normalizeURL(u string) string {
	if u == "" {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return u
}
