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

// Package devserver composes the watcher, module graph, HMR propagation,
// and dependency optimizer into the HTTP server a `devgraph serve`
// invocation runs.
package devserver

import (
	"bennypowers.dev/devgraph/hmr"
	"bennypowers.dev/devgraph/internal/platform"
	"bennypowers.dev/devgraph/modulegraph"
	"bennypowers.dev/devgraph/optimizer"
)

// Environment is the per-environment slice of dev-server state: a page
// served as "client" and one rendered server-side as "ssr" each get their
// own module graph (a <script type=module> import graph differs from what
// an SSR render touches), their own dependency pre-bundle, and their own
// set of connected HMR clients.
type Environment struct {
	Name        string
	Graph       *modulegraph.Graph
	Optimizer   *optimizer.Optimizer
	Broadcaster *hmr.Broadcaster
	Propagator  *hmr.Propagator
}

// Environments is the registry of active Environment instances, keyed by
// name ("client", "ssr", or any custom name a config declares).
type Environments struct {
	byName map[string]*Environment
}

// NewEnvironments builds an Environments registry, wiring one Environment
// per name using resolver to back its module graph and bundler/scheduler/
// clock to drive its optimizer.
func NewEnvironments(names []string, resolverFor func(name string) modulegraph.Resolver, bundlerFor func(name string) optimizer.Bundler, scheduler optimizer.Scheduler, clock platform.TimeProvider, strategy optimizer.Strategy, onReload func(environment, triggeredBy string)) (*Environments, error) {
	if len(names) == 0 {
		names = []string{"client", "ssr"}
	}

	envs := &Environments{byName: make(map[string]*Environment, len(names))}
	for _, name := range names {
		graph := modulegraph.New(resolverFor(name), name == "client")
		broadcaster := hmr.NewBroadcaster()

		env := &Environment{
			Name:        name,
			Graph:       graph,
			Broadcaster: broadcaster,
			Propagator:  hmr.NewPropagator(graph),
		}

		envName := name
		reloadFor := func(triggeredBy string) {
			graph.InvalidateAll(clock.Now().UnixNano())
			_ = broadcaster.Send(hmr.FullReloadPayload(triggeredBy))
			if onReload != nil {
				onReload(envName, triggeredBy)
			}
		}
		env.Optimizer = optimizer.New(strategy, bundlerFor(name), scheduler, clock, reloadFor)

		envs.byName[name] = env
	}
	return envs, nil
}

// Get returns the named environment, or (nil, false) if it was never
// registered.
func (e *Environments) Get(name string) (*Environment, bool) {
	env, ok := e.byName[name]
	return env, ok
}

// Names returns every registered environment name.
func (e *Environments) Names() []string {
	names := make([]string, 0, len(e.byName))
	for name := range e.byName {
		names = append(names, name)
	}
	return names
}

// All returns every registered Environment.
func (e *Environments) All() []*Environment {
	envs := make([]*Environment, 0, len(e.byName))
	for _, env := range e.byName {
		envs = append(envs, env)
	}
	return envs
}

// OnFileChange propagates a changed file to every environment's graph
// and HMR broadcaster, since a single watched root feeds both the
// client and ssr environments.
func (e *Environments) OnFileChange(file string, timestamp int64) {
	for _, env := range e.byName {
		env.Graph.OnFileChange(file, timestamp)
		payload := env.Propagator.HandleChange(file, timestamp)
		// A disconnected browser tab is routine, not an error worth
		// surfacing; Broadcaster.Send already tries every channel.
		_ = env.Broadcaster.Send(payload)
	}
}
