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
	"net/http"
	"path/filepath"
	"time"

	"bennypowers.dev/devgraph/devserver/middleware"
	"bennypowers.dev/devgraph/devserver/middleware/cors"
	"bennypowers.dev/devgraph/devserver/middleware/requestlogger"
	"bennypowers.dev/devgraph/devtransform"
	"bennypowers.dev/devgraph/devwatch"
	"bennypowers.dev/devgraph/internal/logging"
	"bennypowers.dev/devgraph/internal/platform"
	"bennypowers.dev/devgraph/modulegraph"
	"bennypowers.dev/devgraph/optimizer"
)

// Config carries the knobs a Server needs beyond what Environments and the
// watcher already own.
type Config struct {
	Root              string
	Addr              string
	Target            devtransform.Target
	DebounceWindow    time.Duration
	ExcludeGlobs      []string
	OptimizerStrategy optimizer.Strategy
}

// Server composes the watcher, per-environment module graphs, HMR
// broadcasters, and the dependency optimizer into one HTTP server.
type Server struct {
	root       string
	target     devtransform.Target
	fs         platform.FileSystem
	clock      platform.TimeProvider
	logger     logging.Logger
	liveLogger logging.LiveLogger

	watcher devwatch.Watcher
	envs    *Environments

	http *http.Server
}

// depsDir returns the cache directory the named environment's optimizer
// commits pre-bundled chunks to.
func (s *Server) depsDir(environment string) string {
	dir, err := optimizer.DefaultCacheDir(environment)
	if err != nil {
		return filepath.Join(s.root, ".devgraph-cache", environment)
	}
	return dir
}

// New wires a Server from cfg: a recursive watcher over cfg.Root, one
// Environment per name in environmentNames, and an HTTP mux serving
// modules, dependency chunks, the HMR reload socket, and the log overlay
// feed.
func New(cfg Config, environmentNames []string, fs platform.FileSystem, fw platform.FileWatcher, clock platform.TimeProvider, bundlerFor func(environment string) optimizer.Bundler, log logging.Logger, liveLogger logging.LiveLogger) (*Server, error) {
	s := &Server{
		root:       cfg.Root,
		target:     cfg.Target,
		fs:         fs,
		clock:      clock,
		logger:     log,
		liveLogger: liveLogger,
	}

	scheduler := devwatch.NewRealScheduler()
	s.watcher = devwatch.New(fw, fs, clock, scheduler, cfg.DebounceWindow, cfg.ExcludeGlobs, log)

	// Each environment's FileResolver needs that same environment's
	// Optimizer, which optimizer.New only returns after modulegraph.New
	// has already consumed a Resolver to build the Graph. resolvers holds
	// the not-yet-complete FileResolver for each name so its Optimizer
	// field can be filled in once NewEnvironments returns; ResolveID is
	// never called until the first HTTP request, well after that happens.
	resolvers := make(map[string]*FileResolver, len(environmentNames))
	resolverFor := func(name string) modulegraph.Resolver {
		r := &FileResolver{Root: cfg.Root, Environment: name, FS: fs}
		resolvers[name] = r
		return r
	}

	envs, err := NewEnvironments(environmentNames, resolverFor, bundlerFor, optimizer.NewRealScheduler(), clock, cfg.OptimizerStrategy, func(environment, triggeredBy string) {
		log.Warning("full reload for %s triggered by %s", environment, triggeredBy)
	})
	if err != nil {
		return nil, err
	}
	s.envs = envs

	for _, env := range envs.All() {
		resolvers[env.Name].Optimizer = env.Optimizer
		if liveLogger != nil {
			liveLogger.SetBroadcaster(NewLogBroadcaster(env.Broadcaster))
		}
		env.Optimizer.EnsureFirstRun()
	}

	// "client" is the browser-facing environment and owns the root path;
	// every other environment (e.g. "ssr", used by an embedding server
	// process rather than a browser) is namespaced under its own name so
	// registering more than one environment never collides on "/".
	mux := http.NewServeMux()
	for _, env := range envs.All() {
		env := env
		mux.Handle("/~devgraph/reload/"+env.Name, s.reloadHandler(env))
		mux.Handle(depsPrefix+env.Name+"/", s.depsHandler(env))
		if env.Name == "client" {
			mux.Handle("/", s.moduleHandler(env))
		} else {
			mux.Handle("/"+env.Name+"/", http.StripPrefix("/"+env.Name, s.moduleHandler(env)))
		}
	}
	mux.Handle("/~devgraph/logs", s.logsHandler())

	handler := middleware.Chain(mux, requestlogger.New(log), cors.New())
	s.http = &http.Server{Addr: cfg.Addr, Handler: handler}

	go s.watchLoop()

	return s, nil
}

// watchLoop feeds debounced file-change batches into every environment.
func (s *Server) watchLoop() {
	for event := range s.watcher.Events() {
		for _, path := range event.Paths {
			s.envs.OnFileChange(path, event.Timestamp.UnixNano())
		}
	}
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	if err := s.watcher.Watch(s.root); err != nil {
		return err
	}
	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP server and the underlying watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.watcher.Close()
	return s.http.Shutdown(ctx)
}

// DefaultBundlerFor returns a bundlerFor callback that gives each
// environment its own esbuild-backed Bundler, cached under that
// environment's XDG cache directory.
func DefaultBundlerFor() func(environment string) optimizer.Bundler {
	return func(environment string) optimizer.Bundler {
		dir, err := optimizer.DefaultCacheDir(environment)
		if err != nil {
			dir = filepath.Join(".devgraph-cache", environment)
		}
		return optimizer.NewEsbuildBundler(dir)
	}
}
