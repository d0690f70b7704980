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
	"net/http"
	"path/filepath"
	"strings"

	"bennypowers.dev/devgraph/devtransform"
	"bennypowers.dev/devgraph/hmr"
	"bennypowers.dev/devgraph/internal/logging"
	"bennypowers.dev/devgraph/modulegraph"
)

// moduleHandler serves one environment's files, transforming TypeScript,
// JSX, and CSS sources into browser-loadable ES modules on the fly.
func (s *Server) moduleHandler(env *Environment) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := env.Optimizer.DelayUntil(r.URL.Path)
		defer done()

		mod, err := env.Graph.EnsureEntryFromURL(r.Context(), r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		bare, _ := mod.Meta["bare"].(bool)
		if bare {
			http.Redirect(w, r, mod.ID, http.StatusFound)
			return
		}

		if prior, fresh := cachedResult(mod); fresh {
			w.Header().Set("Content-Type", contentTypeFor(mod.File))
			w.Write([]byte(prior.Code))
			return
		}

		source, err := hmr.ReadWithRetry(s.fs, s.clock, filepath.Join(s.root, mod.File))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		code, contentType, transformErr := s.transform(mod.File, source)
		if transformErr != nil {
			http.Error(w, transformErr.Error(), http.StatusInternalServerError)
			return
		}

		env.Graph.UpdateModuleTransformResult(mod, &modulegraph.TransformResult{Code: code})
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(code))
	})
}

// cachedResult returns mod's previously transformed code if its
// invalidation state still considers it fresh.
func cachedResult(mod *modulegraph.ModuleNode) (*modulegraph.TransformResult, bool) {
	if mod.TransformResult == nil || !mod.Invalidation.IsFresh() {
		return nil, false
	}
	return mod.TransformResult, true
}

func contentTypeFor(file string) string {
	switch filepath.Ext(file) {
	case ".css", ".ts", ".tsx", ".jsx", ".js", ".mjs":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) transform(file string, source []byte) (string, string, error) {
	switch filepath.Ext(file) {
	case ".css":
		return devtransform.CSS(source, file), "application/javascript; charset=utf-8", nil
	case ".ts":
		result, err := devtransform.TypeScript(source, devtransform.Options{Loader: devtransform.LoaderTS, Target: s.target, Sourcemap: devtransform.SourceMapInline, Sourcefile: file})
		if err != nil {
			return "", "", err
		}
		return result.Code, "application/javascript; charset=utf-8", nil
	case ".tsx":
		result, err := devtransform.TypeScript(source, devtransform.Options{Loader: devtransform.LoaderTSX, Target: s.target, Sourcemap: devtransform.SourceMapInline, Sourcefile: file})
		if err != nil {
			return "", "", err
		}
		return result.Code, "application/javascript; charset=utf-8", nil
	case ".jsx":
		result, err := devtransform.TypeScript(source, devtransform.Options{Loader: devtransform.LoaderJSX, Target: s.target, Sourcemap: devtransform.SourceMapInline, Sourcefile: file})
		if err != nil {
			return "", "", err
		}
		return result.Code, "application/javascript; charset=utf-8", nil
	case ".js", ".mjs":
		return string(source), "application/javascript; charset=utf-8", nil
	case ".json":
		return string(source), "application/json; charset=utf-8", nil
	default:
		return string(source), "application/octet-stream", nil
	}
}

// depsHandler serves the optimizer's committed pre-bundled chunks.
func (s *Server) depsHandler(env *Environment) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file := strings.TrimPrefix(r.URL.Path, depsPrefix+env.Name+"/")
		path := filepath.Join(s.depsDir(env.Name), file)
		data, err := s.fs.ReadFile(path)
		if err != nil {
			http.Error(w, "dependency chunk not yet bundled", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Write(data)
	})
}

// reloadHandler upgrades the HMR websocket and registers the resulting
// channel with the environment's broadcaster for the connection's
// lifetime.
func (s *Server) reloadHandler(env *Environment) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch, err := hmr.Upgrade(w, r)
		if err != nil {
			s.logger.Error("hmr upgrade failed: %v", err)
			return
		}
		env.Broadcaster.Add(ch)
		env.Broadcaster.MarkReady(ch)
		defer env.Broadcaster.Remove(ch)

		_ = ch.Listen()
	})
}

// logsHandler serves the buffered console output as a JSON envelope, for
// a connected browser overlay that polls rather than subscribes live.
func (s *Server) logsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := logging.MarshalLogEntries(s.liveLogger.Logs())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(raw)
	})
}
