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

// Package requestlogger logs served requests, skipping the endpoints a
// connected dev tool polls or streams on so the log view isn't drowned
// out by its own plumbing.
package requestlogger

import (
	"net/http"
	"strings"

	"bennypowers.dev/devgraph/devserver/middleware"
	"bennypowers.dev/devgraph/internal/logging"
)

// quietPaths never get an access-log line of their own.
var quietPaths = map[string]bool{
	"/~devgraph/logs":  true,
	"/~devgraph/reload": true,
}

// New logs method and path for every served request except the logs and
// reload-socket endpoints.
func New(log logging.Logger) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !quietPaths[r.URL.Path] && !strings.HasPrefix(r.URL.Path, "/~devgraph/reload/") {
				log.Info("%s %s", r.Method, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}
