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

// Package middleware provides the http.Handler wrapping chain shared by
// the dev server's CORS, request-logging, and transform middlewares.
package middleware

import (
	"bytes"
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to handler so the first middleware in the
// list is the outermost wrapper (runs first on the way in, last on the
// way out).
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// ResponseRecorder captures a response so a middleware can inspect or
// rewrite it before it reaches the client.
type ResponseRecorder struct {
	http.ResponseWriter
	Status int
	Body   bytes.Buffer
	wrote  bool
}

// NewResponseRecorder wraps w.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(status int) {
	r.Status = status
	r.wrote = true
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.wrote = true
	}
	return r.Body.Write(b)
}

// Flush sends the recorded status and body to the underlying writer
// unmodified.
func (r *ResponseRecorder) Flush() error {
	r.ResponseWriter.WriteHeader(r.Status)
	_, err := r.ResponseWriter.Write(r.Body.Bytes())
	return err
}

// CopyHeaders copies every header from src to dst except those named in
// exclude.
func CopyHeaders(dst, src http.Header, exclude ...string) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[http.CanonicalHeaderKey(name)] = true
	}
	for name, values := range src {
		if skip[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// IsHTMLResponse reports whether contentType names an HTML document.
func IsHTMLResponse(contentType string) bool {
	return strings.Contains(contentType, "text/html")
}
