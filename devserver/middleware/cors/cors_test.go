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

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func handlerThatWrites(status int, body string, headerKey, headerVal string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headerKey != "" {
			w.Header().Set(headerKey, headerVal)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func TestSetsOriginAndNosniffHeaders(t *testing.T) {
	h := New()(handlerThatWrites(http.StatusOK, "ok", "", ""))
	req := httptest.NewRequest(http.MethodGet, "/module.js", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
}

func TestPreservesStatusBodyAndHandlerHeaders(t *testing.T) {
	h := New()(handlerThatWrites(http.StatusCreated, "payload", "X-Custom", "value"))
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status preserved, got %d", rec.Code)
	}
	if rec.Body.String() != "payload" {
		t.Fatalf("expected body preserved, got %q", rec.Body.String())
	}
	if got := rec.Header().Get("X-Custom"); got != "value" {
		t.Fatalf("expected handler-set header preserved, got %q", got)
	}
}

func TestWorksAcrossMethodsAndRepeatedRequests(t *testing.T) {
	h := New()(handlerThatWrites(http.StatusOK, "ok", "", ""))

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut} {
		req := httptest.NewRequest(method, "/x", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("method %s: expected wildcard origin, got %q", method, got)
		}
	}
}

func TestPreflightRequestShortCircuits(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := New()(inner)

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("expected the OPTIONS preflight to short-circuit before reaching the wrapped handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}
