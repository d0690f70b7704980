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
	"strings"
	"testing"
	"time"

	"bennypowers.dev/devgraph/internal/platform"
	"bennypowers.dev/devgraph/optimizer"
)

func TestResolveIDResolvesLocalFiles(t *testing.T) {
	fs := platform.NewMapFS(map[string]string{"root/app.js": "export const x = 1;"})
	r := &FileResolver{Root: "root", FS: fs}

	resolved, err := r.ResolveID(context.Background(), "/app.js")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.ID != "/app.js" {
		t.Fatalf("expected resolved id /app.js, got %q", resolved.ID)
	}
}

func TestResolveIDReturnsErrorForMissingFile(t *testing.T) {
	fs := platform.NewMapFS(map[string]string{"root/.keep": ""})
	r := &FileResolver{Root: "root", FS: fs}

	if _, err := r.ResolveID(context.Background(), "/missing.js"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestResolveIDHandsBareSpecifiersToTheOptimizer(t *testing.T) {
	sched := fakeScheduler{}
	clock := platform.NewMockTimeProvider(time.Unix(0, 0))
	opt := optimizer.New(optimizer.StrategyLazy, fakeBundler{}, sched, clock, nil)
	r := &FileResolver{Root: "root", Environment: "client", FS: platform.NewMapFS(nil), Optimizer: opt}

	resolved, err := r.ResolveID(context.Background(), "lit")
	if err != nil {
		t.Fatal(err)
	}
	if bare, _ := resolved.Meta["bare"].(bool); !bare {
		t.Fatal("expected a bare specifier to be marked as such")
	}
	if !strings.Contains(resolved.ID, depsPrefix+"client/") {
		t.Fatalf("expected the resolved id to point at the client deps namespace, got %q", resolved.ID)
	}
}

func TestIsBareSpecifier(t *testing.T) {
	cases := map[string]bool{
		"lit":               true,
		"@lit/reactive-element": true,
		"./local.js":        false,
		"../up.js":          false,
		"/root.js":          false,
		"https://cdn.example/x.js": false,
	}
	for spec, want := range cases {
		if got := isBareSpecifier(spec); got != want {
			t.Errorf("isBareSpecifier(%q) = %v, want %v", spec, got, want)
		}
	}
}
