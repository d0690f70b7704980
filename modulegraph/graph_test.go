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
	"sync/atomic"
	"testing"
)

func staticResolver(idFor func(string) string) Resolver {
	return ResolverFunc(func(_ context.Context, rawURL string) (*Resolved, error) {
		return &Resolved{ID: idFor(rawURL)}, nil
	})
}

func identityResolver() Resolver {
	return staticResolver(func(raw string) string { return raw })
}

func TestEnsureEntryFromURLDedupesConcurrentCallers(t *testing.T) {
	var calls int32
	g := New(ResolverFunc(func(_ context.Context, rawURL string) (*Resolved, error) {
		atomic.AddInt32(&calls, 1)
		return &Resolved{ID: rawURL}, nil
	}), true)

	var wg sync.WaitGroup
	nodes := make([]*ModuleNode, 20)
	for i := range nodes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := g.EnsureEntryFromURL(context.Background(), "/src/app.js")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			nodes[i] = n
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("resolver called %d times, want exactly 1 (single-flight)", got)
	}
	for i, n := range nodes {
		if n != nodes[0] {
			t.Fatalf("node %d differs from node 0; expected every caller to get the same node", i)
		}
	}
}

func TestEnsureEntryFromURLStripsHmrQuery(t *testing.T) {
	g := New(identityResolver(), false)
	ctx := context.Background()

	n1, err := g.EnsureEntryFromURL(ctx, "/src/app.js")
	if err != nil {
		t.Fatal(err)
	}
	n2, err := g.EnsureEntryFromURL(ctx, "/src/app.js?t=12345")
	if err != nil {
		t.Fatal(err)
	}
	if n1 != n2 {
		t.Fatal("expected ?t= query to resolve to the same node as the bare URL")
	}
}

func TestUpdateModuleInfoMaintainsImporterSymmetry(t *testing.T) {
	g := New(identityResolver(), false)
	ctx := context.Background()

	app, _ := g.EnsureEntryFromURL(ctx, "/src/app.js")
	utilMod, _ := g.EnsureEntryFromURL(ctx, "/src/util.js")

	_, err := g.UpdateModuleInfo(ctx, app, []string{"/src/util.js"}, nil, nil, nil, SelfAcceptingUnknown,
		map[string]struct{}{"/src/util.js": {}})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := app.ImportedModules[utilMod.id]; !ok {
		t.Fatal("app.ImportedModules should contain util")
	}
	if _, ok := utilMod.Importers[app.id]; !ok {
		t.Fatal("util.Importers should contain app (edge symmetry)")
	}
	if _, ok := app.StaticImported[utilMod.id]; !ok {
		t.Fatal("app.StaticImported should contain util")
	}
}

func TestUpdateModuleInfoReturnsNoLongerImported(t *testing.T) {
	g := New(identityResolver(), false)
	ctx := context.Background()

	app, _ := g.EnsureEntryFromURL(ctx, "/src/app.js")
	a, _ := g.EnsureEntryFromURL(ctx, "/src/a.js")

	_, err := g.UpdateModuleInfo(ctx, app, []string{"/src/a.js"}, nil, nil, nil, SelfAcceptingUnknown, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Importers[app.id]; !ok {
		t.Fatal("expected a to be imported by app")
	}

	dropped, err := g.UpdateModuleInfo(ctx, app, nil, nil, nil, nil, SelfAcceptingUnknown, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dropped[a.id]; !ok {
		t.Fatal("expected a.id to be reported as no-longer-imported")
	}
	if len(a.Importers) != 0 {
		t.Fatal("expected a.Importers to be empty after app stopped importing it")
	}
}

func TestUpdateModuleTransformResultIndexesEtagForClientOnly(t *testing.T) {
	ctx := context.Background()

	client := New(identityResolver(), true)
	mod, _ := client.EnsureEntryFromURL(ctx, "/src/app.js")
	client.UpdateModuleTransformResult(mod, &TransformResult{Code: "x", Etag: "abc123"})
	if got := client.GetModuleByEtag("abc123"); got != mod {
		t.Fatal("client graph should index transform result etags")
	}

	ssr := New(identityResolver(), false)
	ssrMod, _ := ssr.EnsureEntryFromURL(ctx, "/src/app.js")
	ssr.UpdateModuleTransformResult(ssrMod, &TransformResult{Code: "x", Etag: "abc123"})
	if got := ssr.GetModuleByEtag("abc123"); got != nil {
		t.Fatal("ssr graph should not index etags")
	}
}

func TestCreateFileOnlyEntryDedupesByFile(t *testing.T) {
	g := New(identityResolver(), false)
	n1 := g.CreateFileOnlyEntry("/src/reset.css")
	n2 := g.CreateFileOnlyEntry("/src/reset.css")
	if n1 != n2 {
		t.Fatal("expected CreateFileOnlyEntry to dedupe by file path")
	}
	if n1.Type != ModuleCSS {
		t.Fatalf("expected ModuleCSS, got %v", n1.Type)
	}
}
