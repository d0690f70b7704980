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
	"io/fs"
	"testing"
	"time"

	"bennypowers.dev/devgraph/internal/platform"
)

func TestReadWithRetryReturnsImmediatelyOnNonEmptyRead(t *testing.T) {
	clock := platform.NewMockTimeProvider(time.Unix(0, 0))
	fsys := platform.NewMapFileSystem(clock)
	fsys.AddFile("src/app.js", "console.log(1)", 0o644)

	data, err := ReadWithRetry(fsys, clock, "src/app.js")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "console.log(1)" {
		t.Fatalf("got %q", data)
	}
	if len(clock.GetSleepCalls()) != 0 {
		t.Fatal("expected no retry sleeps for a non-empty read")
	}
}

// delayedWriteFS wraps a MapFileSystem and, once Stat has been called
// afterNStats times for file, performs a write with an advanced mtime --
// deterministically simulating an editor's second write landing mid-retry
// without relying on goroutine scheduling.
type delayedWriteFS struct {
	*platform.MapFileSystem
	file        string
	content     string
	afterNStats int
	statCount   int
}

func (d *delayedWriteFS) Stat(name string) (fs.FileInfo, error) {
	if name == d.file {
		d.statCount++
		if d.statCount == d.afterNStats {
			d.AddFile(d.file, d.content, 0o644)
		}
	}
	return d.MapFileSystem.Stat(name)
}

func TestReadWithRetryRetriesUntilMtimeAdvances(t *testing.T) {
	clock := platform.NewMockTimeProvider(time.Unix(0, 0))
	fsys := platform.NewMapFileSystem(clock)
	fsys.AddFile("src/app.js", "", 0o644)

	w := &delayedWriteFS{
		MapFileSystem: fsys,
		file:          "src/app.js",
		content:       "console.log(2)",
		afterNStats:   2,
	}

	data, err := ReadWithRetry(w, clock, "src/app.js")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "console.log(2)" {
		t.Fatalf("expected retried read to observe full content, got %q", data)
	}
}

func TestReadWithRetryExhaustsAttemptsOnPersistentEmptyFile(t *testing.T) {
	clock := platform.NewMockTimeProvider(time.Unix(0, 0))
	fsys := platform.NewMapFileSystem(clock)
	fsys.AddFile("src/empty.js", "", 0o644)

	data, err := ReadWithRetry(fsys, clock, "src/empty.js")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty result after exhausting retries, got %q", data)
	}
	if got := len(clock.GetSleepCalls()); got != readRetryAttempts {
		t.Fatalf("expected %d retry sleeps, got %d", readRetryAttempts, got)
	}
}
