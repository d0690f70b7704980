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

package optimizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type runState int

const (
	stateIdle runState = iota
	stateScanning
	stateDebouncing
	stateProcessing
	stateCommitting
)

const (
	// DebounceWindow is how long registerMissingImport waits for more
	// discoveries before kicking off a bundle run.
	DebounceWindow = 100 * time.Millisecond
	// IdleWindow is how long after the last in-flight request finishes
	// the optimizer waits before treating the server as idle enough to
	// arm its first run.
	IdleWindow = 100 * time.Millisecond
	// WatchdogWindow forces a first run even if no requests ever arrive.
	WatchdogWindow = 100 * time.Millisecond
)

// ReloadNotifier is invoked once a commit determines a full reload is
// required. Callers must invalidate their module graph(s) before doing
// anything else inside this callback, then broadcast the full-reload
// payload over every environment's HMR channel — the optimizer itself
// holds no reference to a graph or a channel.
type ReloadNotifier func(triggeredBy string)

// Optimizer implements the dep-optimizer state machine for one
// environment: debounced missing-dependency discovery, a serial
// bundle/commit/cancel pipeline, and the first-run gate that keeps a
// cold server from issuing a stale pre-bundle.
type Optimizer struct {
	Strategy Strategy
	Bundler  Bundler
	Scheduler
	Clock interface {
		Now() time.Time
	}
	OnReload ReloadNotifier

	mu       sync.Mutex
	state    runState
	metadata *Metadata
	session  string

	debounceTimer Timer

	batchDone     chan struct{}
	queuedBatches []chan struct{}

	gateOpen        bool
	pendingRequests int
	idleTimer       Timer
	watchdogTimer   Timer
	watchdogFired   bool

	workerSources map[string]struct{}
}

// New returns an Optimizer in the idle state with empty metadata.
func New(strategy Strategy, bundler Bundler, scheduler Scheduler, clock interface{ Now() time.Time }, onReload ReloadNotifier) *Optimizer {
	o := &Optimizer{
		Strategy:      strategy,
		Bundler:       bundler,
		Scheduler:     scheduler,
		Clock:         clock,
		OnReload:      onReload,
		metadata:      NewMetadata(),
		session:       fmt.Sprintf("%d", clock.Now().UnixNano()),
		workerSources: make(map[string]struct{}),
	}
	if strategy == StrategyPreScan {
		o.gateOpen = true
	}
	return o
}

// Metadata returns a snapshot of the optimizer's current committed state.
// Callers must not mutate the returned value.
func (o *Optimizer) Metadata() *Metadata {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metadata.clone()
}

// LoadPersisted replaces the optimizer's metadata with a previously
// persisted snapshot whose hash still matches the current inputs,
// skipping a cold-start bundle entirely.
func (o *Optimizer) LoadPersisted(m *Metadata) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metadata = m.clone()
}

// RegisterMissingImport is called by the transform pipeline when it hits
// a bare import it cannot resolve from the already-committed bundle. It
// returns a DepInfo immediately (with a speculative browserHash) so the
// caller can rewrite the import URL without blocking on the next commit.
func (o *Optimizer) RegisterMissingImport(id, resolvedPath string) DepInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.metadata.Optimized[id]; ok {
		return existing
	}
	if existing, ok := o.metadata.Chunks[id]; ok {
		return existing
	}
	if existing, ok := o.metadata.Discovered[id]; ok {
		return existing
	}

	if o.batchDone == nil {
		o.batchDone = make(chan struct{})
	}

	dep := DepInfo{
		ID:          id,
		Src:         resolvedPath,
		BrowserHash: o.speculativeBrowserHash(id),
		Processing:  o.batchDone,
	}
	o.metadata.Discovered[id] = dep

	if o.gateOpen {
		o.armDebounce()
	}
	return dep
}

// RegisterWorkersSource removes id from first-run request tracking:
// worker bundles run their own nested optimizer and must not block the
// parent's first run on their completion.
func (o *Optimizer) RegisterWorkersSource(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workerSources[id] = struct{}{}
}

// DelayUntil records one in-flight request against the first-run gate.
// The returned done func must be called exactly once when the request
// completes; once the last outstanding request finishes, the optimizer
// waits one more IdleWindow of true idleness before opening the gate.
func (o *Optimizer) DelayUntil(id string) (done func()) {
	o.mu.Lock()
	if _, isWorker := o.workerSources[id]; isWorker {
		o.mu.Unlock()
		return func() {}
	}
	o.pendingRequests++
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.pendingRequests--
			if o.pendingRequests <= 0 {
				o.pendingRequests = 0
				o.armIdleWatch()
			}
		})
	}
}

// armIdleWatch must be called with o.mu held. It (re)starts the idle
// timer that opens the gate after IdleWindow of no new requests.
func (o *Optimizer) armIdleWatch() {
	if o.gateOpen {
		return
	}
	if o.idleTimer != nil {
		o.idleTimer.Stop()
	}
	o.idleTimer = o.Scheduler.AfterFunc(IdleWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.pendingRequests > 0 {
			return
		}
		o.openGateLocked()
	})
}

// EnsureFirstRun arms a watchdog that force-opens the gate after
// WatchdogWindow even if no request ever calls DelayUntil, so a server
// that never receives a request still eventually pre-bundles.
func (o *Optimizer) EnsureFirstRun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gateOpen || o.watchdogFired {
		return
	}
	o.watchdogTimer = o.Scheduler.AfterFunc(WatchdogWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.watchdogFired = true
		o.openGateLocked()
	})
}

// openGateLocked must be called with o.mu held.
func (o *Optimizer) openGateLocked() {
	if o.gateOpen {
		return
	}
	o.gateOpen = true
	if len(o.metadata.Discovered) > 0 {
		o.armDebounce()
	}
}

// armDebounce must be called with o.mu held. It (re)starts the 100ms
// debounce window; each new discovery resets it so a burst of missing
// imports collapses into one bundle run.
func (o *Optimizer) armDebounce() {
	if o.state == stateProcessing || o.state == stateCommitting {
		return
	}
	o.state = stateDebouncing
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
	}
	o.debounceTimer = o.Scheduler.AfterFunc(DebounceWindow, o.runBatch)
}

// speculativeBrowserHash must be called with o.mu held. It produces the
// placeholder hash a freshly-discovered dep gets before any real commit,
// derived from the current hash, the known dep sets, the new id, and the
// optimizer's session so two different server runs never collide.
func (o *Optimizer) speculativeBrowserHash(missing string) string {
	h := sha256.New()
	h.Write([]byte(o.metadata.Hash))
	h.Write([]byte{0})
	names := make([]string, 0, len(o.metadata.Discovered))
	for id := range o.metadata.Discovered {
		names = append(names, id)
	}
	sort.Strings(names)
	h.Write([]byte(strings.Join(names, ",")))
	h.Write([]byte{0})
	h.Write([]byte(missing))
	h.Write([]byte{0})
	h.Write([]byte(o.session))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// run.go continues with the processing/committing transition.
