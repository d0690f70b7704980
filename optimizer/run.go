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
	"context"
	"log"
)

// runBatch is invoked by the debounce timer. It snapshots the current
// optimized+discovered sets, rotates the batch promise, and hands the
// snapshot to the bundler. Runs strictly serially: a new batch cannot
// begin while one is processing or committing, matching the spec's
// ordering guarantee that new discoveries during a run only mutate
// metadata.discovered and are folded into the *next* batch.
func (o *Optimizer) runBatch() {
	o.mu.Lock()
	if o.state == stateProcessing || o.state == stateCommitting {
		o.mu.Unlock()
		return
	}
	o.state = stateProcessing

	snapshot := make(map[string]DepInfo, len(o.metadata.Optimized)+len(o.metadata.Discovered))
	for id, dep := range o.metadata.Optimized {
		snapshot[id] = dep
	}
	for id, dep := range o.metadata.Discovered {
		snapshot[id] = dep
	}

	thisBatch := o.batchDone
	o.batchDone = nil
	if thisBatch != nil {
		o.queuedBatches = append(o.queuedBatches, thisBatch)
	}
	discoveredAtSnapshot := len(o.metadata.Discovered)
	o.mu.Unlock()

	result, err := o.Bundler.Bundle(context.Background(), snapshot)
	if err != nil {
		o.onBundleFailure(err)
		return
	}
	o.onBundleComplete(result, discoveredAtSnapshot)
}

// onBundleFailure resolves every queued batch future and returns to idle
// without touching committed metadata, per the spec's "any bundler
// failure" disposition.
func (o *Optimizer) onBundleFailure(err error) {
	log.Printf("optimizer: bundle failed: %v", err)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metadata.Discovered = make(map[string]DepInfo)
	o.resolveQueuedBatchesLocked()
	o.state = stateIdle
}

// onBundleComplete implements the committing-state decision tree: detect
// interop mismatches, decide reload necessity, and either cancel (if new
// deps arrived mid-run and a reload would be needed) or commit.
func (o *Optimizer) onBundleComplete(result *BundleResult, discoveredAtSnapshot int) {
	o.mu.Lock()
	o.state = stateCommitting

	mismatch := needsInteropMismatch(o.metadata.Discovered, result.Optimized)
	needsReload := len(mismatch) > 0 || result.Hash != o.metadata.Hash || fileHashChanged(o.metadata.Optimized, result.Optimized)
	newDepsDiscovered := len(o.metadata.Discovered) > discoveredAtSnapshot

	if needsReload && newDepsDiscovered {
		o.mu.Unlock()
		if err := result.Cancel(); err != nil {
			log.Printf("optimizer: cancel failed: %v", err)
		}
		o.mu.Lock()
		o.resolveQueuedBatchesLocked()
		o.state = stateIdle
		if len(o.metadata.Discovered) > 0 {
			o.armDebounce()
		}
		o.mu.Unlock()
		return
	}

	o.mu.Unlock()
	if err := result.Commit(); err != nil {
		o.onBundleFailure(err)
		return
	}
	o.mu.Lock()

	browserHash := result.BrowserHash
	if !needsReload {
		browserHash = o.metadata.BrowserHash
		for id, dep := range result.Optimized {
			dep.BrowserHash = browserHash
			result.Optimized[id] = dep
		}
	}

	newOptimized := result.Optimized
	for id, dep := range o.metadata.Discovered {
		if _, inNew := newOptimized[id]; !inNew {
			dep.BrowserHash = browserHash
			newOptimized[id] = dep
		}
	}

	o.metadata.Optimized = newOptimized
	o.metadata.Chunks = result.Chunks
	o.metadata.Discovered = make(map[string]DepInfo)
	o.metadata.Hash = result.Hash
	o.metadata.BrowserHash = browserHash

	o.resolveQueuedBatchesLocked()
	o.state = stateIdle
	triggeredByReload := needsReload
	o.mu.Unlock()

	if triggeredByReload && o.OnReload != nil {
		o.OnReload("")
	}
}

// resolveQueuedBatchesLocked must be called with o.mu held.
func (o *Optimizer) resolveQueuedBatchesLocked() {
	for _, ch := range o.queuedBatches {
		close(ch)
	}
	o.queuedBatches = nil
}

// needsInteropMismatch returns every discovered id whose NeedsInterop flag
// differs from what the bundler inferred for it.
func needsInteropMismatch(discovered, bundled map[string]DepInfo) []string {
	var mismatched []string
	for id, dep := range discovered {
		if got, ok := bundled[id]; ok && got.NeedsInterop != dep.NeedsInterop {
			mismatched = append(mismatched, id)
		}
	}
	return mismatched
}

// fileHashChanged reports whether any dep already in optimized changed
// FileHash in the new bundle — the third reload trigger alongside an
// interop mismatch or a changed input hash.
func fileHashChanged(optimized, bundled map[string]DepInfo) bool {
	for id, dep := range optimized {
		if newDep, ok := bundled[id]; ok && newDep.FileHash != dep.FileHash {
			return true
		}
	}
	return false
}
