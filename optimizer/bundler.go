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

import "context"

// BundleResult is what a Bundler hands back for one run: the metadata it
// would produce if committed, plus the atomic commit/cancel pair the
// optimizer's state machine picks exactly one of.
type BundleResult struct {
	Hash        string
	BrowserHash string
	Optimized   map[string]DepInfo
	Chunks      map[string]DepInfo

	Commit func() error
	Cancel func() error
}

// Bundler is the black box the optimizer hands a snapshot of discovered
// dependencies to. A concrete implementation produces BundleResult by
// writing pre-bundled chunks to a temp directory and renaming it into
// place on Commit.
type Bundler interface {
	Bundle(ctx context.Context, inputDeps map[string]DepInfo) (*BundleResult, error)
}

// BundlerError wraps a failure from the Bundler contract, so callers can
// distinguish a bundling failure from a programming error in the state
// machine itself.
type BundlerError struct {
	Dep string
	Err error
}

func (e *BundlerError) Error() string {
	if e.Dep == "" {
		return "bundler: " + e.Err.Error()
	}
	return "bundler: " + e.Dep + ": " + e.Err.Error()
}

func (e *BundlerError) Unwrap() error { return e.Err }
