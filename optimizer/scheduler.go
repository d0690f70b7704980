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

import "time"

// Timer is the subset of *time.Timer the optimizer's debounce/idle/
// watchdog windows need: the ability to cancel a not-yet-fired callback.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts deferred callback execution so debounce/idle/
// watchdog windows can be driven deterministically in tests, the same
// role internal/platform.TimeProvider plays for Sleep-based retries —
// but debouncing needs stop-and-reschedule, which a plain After(d)
// channel cannot express cleanly.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// realScheduler schedules callbacks with the standard library's timer,
// the production implementation.
type realScheduler struct{}

// NewRealScheduler returns a Scheduler backed by time.AfterFunc.
func NewRealScheduler() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
