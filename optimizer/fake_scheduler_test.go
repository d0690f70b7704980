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
	"sync"
	"time"
)

// fakeTimer is a no-op Timer; fakeScheduler never actually waits, so
// Stop only needs to suppress a fn that hasn't fired yet.
type fakeTimer struct {
	s  *fakeScheduler
	fn func()
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i, scheduled := range t.s.pending {
		if scheduled == t {
			t.s.pending = append(t.s.pending[:i], t.s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// fakeScheduler captures every AfterFunc call instead of waiting in real
// time. Tests advance the state machine by calling Fire, which runs every
// currently-pending callback (in registration order) exactly once —
// deterministic, with no goroutines racing a real timer.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{} }

func (s *fakeScheduler) AfterFunc(_ time.Duration, fn func()) Timer {
	t := &fakeTimer{s: s, fn: fn}
	s.mu.Lock()
	s.pending = append(s.pending, t)
	s.mu.Unlock()
	return t
}

// Fire runs every timer scheduled so far and clears the pending list. If a
// fired callback schedules new timers (e.g. a debounce reset), those are
// left pending for the next Fire call rather than run recursively.
func (s *fakeScheduler) Fire() {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// Pending reports how many timers are currently armed and unfired.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
