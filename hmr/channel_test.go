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

import "testing"

type fakeChannel struct {
	sent   []Payload
	closed bool
}

func (f *fakeChannel) Send(p Payload) error  { f.sent = append(f.sent, p); return nil }
func (f *fakeChannel) On(Event, Listener)    {}
func (f *fakeChannel) Off(Event, Listener)   {}
func (f *fakeChannel) Listen() error         { return nil }
func (f *fakeChannel) Close() error          { f.closed = true; return nil }

func TestBroadcasterSendFansOutToAllChannels(t *testing.T) {
	b := NewBroadcaster()
	a, c := &fakeChannel{}, &fakeChannel{}
	b.Add(a)
	b.Add(c)

	payload := FullReloadPayload("/src/app.js")
	if err := b.Send(payload); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []*fakeChannel{a, c} {
		if len(ch.sent) != 1 || ch.sent[0].Type != PayloadFullReload {
			t.Fatalf("channel %d did not receive the broadcast: %+v", i, ch.sent)
		}
	}
}

func TestBroadcasterFiresConnectionOnceAllReady(t *testing.T) {
	b := NewBroadcaster()
	a, c := &fakeChannel{}, &fakeChannel{}
	b.Add(a)
	b.Add(c)

	fired := 0
	b.On(EventConnection, func(any) { fired++ })

	b.MarkReady(a)
	if fired != 0 {
		t.Fatalf("expected connection listener not to fire until all channels ready, fired=%d", fired)
	}
	b.MarkReady(c)
	if fired != 1 {
		t.Fatalf("expected connection listener to fire exactly once, fired=%d", fired)
	}
}

func TestBroadcasterCloseClosesAllChannels(t *testing.T) {
	b := NewBroadcaster()
	a, c := &fakeChannel{}, &fakeChannel{}
	b.Add(a)
	b.Add(c)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !c.closed {
		t.Fatal("expected Close to close every constituent channel")
	}
	if err := b.Send(FullReloadPayload("x")); err != nil {
		t.Fatal(err)
	}
	if len(a.sent) != 0 {
		t.Fatal("expected no sends to reach channels removed by Close")
	}
}
