// Zaparoo Runners
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runners.
//
// Zaparoo Runners is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runners is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runners.  If not, see <http://www.gnu.org/licenses/>.

package tasks

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/zaparoo-runners/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is the subscriber channel length used when a caller
// asks for less than one slot.
const DefaultBufferSize = 16

// Task is a single runner install running in the background. Events are
// fanned out to every subscriber in emission order.
type Task struct {
	subscribers map[int]*subscriber
	terminal    *runners.Event
	done        chan struct{}
	key         runners.Key
	version     runners.Version
	mu          syncutil.Mutex
	nextID      int
}

// subscriber queues events its reader has not taken yet. Status and
// terminal events are always kept. A queued progress event is replaced by
// a newer one, so a slow reader still sees the latest percent before the
// next status. Fields other than the channels are guarded by Task.mu.
type subscriber struct {
	out     chan runners.Event
	wake    chan struct{}
	quit    chan struct{}
	pending []runners.Event
	id      int
	sending bool
	final   bool
}

// push hands e to the reader. Must be called with Task.mu held.
func (s *subscriber) push(e runners.Event) {
	if len(s.pending) == 0 && !s.sending {
		select {
		case s.out <- e:
			return
		default:
		}
	}
	n := len(s.pending)
	if n > 0 && e.Kind == runners.EventProgress && s.pending[n-1].Kind == runners.EventProgress {
		s.pending[n-1] = e
	} else {
		s.pending = append(s.pending, e)
	}
	s.notify()
}

func (s *subscriber) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func newTask(key runners.Key, v runners.Version) *Task {
	return &Task{
		key:         key,
		version:     v,
		subscribers: make(map[int]*subscriber),
		done:        make(chan struct{}),
	}
}

func (t *Task) Key() runners.Key {
	return t.key
}

func (t *Task) Version() runners.Version {
	return t.version
}

// Subscribe registers a new event channel. Status events and the final
// Completed or Failed event are never dropped. Progress events that the
// reader falls behind on are merged into the most recent one. The channel
// is closed after the terminal event. Subscribing to a finished task
// yields only its terminal event. Callers must read until the channel is
// closed or Unsubscribe.
func (t *Task) Subscribe(bufferSize int) (events <-chan runners.Event, id int) {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id = t.nextID
	t.nextID++

	if t.terminal != nil {
		ch := make(chan runners.Event, 1)
		ch <- *t.terminal
		close(ch)
		return ch, id
	}

	s := &subscriber{
		id:   id,
		out:  make(chan runners.Event, bufferSize),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	t.subscribers[id] = s
	go t.deliver(s)
	log.Debug().
		Str("task", t.key.String()).
		Int("subscriber_id", id).
		Msg("task subscriber registered")
	return s.out, id
}

// deliver moves queued events to the subscriber channel as the reader
// makes room, and closes the channel after the terminal event or on
// Unsubscribe.
func (t *Task) deliver(s *subscriber) {
	defer func() {
		t.mu.Lock()
		if t.subscribers[s.id] == s {
			delete(t.subscribers, s.id)
		}
		t.mu.Unlock()
		close(s.out)
	}()
	for {
		t.mu.Lock()
		if len(s.pending) == 0 {
			final := s.final
			t.mu.Unlock()
			if final {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		e := s.pending[0]
		s.pending = s.pending[1:]
		s.sending = true
		t.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.quit:
			return
		}

		t.mu.Lock()
		s.sending = false
		t.mu.Unlock()
	}
}

// Unsubscribe stops delivery to a subscriber and closes its channel.
// Events already in the channel can still be read. The install itself
// keeps running.
func (t *Task) Unsubscribe(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.subscribers[id]; ok {
		delete(t.subscribers, id)
		close(s.quit)
	}
}

// Done is closed once the terminal event has been recorded.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the terminal event if the task has finished.
func (t *Task) Result() (runners.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal == nil {
		return runners.Event{}, false
	}
	return *t.terminal, true
}

// Wait blocks until the task finishes and returns its terminal event.
func (t *Task) Wait(ctx context.Context) (runners.Event, error) {
	select {
	case <-t.done:
		ev, _ := t.Result()
		return ev, nil
	case <-ctx.Done():
		return runners.Event{}, fmt.Errorf("waiting for %s: %w", t.key, ctx.Err())
	}
}

// emit queues a progress or status event for every subscriber without
// blocking the install.
func (t *Task) emit(e runners.Event) {
	if e.Terminal() {
		t.finish(e)
		return
	}
	e.Version = t.version.Name

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminal != nil {
		return
	}
	for _, s := range t.subscribers {
		s.push(e)
	}
}

// finish records the terminal event and queues it as the last event for
// every subscriber. Later calls are ignored.
func (t *Task) finish(e runners.Event) {
	e.Version = t.version.Name

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminal != nil {
		return
	}
	t.terminal = &e
	for _, s := range t.subscribers {
		s.push(e)
		s.final = true
		s.notify()
	}
	close(t.done)
}
