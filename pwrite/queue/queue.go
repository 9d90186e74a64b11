// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package queue implements the bounded blocking hand-off between the
// chunk extractor (producer) and the chunk workers (consumers). It
// never drops an enqueued item; the implicit bound on memory is the
// number of in-flight chunk buffers, which is governed by
// producer/consumer concurrency rather than a fixed-capacity ring.
package queue

import (
	"errors"
	"sync"
)

// Item is an opaque owned work item. Queue never inspects the
// contents of Item; it only moves ownership from producer to
// consumer.
type Item interface{}

// Queue is a single-producer, multi-consumer FIFO of Item values with
// a sentinel-driven close protocol: each call to Close enqueues one
// nil "done" item, and the producer is expected to call Close once per
// worker (see pwrite.Config.Write, which sends exactly T sentinels).
type Queue struct {
	mu     sync.Mutex
	notify sync.Cond
	items  []Item
	closed bool
	added  uint64 // monotonic count of non-sentinel enqueues
}

// New returns an empty, open Queue.
func New() *Queue {
	q := &Queue{}
	q.notify.L = &q.mu
	return q
}

// ErrClosed is returned by Enqueue if the queue has already observed
// its close latch (defensive; normal use only enqueues sentinels
// through Close).
var ErrClosed = errors.New("queue: enqueue after close")

// Enqueue places item at the tail and wakes one waiting consumer.
// Enqueue never blocks: the bound on outstanding work is implicit in
// producer/consumer concurrency, not in Queue itself.
func (q *Queue) Enqueue(item Item) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.added++
	q.mu.Unlock()
	q.notify.Signal()
	return nil
}

// Close enqueues one sentinel (a nil Item) and wakes one waiting
// consumer. Close does not itself close the queue for further
// Enqueue calls: the queue only refuses new items once every worker
// has been sent its sentinel and Shut has been called (see Shut).
// This split exists because the worker pool needs exactly T
// sentinels, one per worker, rather than a single shared close latch.
func (q *Queue) Close() {
	q.mu.Lock()
	q.items = append(q.items, nil)
	q.mu.Unlock()
	q.notify.Signal()
}

// Shut sets the closed latch: once every outstanding item (including
// sentinels) has been drained, subsequent Dequeue calls return (nil,
// false) immediately instead of blocking. Idempotent.
func (q *Queue) Shut() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify.Broadcast()
}

// Dequeue blocks while the queue is empty and not shut, then returns
// the head item. It returns (nil, false) once the queue is both empty
// and shut. Sentinel items (enqueued via Close) are returned as
// (nil, true); callers can distinguish "sentinel" from "queue shut" by
// checking the boolean together with the item's identity. The chunk
// worker (pwrite's runWorker) treats both alike and returns.
func (q *Queue) Dequeue() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			return nil, false
		}
		q.notify.Wait()
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item, true
}

// ElementsAdded returns the monotonic total of non-sentinel items
// enqueued so far, for diagnostics.
func (q *Queue) ElementsAdded() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.added
}
