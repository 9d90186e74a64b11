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

package pwrite

import (
	"fmt"

	"github.com/scigolib/h5par/h5host"
	"github.com/scigolib/h5par/pwrite/chunked"
	"github.com/scigolib/h5par/pwrite/filterpipe"
	"github.com/scigolib/h5par/pwrite/queue"
)

// runWorker is the body of one chunk-worker goroutine: it dequeues
// work items until it sees its sentinel, runs the resolved filter
// pipeline over each one, and hands the final buffer to w.WriteChunk.
// Per-chunk fatal conditions are reported to fatal rather than
// returned, since the worker must keep draining the queue after a
// pipeline failure: the engine does not roll back already-written
// chunks.
func runWorker(workerIndex int, q *queue.Queue, pipeline *filterpipe.Resolved, w h5host.Writer, fatal *firstFatal, stats *workerStats) {
	for {
		v, ok := q.Dequeue()
		if !ok || v == nil {
			return
		}
		item := v.(chunked.WorkItem)
		processChunk(workerIndex, item, pipeline, w, fatal, stats)
	}
}

// processChunk runs one chunk through the resolved pipeline in order,
// accumulating a filter-failure mask, and writes the result through w.
func processChunk(workerIndex int, item chunked.WorkItem, pipeline *filterpipe.Resolved, w h5host.Writer, fatal *firstFatal, stats *workerStats) {
	buf := item.Buf
	nbytes := item.NBytes
	capacity := cap(buf)
	var mask uint64

	for i, slot := range pipeline.Slots {
		if slot.Skip {
			mask |= 1 << uint(i)
			continue
		}
		out, newNBytes := slot.Class.Apply(slot.Entry.Flags, slot.Entry.CDValues, buf, nbytes)
		if newNBytes == 0 {
			mask |= 1 << uint(i)
			if slot.Entry.Flags&h5host.Optional != 0 {
				continue
			}
			nbytes = capacity
			fatal.report(&ChunkError{
				Origin: item.Origin,
				Worker: workerIndex,
				Err:    fmt.Errorf("required filter %s failed on chunk", slot.Entry.Tag()),
			})
			continue
		}
		buf = out
		nbytes = newNBytes
		capacity = cap(buf)
	}

	if err := w.WriteChunk(item.Origin, buf, nbytes, mask); err != nil {
		fatal.report(&ChunkError{
			Origin: item.Origin,
			Worker: workerIndex,
			Err:    fmt.Errorf("write-through: %w", err),
		})
		return
	}
	stats.recordChunk(nbytes, mask)
}
