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
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// Stats summarizes one Write call, for callers that want more than a
// bare success/failure signal (e.g. a demo CLI reporting throughput).
type Stats struct {
	// ChunksWritten is the number of chunks for which WriteChunk was
	// called and returned successfully, whether or not their filter
	// pipeline reported a mask bit.
	ChunksWritten uint64
	// BytesWritten is the sum of nbytes across all successful
	// WriteChunk calls, i.e. the encoded (post-filter) size.
	BytesWritten uint64
	// MaskHistogram counts how many chunks were written with each
	// distinct filter-failure mask value; a non-empty entry other
	// than {0: N} means some chunks skipped or failed an optional
	// filter.
	MaskHistogram map[uint64]uint64
}

// SortedMasks returns the mask values present in MaskHistogram in
// ascending order, for deterministic diagnostic output.
func (s Stats) SortedMasks() []uint64 {
	masks := make([]uint64, 0, len(s.MaskHistogram))
	for m := range s.MaskHistogram {
		masks = append(masks, m)
	}
	slices.Sort(masks)
	return masks
}

// workerStats accumulates Stats across every worker goroutine. The
// running totals use plain atomics; the mask histogram needs a lock
// since it is a map keyed by an arbitrary mask value, not a fixed set
// of counters.
type workerStats struct {
	chunks uint64
	bytes  uint64

	mu   sync.Mutex
	hist map[uint64]uint64
}

func (s *workerStats) recordChunk(nbytes int, mask uint64) {
	atomic.AddUint64(&s.chunks, 1)
	atomic.AddUint64(&s.bytes, uint64(nbytes))
	s.mu.Lock()
	if s.hist == nil {
		s.hist = make(map[uint64]uint64)
	}
	s.hist[mask]++
	s.mu.Unlock()
}

func (s *workerStats) snapshot() Stats {
	s.mu.Lock()
	hist := make(map[uint64]uint64, len(s.hist))
	for k, v := range s.hist {
		hist[k] = v
	}
	s.mu.Unlock()
	return Stats{
		ChunksWritten: atomic.LoadUint64(&s.chunks),
		BytesWritten:  atomic.LoadUint64(&s.bytes),
		MaskHistogram: hist,
	}
}
