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

package h5host

import (
	"fmt"
	"sync"
)

// MemWriter is a reference, in-memory Writer for tests. It is not a
// production chunk index: it keeps one encoded
// payload per chunk origin in a map, guarded by a mutex, which is
// sufficient to exercise the write path's invariants (exactly one
// write per chunk origin, concurrent-safe WriteChunk) without
// reimplementing the host's on-disk B-tree.
type MemWriter struct {
	mu     sync.Mutex
	chunks map[string]*ChunkRecord
	order  []string // origin keys, insertion order, for deterministic iteration
}

// ChunkRecord is what MemWriter keeps for one written chunk.
type ChunkRecord struct {
	Origin []uint64
	Buf    []byte
	NBytes int
	Mask   uint64
}

// NewMemWriter returns an empty MemWriter.
func NewMemWriter() *MemWriter {
	return &MemWriter{chunks: make(map[string]*ChunkRecord)}
}

func originKey(origin []uint64) string {
	return fmt.Sprint(origin)
}

// WriteChunk implements Writer. It returns an error if the same
// origin is written twice: exactly one write-through call is expected
// per chunk index.
func (m *MemWriter) WriteChunk(origin []uint64, buf []byte, nbytes int, mask uint64) error {
	key := originKey(origin)
	rec := &ChunkRecord{
		Origin: append([]uint64(nil), origin...),
		Buf:    append([]byte(nil), buf[:nbytes]...),
		NBytes: nbytes,
		Mask:   mask,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.chunks[key]; dup {
		return fmt.Errorf("h5host: duplicate write-through for chunk origin %v", origin)
	}
	m.chunks[key] = rec
	m.order = append(m.order, key)
	return nil
}

// Count returns the number of distinct chunks written so far.
func (m *MemWriter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

// Chunk returns the record for origin, or nil if it was never
// written.
func (m *MemWriter) Chunk(origin []uint64) *ChunkRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks[originKey(origin)]
}

// Records returns all written chunk records sorted by insertion
// order, for deterministic test assertions.
func (m *MemWriter) Records() []*ChunkRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChunkRecord, len(m.order))
	for i, k := range m.order {
		out[i] = m.chunks[k]
	}
	return out
}
