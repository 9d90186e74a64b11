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

// Package h5host describes the surface that h5par expects the host
// file library to expose. Apart from the reference writers MemWriter
// and FileWriter, everything in this package is a collaborator
// interface or descriptor, not an implementation: the object model,
// on-disk B-tree chunk indexing, and the single-threaded write path
// all live on the other side of these interfaces and are out of scope
// for h5par.
package h5host

import "fmt"

// PipelineFlag marks optional behavior for a single filter slot
// in a FilterPipeline.
type PipelineFlag uint32

const (
	// Optional means a missing plugin or a runtime failure for this
	// filter slot is tolerated: the slot is masked out of the chunk
	// rather than failing the whole write.
	Optional PipelineFlag = 1 << iota
	// Reverse is set on read-side (decode) pipelines; h5par never
	// sets it, but the flag is threaded through to filter callables
	// for ABI compatibility with the host's filter-class layout.
	Reverse
)

// PipelineEntry is one stage of a FilterPipeline, as read from the
// host's property-list equivalent.
type PipelineEntry struct {
	ID        int
	Flags     PipelineFlag
	CDValues  []uint32
	clientTag string // human-readable label for diagnostics only
}

// Tag returns a diagnostic label for the entry (filter id by default).
func (e PipelineEntry) Tag() string {
	if e.clientTag != "" {
		return e.clientTag
	}
	return fmt.Sprintf("filter#%d", e.ID)
}

// WithTag attaches a diagnostic label, returning the updated entry.
func (e PipelineEntry) WithTag(tag string) PipelineEntry {
	e.clientTag = tag
	return e
}

// FilterPipeline is an ordered sequence of filter stages, exactly as
// stored in the host's object header filter-pipeline message.
type FilterPipeline []PipelineEntry

// Dataset is the subset of the host's dataset/dataspace/property-list
// object model that h5par needs: rank, logical extents, element size,
// and the chunk shape plus filter pipeline pulled from the property
// list.
type Dataset struct {
	// Rank is r, 1 <= Rank <= 32.
	Rank int
	// Extent holds D[0..r).
	Extent []uint64
	// ElemSize is e, in bytes.
	ElemSize int
	// ChunkShape holds C[0..r), each 1 <= C[i] <= D[i] in the common
	// (non-degenerate) case.
	ChunkShape []uint64
	// Pipeline is the filter pipeline configured on the dataset's
	// property list.
	Pipeline FilterPipeline
}

// Validate checks the structural invariants a Dataset must already
// satisfy before h5par walks its chunk grid: it does not duplicate
// the host's own property-list validation.
func (d *Dataset) Validate() error {
	if d.Rank < 1 || d.Rank > 32 {
		return fmt.Errorf("h5host: rank %d out of range [1,32]", d.Rank)
	}
	if len(d.Extent) != d.Rank || len(d.ChunkShape) != d.Rank {
		return fmt.Errorf("h5host: extent/chunk-shape length must equal rank %d", d.Rank)
	}
	if d.ElemSize <= 0 {
		return fmt.Errorf("h5host: element size must be positive, got %d", d.ElemSize)
	}
	for i, c := range d.ChunkShape {
		if c == 0 {
			return fmt.Errorf("h5host: chunk dimension %d is zero", i)
		}
		if d.Extent[i] == 0 {
			return fmt.Errorf("h5host: extent dimension %d is zero", i)
		}
	}
	return nil
}

// ChunkElems returns K = prod(C[i]).
func (d *Dataset) ChunkElems() uint64 {
	k := uint64(1)
	for _, c := range d.ChunkShape {
		k *= c
	}
	return k
}

// RawChunkSize returns Braw = K * e.
func (d *Dataset) RawChunkSize() int {
	return int(d.ChunkElems()) * d.ElemSize
}

// GridDims returns ceil(D[i]/C[i]) for each axis.
func (d *Dataset) GridDims() []uint64 {
	g := make([]uint64, d.Rank)
	for i := range g {
		g[i] = ceilDiv(d.Extent[i], d.ChunkShape[i])
	}
	return g
}

// ChunkCount returns N = prod(ceil(Di/Ci)).
func (d *Dataset) ChunkCount() uint64 {
	n := uint64(1)
	for _, g := range d.GridDims() {
		n *= g
	}
	return n
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// Writer is the host storage primitive that h5par writes through.
// It mirrors the "write one encoded chunk at logical offset O with
// filter-failure mask M" primitive the host's serial write path
// already relies on (see other_examples' scigolib-hdf5
// dataset_write_chunked.go, which shows the same Allocate+
// WriteAtAddress shape from the host side).
//
// Implementations of Writer MUST be safe for concurrent calls to
// WriteChunk on distinct chunk origins of the same Dataset; h5par
// calls WriteChunk unlocked from every worker.
type Writer interface {
	// WriteChunk writes nbytes of buf as the encoded payload for the
	// chunk whose logical origin is origin, recording mask as the
	// filter-failure bit set for that chunk.
	WriteChunk(origin []uint64, buf []byte, nbytes int, mask uint64) error
}

// FilterClass is the callable contract a resolved filter exposes: it
// may replace buffer with a freshly allocated, larger buffer, in
// which case it is responsible
// for the old allocation and for updating capacity via the returned
// slice's cap. A returned nbytes of 0 indicates failure.
type FilterClass interface {
	// Name identifies the filter class for diagnostics.
	Name() string
	// Apply runs the filter forward (the write-side direction).
	// flags carries the PipelineEntry.Flags for this invocation plus
	// any write_flags the caller ORs in. It returns the new buffer
	// (which may be buf itself, grown in place via append, or a
	// fresh allocation) and the number of valid bytes in it, or
	// (nil, 0) on failure.
	Apply(flags PipelineFlag, cdValues []uint32, buf []byte, nbytes int) (out []byte, newNBytes int)
}
