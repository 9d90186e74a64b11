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

// Package chunked implements the chunk-grid math and the producer
// side of the bounded hand-off: decomposing a logical dataset into
// fixed-shape chunks in lexicographic order and materialising each
// one into a freshly-owned buffer.
//
// The chunk-grid walk is grounded on the ChunkCoordinator shape seen
// in the host-library reference implementation (see
// other_examples/...scigolib-hdf5__dataset_write_chunked.go:
// GetTotalChunks / GetChunkCoordinate / ExtractChunkData), generalized
// to arbitrary rank and edge-chunk zero-fill.
package chunked

import "github.com/scigolib/h5par/h5host"

// Grid describes the chunk index space of a dataset: ceil(Di/Ci) per
// axis and the total chunk count N.
type Grid struct {
	rank  int
	dims  []uint64 // ceil(Di/Ci), per axis
	total uint64
}

// NewGrid computes the chunk grid for ds. ds is assumed already
// validated (see h5host.Dataset.Validate).
func NewGrid(ds *h5host.Dataset) *Grid {
	return &Grid{rank: ds.Rank, dims: ds.GridDims(), total: ds.ChunkCount()}
}

// Total returns N, the total number of chunks.
func (g *Grid) Total() uint64 { return g.total }

// Index returns the multi-index (c0, ..., c_{r-1}) for the i'th chunk
// in lexicographic order (the last axis varies fastest), 0 <= i <
// Total().
func (g *Grid) Index(i uint64) []uint64 {
	idx := make([]uint64, g.rank)
	for a := g.rank - 1; a >= 0; a-- {
		idx[a] = i % g.dims[a]
		i /= g.dims[a]
	}
	return idx
}

// Origin returns the logical origin (ci*Ci) for a chunk multi-index.
func Origin(idx []uint64, chunkShape []uint64) []uint64 {
	origin := make([]uint64, len(idx))
	for a := range idx {
		origin[a] = idx[a] * chunkShape[a]
	}
	return origin
}
