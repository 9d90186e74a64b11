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

package chunked

import (
	"reflect"
	"testing"

	"github.com/scigolib/h5par/h5host"
)

func TestGrid4x4With2x2Chunks(t *testing.T) {
	ds := &h5host.Dataset{Rank: 2, Extent: []uint64{4, 4}, ElemSize: 4, ChunkShape: []uint64{2, 2}}
	g := NewGrid(ds)
	if g.Total() != 4 {
		t.Fatalf("Total() = %d, want 4", g.Total())
	}
	var origins [][]uint64
	for i := uint64(0); i < g.Total(); i++ {
		origins = append(origins, Origin(g.Index(i), ds.ChunkShape))
	}
	want := [][]uint64{{0, 0}, {0, 2}, {2, 0}, {2, 2}}
	if !reflect.DeepEqual(origins, want) {
		t.Fatalf("origins = %v, want %v", origins, want)
	}
}

func TestGrid5x3With2x2ChunksHasSixEdgeChunks(t *testing.T) {
	ds := &h5host.Dataset{Rank: 2, Extent: []uint64{5, 3}, ElemSize: 4, ChunkShape: []uint64{2, 2}}
	g := NewGrid(ds)
	if g.Total() != 6 {
		t.Fatalf("Total() = %d, want 6 (ceil(5/2)=3, ceil(3/2)=2, 3*2=6)", g.Total())
	}
	var origins [][]uint64
	for i := uint64(0); i < g.Total(); i++ {
		origins = append(origins, Origin(g.Index(i), ds.ChunkShape))
	}
	want := [][]uint64{{0, 0}, {0, 2}, {2, 0}, {2, 2}, {4, 0}, {4, 2}}
	if !reflect.DeepEqual(origins, want) {
		t.Fatalf("origins = %v, want %v", origins, want)
	}
}
