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

import "testing"

func validDataset() *Dataset {
	return &Dataset{
		Rank:       2,
		Extent:     []uint64{4, 4},
		ElemSize:   4,
		ChunkShape: []uint64{2, 2},
	}
}

func TestValidateAcceptsWellFormedDataset(t *testing.T) {
	if err := validDataset().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsRankOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		rank int
	}{
		{"zero", 0},
		{"negative", -1},
		{"above max", 33},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ds := validDataset()
			ds.Rank = c.rank
			if err := ds.Validate(); err == nil {
				t.Fatalf("Validate() with rank %d = nil, want error", c.rank)
			}
		})
	}
}

func TestValidateRejectsExtentLengthMismatch(t *testing.T) {
	ds := validDataset()
	ds.Extent = []uint64{4, 4, 4}
	if err := ds.Validate(); err == nil {
		t.Fatal("Validate() with mismatched extent length = nil, want error")
	}
}

func TestValidateRejectsChunkShapeLengthMismatch(t *testing.T) {
	ds := validDataset()
	ds.ChunkShape = []uint64{2}
	if err := ds.Validate(); err == nil {
		t.Fatal("Validate() with mismatched chunk-shape length = nil, want error")
	}
}

func TestValidateRejectsZeroElemSize(t *testing.T) {
	ds := validDataset()
	ds.ElemSize = 0
	if err := ds.Validate(); err == nil {
		t.Fatal("Validate() with zero element size = nil, want error")
	}
}

func TestValidateRejectsNegativeElemSize(t *testing.T) {
	ds := validDataset()
	ds.ElemSize = -1
	if err := ds.Validate(); err == nil {
		t.Fatal("Validate() with negative element size = nil, want error")
	}
}

func TestValidateRejectsZeroChunkDimension(t *testing.T) {
	ds := validDataset()
	ds.ChunkShape = []uint64{0, 2}
	if err := ds.Validate(); err == nil {
		t.Fatal("Validate() with zero chunk dimension = nil, want error")
	}
}

func TestValidateRejectsZeroExtentDimension(t *testing.T) {
	ds := validDataset()
	ds.Extent = []uint64{4, 0}
	if err := ds.Validate(); err == nil {
		t.Fatal("Validate() with zero extent dimension = nil, want error")
	}
}
