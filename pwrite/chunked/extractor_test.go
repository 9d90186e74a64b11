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
	"bytes"
	"fmt"
	"testing"

	"github.com/scigolib/h5par/h5host"
)

// buildSrc5x3 returns a 5x3 row-major byte matrix where element (row,
// col) holds row*3+col+1, so values run 1..15.
func buildSrc5x3() []byte {
	src := make([]byte, 5*3)
	for row := 0; row < 5; row++ {
		for col := 0; col < 3; col++ {
			src[row*3+col] = byte(row*3 + col + 1)
		}
	}
	return src
}

func TestExtractorRejectsWrongSizedSource(t *testing.T) {
	ds := &h5host.Dataset{Rank: 2, Extent: []uint64{5, 3}, ElemSize: 1, ChunkShape: []uint64{2, 2}}
	_, err := NewExtractor(ds, make([]byte, 10))
	if err == nil {
		t.Fatal("expected a SizeError for a too-short source buffer")
	}
	var se *SizeError
	if !asSizeError(err, &se) {
		t.Fatalf("error %v is not a *SizeError", err)
	}
	if se.Want != 15 || se.Got != 10 {
		t.Fatalf("SizeError = %+v, want Want=15 Got=10", se)
	}
}

func asSizeError(err error, target **SizeError) bool {
	se, ok := err.(*SizeError)
	if ok {
		*target = se
	}
	return ok
}

func TestRun4x4With2x2ChunksEmitsFourFullChunks(t *testing.T) {
	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i + 1)
	}
	ds := &h5host.Dataset{Rank: 2, Extent: []uint64{4, 4}, ElemSize: 1, ChunkShape: []uint64{2, 2}}
	x, err := NewExtractor(ds, src)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	var items []WorkItem
	if err := x.Run(func(item WorkItem) error {
		items = append(items, item)
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("len(items) = %d, want 4", len(items))
	}
	// chunk at origin (0,0) covers rows 0-1, cols 0-1:
	// row0: src[0],src[1] = 1,2 ; row1: src[4],src[5] = 5,6
	want00 := []byte{1, 2, 5, 6}
	if !bytes.Equal(items[0].Buf, want00) {
		t.Fatalf("chunk(0,0) = %v, want %v", items[0].Buf, want00)
	}
}

func TestRunEdgeChunksZeroFillOutOfExtent(t *testing.T) {
	src := buildSrc5x3()
	ds := &h5host.Dataset{Rank: 2, Extent: []uint64{5, 3}, ElemSize: 1, ChunkShape: []uint64{2, 2}}
	x, err := NewExtractor(ds, src)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	byOrigin := map[string][]byte{}
	if err := x.Run(func(item WorkItem) error {
		byOrigin[originStr(item.Origin)] = item.Buf
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(byOrigin) != 6 {
		t.Fatalf("len(byOrigin) = %d, want 6", len(byOrigin))
	}

	// origin (0,2): col 3 is out of extent (extent col max index 2).
	// row0: src(0,2)=3, pad=0 ; row1: src(1,2)=6, pad=0
	want02 := []byte{3, 0, 6, 0}
	if got := byOrigin["[0 2]"]; !bytes.Equal(got, want02) {
		t.Fatalf("chunk(0,2) = %v, want %v", got, want02)
	}

	// origin (4,0): row 5 is out of extent (extent row max index 4).
	// row0: src(4,0)=13, src(4,1)=14 ; row1: fully zero
	want40 := []byte{13, 14, 0, 0}
	if got := byOrigin["[4 0]"]; !bytes.Equal(got, want40) {
		t.Fatalf("chunk(4,0) = %v, want %v", got, want40)
	}

	// origin (4,2): both rows and cols run off the edge.
	// row0: src(4,2)=15, pad=0 ; row1: fully zero
	want42 := []byte{15, 0, 0, 0}
	if got := byOrigin["[4 2]"]; !bytes.Equal(got, want42) {
		t.Fatalf("chunk(4,2) = %v, want %v", got, want42)
	}
}

func originStr(o []uint64) string {
	return fmt.Sprint(o)
}
