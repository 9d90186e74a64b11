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

import "github.com/scigolib/h5par/h5host"

// WorkItem is the owned unit of hand-off between the extractor and a
// chunk worker. Buf always has length == cap == the raw chunk size at
// enqueue time; workers may replace it during filtering.
type WorkItem struct {
	Origin []uint64
	Buf    []byte
	NBytes int
}

// Extractor walks a dataset's chunk grid in lexicographic order and
// materialises each chunk into a freshly-owned, full-shape buffer,
// invoking emit for each one. emit is called from the caller's
// goroutine (the producer); Extractor performs no I/O and holds no
// lock, so it is safe to call emit directly into a bounded queue's
// Enqueue.
type Extractor struct {
	ds    *h5host.Dataset
	grid  *Grid
	src   []byte // row-major source array, len == prod(Di)*e
}

// NewExtractor validates that src is exactly the size implied by ds's
// extents and element size, then returns an Extractor ready to walk
// ds's chunk grid.
func NewExtractor(ds *h5host.Dataset, src []byte) (*Extractor, error) {
	want := ds.ElemSize
	for _, d := range ds.Extent {
		want *= int(d)
	}
	if len(src) != want {
		return nil, &SizeError{Want: want, Got: len(src)}
	}
	return &Extractor{ds: ds, grid: NewGrid(ds), src: src}, nil
}

// SizeError reports a source-buffer/dataset-extent size mismatch.
type SizeError struct {
	Want, Got int
}

func (e *SizeError) Error() string {
	return "chunked: source buffer has " + itoa(e.Got) + " bytes, dataset extent implies " + itoa(e.Want)
}

// Grid returns the chunk grid computed for the dataset.
func (x *Extractor) Grid() *Grid { return x.grid }

// Run walks every chunk in lexicographic order and calls emit(item)
// for each freshly-materialised WorkItem. Run returns the first error
// emit returns, if any, and otherwise walks all N = Grid().Total()
// chunks before returning nil.
func (x *Extractor) Run(emit func(WorkItem) error) error {
	braw := x.ds.RawChunkSize()
	n := x.grid.Total()
	for i := uint64(0); i < n; i++ {
		idx := x.grid.Index(i)
		origin := Origin(idx, x.ds.ChunkShape)
		buf := make([]byte, braw)
		x.copyChunk(buf, origin)
		item := WorkItem{Origin: origin, Buf: buf, NBytes: braw}
		if err := emit(item); err != nil {
			return err
		}
	}
	return nil
}

// copyChunk copies the in-extent hyper-rectangle
// [origin, origin+ChunkShape) from x.src into dst, row by row along
// the last axis (a contiguous memcpy of ChunkShape[r-1]*e bytes per
// inner run, fewer when the chunk runs past the extent on the last
// axis); bytes beyond the dataset's logical extent (edge chunks)
// are left at their zero value, since dst is freshly allocated with
// make.
func (x *Extractor) copyChunk(dst []byte, origin []uint64) {
	ds := x.ds
	r := ds.Rank
	e := ds.ElemSize
	shape := ds.ChunkShape
	extent := ds.Extent

	// in-extent run length along the last axis, in elements
	lastRun := shape[r-1]
	if origin[r-1]+lastRun > extent[r-1] {
		if origin[r-1] >= extent[r-1] {
			lastRun = 0
		} else {
			lastRun = extent[r-1] - origin[r-1]
		}
	}
	runBytes := int(lastRun) * e

	// strides, in elements, of the source array (row-major)
	srcStride := make([]uint64, r)
	srcStride[r-1] = 1
	for a := r - 2; a >= 0; a-- {
		srcStride[a] = srcStride[a+1] * extent[a+1]
	}
	// strides, in elements, of the destination chunk buffer
	dstStride := make([]uint64, r)
	dstStride[r-1] = 1
	for a := r - 2; a >= 0; a-- {
		dstStride[a] = dstStride[a+1] * shape[a+1]
	}

	if runBytes == 0 {
		return
	}

	idx := make([]uint64, r-1) // outer multi-index over axes [0, r-1)
	for {
		inRange := true
		var srcOff, dstOff uint64
		for a := 0; a < r-1; a++ {
			if origin[a]+idx[a] >= extent[a] {
				inRange = false
				break
			}
			srcOff += (origin[a] + idx[a]) * srcStride[a]
			dstOff += idx[a] * dstStride[a]
		}
		if inRange {
			srcOff += origin[r-1] * srcStride[r-1]
			so := int(srcOff) * e
			do := int(dstOff) * e
			copy(dst[do:do+runBytes], x.src[so:so+runBytes])
		}

		// advance outer multi-index (odometer over axes [0, r-1))
		a := r - 2
		for a >= 0 {
			idx[a]++
			if idx[a] < shape[a] {
				break
			}
			idx[a] = 0
			a--
		}
		if a < 0 {
			break
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
