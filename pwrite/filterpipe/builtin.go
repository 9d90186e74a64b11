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

package filterpipe

import (
	"bytes"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"github.com/scigolib/h5par/h5host"
)

// Standard filter identifiers, matching the host library's registered
// filter numbers (filter_id is an opaque host constant; these are its
// well-known built-in values).
const (
	FilterDeflate = 1
	FilterShuffle = 2
	FilterZstd    = 32015
	FilterS2      = 32016
)

// RegisterBuiltins installs h5par's built-in filter classes (deflate,
// shuffle, zstd, s2) on reg. Callers that only need the standard set
// can call this once at startup instead of hand-registering each id.
func RegisterBuiltins(reg *Registry) {
	reg.RegisterBuiltin(FilterDeflate, func() h5host.FilterClass { return deflateFilter{} })
	reg.RegisterBuiltin(FilterShuffle, func() h5host.FilterClass { return shuffleFilter{} })
	reg.RegisterBuiltin(FilterZstd, func() h5host.FilterClass { return zstdFilter{} })
	reg.RegisterBuiltin(FilterS2, func() h5host.FilterClass { return s2Filter{} })
}

// deflateFilter wraps klauspost/compress/flate, the same
// by-name-registered-codec shape as compr.Compressor, applied to the
// one standard HDF5 built-in filter that never needs a plugin.
type deflateFilter struct{}

func (deflateFilter) Name() string { return "deflate" }

func (deflateFilter) Apply(flags h5host.PipelineFlag, cdValues []uint32, buf []byte, nbytes int) ([]byte, int) {
	level := flate.DefaultCompression
	if len(cdValues) > 0 && cdValues[0] <= 9 {
		level = int(cdValues[0])
	}
	var out bytes.Buffer
	w, err := flate.NewWriter(&out, level)
	if err != nil {
		return nil, 0
	}
	if _, err := w.Write(buf[:nbytes]); err != nil {
		return nil, 0
	}
	if err := w.Close(); err != nil {
		return nil, 0
	}
	return out.Bytes(), out.Len()
}

// shuffleFilter reorders bytes so that the k'th byte of every element
// is contiguous, per the classic HDF5 shuffle transform; it mirrors
// writer.NewShuffleFilter in the host-library reference implementation
// (other_examples/...scigolib-hdf5__dataset_write_chunked.go).
type shuffleFilter struct{}

func (shuffleFilter) Name() string { return "shuffle" }

func (shuffleFilter) Apply(flags h5host.PipelineFlag, cdValues []uint32, buf []byte, nbytes int) ([]byte, int) {
	elemSize := 1
	if len(cdValues) > 0 && cdValues[0] > 0 {
		elemSize = int(cdValues[0])
	}
	if elemSize <= 1 || nbytes%elemSize != 0 {
		out := make([]byte, nbytes)
		copy(out, buf[:nbytes])
		return out, nbytes
	}
	n := nbytes / elemSize
	out := make([]byte, nbytes)
	for k := 0; k < elemSize; k++ {
		for i := 0; i < n; i++ {
			out[k*n+i] = buf[i*elemSize+k]
		}
	}
	return out, nbytes
}

// zstdFilter wraps klauspost/compress/zstd, the codec compr.Compression
// registers under the "zstd" name.
type zstdFilter struct{}

func (zstdFilter) Name() string { return "zstd" }

func (zstdFilter) Apply(flags h5host.PipelineFlag, cdValues []uint32, buf []byte, nbytes int) ([]byte, int) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, 0
	}
	defer enc.Close()
	out := enc.EncodeAll(buf[:nbytes], nil)
	return out, len(out)
}

// s2Filter wraps klauspost/compress/s2, the other compr-registered
// codec, for callers that prefer its lower-latency profile to zstd's.
type s2Filter struct{}

func (s2Filter) Name() string { return "s2" }

func (s2Filter) Apply(flags h5host.PipelineFlag, cdValues []uint32, buf []byte, nbytes int) ([]byte, int) {
	var out bytes.Buffer
	w := s2.NewWriter(&out)
	if _, err := w.Write(buf[:nbytes]); err != nil {
		return nil, 0
	}
	if err := w.Close(); err != nil {
		return nil, 0
	}
	return out.Bytes(), out.Len()
}
