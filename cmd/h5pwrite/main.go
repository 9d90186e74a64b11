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

//go:build linux

// Command h5pwrite demonstrates the pwrite engine end to end: it reads
// a raw source array from a file, a dataset descriptor (extent, chunk
// shape, filter pipeline) from a YAML sidecar, and writes the chunked,
// filtered result into an output file via h5host.FileWriter.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/scigolib/h5par/h5host"
	"github.com/scigolib/h5par/pwrite"
)

// descriptorFile is the on-disk shape of the YAML sidecar; it mirrors
// h5host.Dataset, except that each pipeline entry carries an
// "optional" bool in place of a flag word, and is unmarshaled with
// sigs.k8s.io/yaml's UnmarshalStrict, which rejects unknown fields
// after its YAML-to-JSON pass.
type descriptorFile struct {
	Rank       int      `json:"rank"`
	Extent     []uint64 `json:"extent"`
	ElemSize   int      `json:"elemSize"`
	ChunkShape []uint64 `json:"chunkShape"`
	Pipeline   []struct {
		ID       int      `json:"id"`
		Optional bool     `json:"optional"`
		CDValues []uint32 `json:"cdValues"`
	} `json:"pipeline"`
}

func (d *descriptorFile) toDataset() *h5host.Dataset {
	ds := &h5host.Dataset{
		Rank:       d.Rank,
		Extent:     d.Extent,
		ElemSize:   d.ElemSize,
		ChunkShape: d.ChunkShape,
	}
	for _, p := range d.Pipeline {
		entry := h5host.PipelineEntry{ID: p.ID, CDValues: p.CDValues}
		if p.Optional {
			entry.Flags |= h5host.Optional
		}
		ds.Pipeline = append(ds.Pipeline, entry)
	}
	return ds
}

func main() {
	descPath := flag.String("desc", "", "path to a YAML dataset descriptor")
	srcPath := flag.String("src", "", "path to the raw source array")
	outPath := flag.String("out", "", "path to the output chunk file")
	nthreads := flag.Int("nthreads", 0, "worker count (0: H5_NTHREADS, then 1)")
	flag.Parse()

	if *descPath == "" || *srcPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: h5pwrite -desc descriptor.yaml -src data.raw -out out.chunks")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*descPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading descriptor: %s\n", err)
		os.Exit(1)
	}
	var df descriptorFile
	if err := yaml.UnmarshalStrict(raw, &df); err != nil {
		fmt.Fprintf(os.Stderr, "parsing descriptor: %s\n", err)
		os.Exit(1)
	}
	ds := df.toDataset()

	src, err := os.ReadFile(*srcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading source: %s\n", err)
		os.Exit(1)
	}

	w, err := h5host.NewFileWriter(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening output: %s\n", err)
		os.Exit(1)
	}
	defer w.Close()

	cfg := pwrite.Config{
		Logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
	stats, err := cfg.Write(context.Background(), ds, w, src, *nthreads)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write failed after %d chunks (%d bytes): %s\n",
			stats.ChunksWritten, stats.BytesWritten, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d chunks, %d bytes\n", stats.ChunksWritten, stats.BytesWritten)
}
