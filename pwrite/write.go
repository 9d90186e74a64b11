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

// Package pwrite is the parallel filtered chunked-write engine: it
// decomposes a logical dataset into fixed-shape chunks, hands each one
// through a bounded queue to a pool of filter workers, and writes the
// filtered result back through the host's Writer primitive. Write is
// the single external entry point.
package pwrite

import (
	"context"
	"runtime/trace"

	"github.com/scigolib/h5par/h5host"
	"github.com/scigolib/h5par/pwrite/chunked"
	"github.com/scigolib/h5par/pwrite/filterpipe"
	"github.com/scigolib/h5par/pwrite/pool"
	"github.com/scigolib/h5par/pwrite/queue"
)

// Config carries the ambient knobs around a Write call: a diagnostic
// callback and a filter Registry, mirroring db.QueueRunner's injected
// Logf field rather than a global logger or logging library.
type Config struct {
	// Logf, if non-nil, receives diagnostic messages (H5_NTHREADS
	// warnings, plugin loads by the default Registry, the first fatal
	// per-chunk condition once every worker has joined, and a
	// completion summary). It is called only from the goroutine that
	// called Write, never from worker goroutines.
	Logf func(format string, args ...any)

	// Registry resolves filter_id values to callables. If nil, a
	// fresh Registry is constructed with RegisterBuiltins and no
	// plugin mappings, so a pipeline referencing only the built-in
	// filters (deflate, shuffle, zstd, s2) works with no setup.
	Registry *filterpipe.Registry
}

func (c *Config) logf(format string, args ...any) {
	if c != nil && c.Logf != nil {
		c.Logf(format, args...)
	}
}

func (c *Config) registry() *filterpipe.Registry {
	if c != nil && c.Registry != nil {
		return c.Registry
	}
	reg := filterpipe.NewRegistry("")
	filterpipe.RegisterBuiltins(reg)
	reg.Logf = c.logf
	return reg
}

// Write decomposes ds's logical extent into chunks, runs each chunk
// through ds's filter pipeline on a pool of nthreads workers, and
// writes the encoded result through w.
//
// ctx carries a trace.Task for the call; it is not used for
// cancellation of an in-flight write.
func Write(ctx context.Context, ds *h5host.Dataset, w h5host.Writer, src []byte, nthreads int) (Stats, error) {
	var cfg Config
	return cfg.Write(ctx, ds, w, src, nthreads)
}

// Write is the Config-aware form of the package-level Write function,
// letting a caller supply a Logf callback and/or a pre-populated
// filter Registry.
func (c *Config) Write(ctx context.Context, ds *h5host.Dataset, w h5host.Writer, src []byte, nthreads int) (Stats, error) {
	ctx, task := trace.NewTask(ctx, "pwrite.Write")
	defer task.End()

	if err := ds.Validate(); err != nil {
		return Stats{}, err
	}
	extractor, err := chunked.NewExtractor(ds, src)
	if err != nil {
		return Stats{}, err
	}
	resolved, err := filterpipe.Resolve(c.registry(), ds.Pipeline)
	if err != nil {
		return Stats{}, err
	}
	defer resolved.Release()

	t := pool.Size(nthreads, c.logf)
	q := queue.New()
	p := pool.New(t)
	var fatal firstFatal
	var stats workerStats

	p.Run(func(workerIndex int) {
		runWorker(workerIndex, q, resolved, w, &fatal, &stats)
	})

	produceErr := extractor.Run(func(item chunked.WorkItem) error {
		return q.Enqueue(item)
	})
	for i := 0; i < t; i++ {
		q.Close()
	}
	q.Shut()
	p.Join()

	if produceErr != nil {
		return stats.snapshot(), produceErr
	}
	if err := fatal.get(); err != nil {
		c.logf("pwrite: write completed with a fatal per-chunk condition: %s", err)
		return stats.snapshot(), err
	}
	c.logf("pwrite: wrote %d chunks (%d bytes) with %d workers", stats.snapshot().ChunksWritten, stats.snapshot().BytesWritten, t)
	return stats.snapshot(), nil
}
