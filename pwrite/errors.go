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

package pwrite

import (
	"fmt"
	"sync"
)

// ChunkError names the chunk (by origin) and worker that produced a
// fatal error, so a caller can tell which part of the write failed
// without needing to parse the wrapped error string.
type ChunkError struct {
	Origin []uint64
	Worker int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("pwrite: chunk %v (worker %d): %v", e.Origin, e.Worker, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// firstFatal holds the first fatal error reported by any worker,
// mirroring db.QueueStatus.atomicMerge: every worker
// races to report a failure, but only the first one sticks, and every
// subsequent report is discarded rather than overwriting it. A plain
// mutex-protected field is used instead of an atomic CAS over a
// pointer because ChunkError is not directly CAS-able (a pointer swap
// would still need the same lock to read back safely here).
type firstFatal struct {
	mu  sync.Mutex
	err error
}

// report records err as the first fatal error seen, if one has not
// already been recorded. Later calls are no-ops.
func (f *firstFatal) report(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *firstFatal) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
