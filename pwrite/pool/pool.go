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

// Package pool spawns a fixed-size set of worker goroutines that each
// run an identical task function, and joins them on request. The
// sizing rule (API argument, then environment fallback, then default)
// lives in Size rather than here so that it can be unit-tested
// without spawning goroutines.
package pool

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Tmax is the compile-time ceiling on worker count.
const Tmax = 256

// NThreadsEnv is the environment variable consulted when the caller
// passes nthreads == 0 to Size.
const NThreadsEnv = "H5_NTHREADS"

// Size resolves the worker-pool size T from the API argument
// (nthreads), falling back to the H5_NTHREADS environment variable,
// then to 1, and finally clamping to [1, Tmax].
//
// The environment variable is parsed exactly once per call. If it is
// set but does not consist solely of ASCII digits, the fallback is
// T = 1 and a diagnostic is written via warn (nil warn is allowed).
func Size(nthreads int, warn func(format string, args ...any)) int {
	t := nthreads
	if t == 0 {
		if val, ok := os.LookupEnv(NThreadsEnv); ok {
			n, err := parseDigits(val)
			if err != nil {
				if warn != nil {
					warn("%s=%q is not a valid thread count (%s); using 1", NThreadsEnv, val, err)
				}
				t = 1
			} else {
				t = n
			}
		}
	}
	if t <= 0 {
		t = 1
	}
	if t > Tmax {
		t = Tmax
	}
	return t
}

// parseDigits requires s to consist solely of ASCII digits 0-9: no
// sign, no leading/trailing whitespace. h5par rejects anything else
// rather than guessing at an upstream convention.
func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit character %q", r)
		}
	}
	return strconv.Atoi(s)
}

// Pool is a fixed-size set of worker goroutines, all running Task
// against a shared, read-only context value. Lifecycle: construct via
// New, Run starts the T goroutines, Join blocks until all of them
// return. A Pool is not reusable across calls: there is no worker
// restart.
type Pool struct {
	n  int
	wg sync.WaitGroup
}

// New returns a Pool sized to n workers. n must already be clamped
// (see Size); New panics if n <= 0.
func New(n int) *Pool {
	if n <= 0 {
		panic("pool: n must be > 0")
	}
	return &Pool{n: n}
}

// N returns the number of workers in the pool.
func (p *Pool) N() int { return p.n }

// Run starts n goroutines, each invoking task(workerIndex). Run
// returns immediately; use Join to wait for completion.
func (p *Pool) Run(task func(workerIndex int)) {
	p.wg.Add(p.n)
	for i := 0; i < p.n; i++ {
		go func(i int) {
			defer p.wg.Done()
			task(i)
		}(i)
	}
}

// Join blocks until every worker started by Run has returned.
func (p *Pool) Join() {
	p.wg.Wait()
}
