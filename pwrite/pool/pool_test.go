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

package pool

import (
	"sync/atomic"
	"testing"
)

func TestSizeExplicitArg(t *testing.T) {
	if got := Size(4, nil); got != 4 {
		t.Fatalf("Size(4, nil) = %d, want 4", got)
	}
}

func TestSizeClampsToTmax(t *testing.T) {
	if got := Size(Tmax+100, nil); got != Tmax {
		t.Fatalf("Size(Tmax+100, nil) = %d, want %d", got, Tmax)
	}
}

func TestSizeEnvFallback(t *testing.T) {
	t.Setenv(NThreadsEnv, "7")
	if got := Size(0, nil); got != 7 {
		t.Fatalf("Size(0, nil) = %d, want 7", got)
	}
}

func TestSizeEmptyEnvFallsBackToOne(t *testing.T) {
	t.Setenv(NThreadsEnv, "")
	if got := Size(0, nil); got != 1 {
		t.Fatalf("Size(0, nil) = %d, want 1", got)
	}
}

func TestSizeBadEnvFallsBackToOne(t *testing.T) {
	t.Setenv(NThreadsEnv, "4x")
	var warned bool
	warn := func(format string, args ...any) { warned = true }
	if got := Size(0, warn); got != 1 {
		t.Fatalf("Size(0, warn) = %d, want 1", got)
	}
	if !warned {
		t.Fatal("expected a diagnostic for a non-digit H5_NTHREADS value")
	}
}

func TestRunJoinAllWorkersExecute(t *testing.T) {
	p := New(8)
	var count int64
	p.Run(func(i int) {
		atomic.AddInt64(&count, 1)
	})
	p.Join()
	if count != 8 {
		t.Fatalf("count = %d, want 8", count)
	}
}

func TestNewPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for n <= 0")
		}
	}()
	New(0)
}
