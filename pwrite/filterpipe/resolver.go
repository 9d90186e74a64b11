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
	"fmt"

	"github.com/scigolib/h5par/h5host"
)

// Slot is one resolved position in a pipeline. If Skip is true, the
// position contributes a set bit to every chunk's failure mask and
// Class is nil; this only happens for an id with the Optional flag
// that could not be resolved.
type Slot struct {
	Entry h5host.PipelineEntry
	Class h5host.FilterClass
	Skip  bool
}

// Resolved is the immutable result of resolving a FilterPipeline once
// at call entry: it is safe to share read-only across every worker
// goroutine for the duration of the call.
type Resolved struct {
	reg   *Registry
	Slots []Slot
}

// Resolve turns pipeline into a Resolved pipeline, loading any
// required shared objects. An unknown, non-optional id fails the
// whole resolution; an unknown optional id becomes a Skip slot
// instead.
func Resolve(reg *Registry, pipeline h5host.FilterPipeline) (*Resolved, error) {
	slots := make([]Slot, len(pipeline))
	for i, entry := range pipeline {
		class, err := reg.resolve(entry.ID)
		if err != nil {
			if entry.Flags&h5host.Optional != 0 {
				slots[i] = Slot{Entry: entry, Skip: true}
				continue
			}
			// unresolve anything we already loaded in this call
			// before returning, so resolution either succeeds
			// completely or leaves no side effects for this call to
			// rely on.
			for j := 0; j < i; j++ {
				if !slots[j].Skip {
					reg.release(slots[j].Entry.ID)
				}
			}
			return nil, fmt.Errorf("filterpipe: resolving required filter %s: %w", entry.Tag(), err)
		}
		slots[i] = Slot{Entry: entry, Class: class}
	}
	return &Resolved{reg: reg, Slots: slots}, nil
}

// Release drops the Registry references taken during Resolve. Call
// it once, after every worker has joined.
func (p *Resolved) Release() {
	for _, s := range p.Slots {
		if !s.Skip {
			p.reg.release(s.Entry.ID)
		}
	}
}
