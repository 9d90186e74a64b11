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

// Package filterpipe resolves a host FilterPipeline descriptor into
// an ordered array of executable h5host.FilterClass values, loading
// shared-object plugins on demand. The by-name lookup shape is
// grounded on compr.Compression(name string) Compressor; the
// shared-object loading itself has no analogue anywhere in the
// retrieved pack, so it is built directly on the standard library's
// plugin package (see DESIGN.md).
package filterpipe

import (
	"fmt"
	"os"
	"plugin"
	"sync"

	"github.com/google/uuid"

	"github.com/scigolib/h5par/h5host"
)

// PluginRef names the shared object and exported symbol that provide
// a filter_id not covered by a built-in.
type PluginRef struct {
	// SOName is the shared-object file name (e.g. "libh5lz4.so"),
	// resolved relative to the plugin search path.
	SOName string
	// Symbol is the exported symbol name. It must have type
	// func() h5host.FilterClass.
	Symbol string
}

// BuiltinFactory constructs a FilterClass that requires no shared
// object, e.g. the host's internal deflate codec.
type BuiltinFactory func() h5host.FilterClass

// DefaultPluginPathEnv is the environment variable consulted for the
// plugin search path.
const DefaultPluginPathEnv = "HDF5_PLUGIN_PATH"

// DefaultPluginPath is used when DefaultPluginPathEnv is unset.
const DefaultPluginPath = "/usr/local/hdf5/lib/plugin"

// Registry is a lock-protected, process-wide map from filter_id to
// its resolution (built-in factory or plugin reference), plus a cache
// of opened shared-object handles.
type Registry struct {
	mu         sync.Mutex
	builtins   map[int]BuiltinFactory
	plugins    map[int]PluginRef
	loaded     map[int]*loadedPlugin
	searchPath string
	load       pluginLoader

	// Logf, if non-nil, receives one diagnostic message each time a
	// filter_id's shared object is opened (on its first resolve, or the
	// first resolve after every reference to it was released),
	// carrying the assigned load-id so later log lines for the same
	// plugin can be correlated by grepping for it. It is not called on
	// cache hits (refcount bumps) or for built-ins.
	Logf func(format string, args ...any)
}

type loadedPlugin struct {
	handle   *plugin.Plugin
	class    h5host.FilterClass
	loadID   uuid.UUID
	refcount int
}

// pluginLoader opens the shared object at path and looks up symbol,
// returning a constructed FilterClass plus the open handle (kept to
// pin the shared object for the life of the process; Go's plugin
// package has no unload primitive). It is a Registry field rather
// than a free function so tests can substitute a fake loader and
// exercise the refcount/loadID/Logf bookkeeping in resolve without a
// real shared object on disk.
type pluginLoader func(path, symbol string) (h5host.FilterClass, *plugin.Plugin, error)

func loadSharedObject(path, symbol string) (h5host.FilterClass, *plugin.Plugin, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("filterpipe: loading plugin %q: %w", path, err)
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, nil, fmt.Errorf("filterpipe: symbol %q not found in %q: %w", symbol, path, err)
	}
	ctor, ok := sym.(func() h5host.FilterClass)
	if !ok {
		return nil, nil, fmt.Errorf("filterpipe: symbol %q in %q has wrong type %T", symbol, path, sym)
	}
	return ctor(), p, nil
}

// NewRegistry returns an empty Registry. If searchPath is "", the
// HDF5_PLUGIN_PATH environment variable is consulted, falling back to
// DefaultPluginPath.
func NewRegistry(searchPath string) *Registry {
	if searchPath == "" {
		if v, ok := os.LookupEnv(DefaultPluginPathEnv); ok && v != "" {
			searchPath = v
		} else {
			searchPath = DefaultPluginPath
		}
	}
	return &Registry{
		builtins:   make(map[int]BuiltinFactory),
		plugins:    make(map[int]PluginRef),
		loaded:     make(map[int]*loadedPlugin),
		searchPath: searchPath,
		load:       loadSharedObject,
	}
}

func (r *Registry) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

// LoadID returns the diagnostic correlation id assigned when
// filter_id's plugin was first opened, and whether it is currently
// loaded. Built-ins and unresolved ids report ok=false.
func (r *Registry) LoadID(id int) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.loaded[id]
	if !ok {
		return uuid.UUID{}, false
	}
	return lp.loadID, true
}

// RegisterBuiltin associates a built-in filter class with filter_id.
// Built-ins take priority over any plugin mapping for the same id.
func (r *Registry) RegisterBuiltin(id int, f BuiltinFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[id] = f
}

// RegisterPlugin associates a shared-object/symbol pair with
// filter_id, for ids that are not built-ins.
func (r *Registry) RegisterPlugin(id int, ref PluginRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[id] = ref
}

// ErrUnknownFilter is returned by resolve when filter_id has neither
// a built-in nor a plugin mapping.
type ErrUnknownFilter struct{ ID int }

func (e *ErrUnknownFilter) Error() string {
	return fmt.Sprintf("filterpipe: no built-in or plugin mapping for filter id %d", e.ID)
}

// resolve looks up id, loading its shared object on first use. While
// any reference to a filter_id is held, subsequent resolves reuse the
// cached handle and bump its refcount; once release has dropped the
// last reference, the next resolve loads it again under a new load-id. Callers must call
// release(id) exactly once per successful resolve, once their workers
// have joined, to allow the handle to be dropped when no in-flight
// call still references it.
func (r *Registry) resolve(id int) (h5host.FilterClass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.builtins[id]; ok {
		return f(), nil
	}
	if lp, ok := r.loaded[id]; ok {
		lp.refcount++
		return lp.class, nil
	}
	ref, ok := r.plugins[id]
	if !ok {
		return nil, &ErrUnknownFilter{ID: id}
	}
	path := r.searchPath + "/" + ref.SOName
	class, handle, err := r.load(path, ref.Symbol)
	if err != nil {
		return nil, fmt.Errorf("filterpipe: resolving filter %d: %w", id, err)
	}
	lp := &loadedPlugin{handle: handle, class: class, loadID: uuid.New(), refcount: 1}
	r.loaded[id] = lp
	r.logf("filterpipe: loaded plugin %q for filter %d, load-id %s", path, id, lp.loadID)
	return lp.class, nil
}

// release drops one reference on id's loaded plugin (a no-op for
// built-ins). It does not actually unload the shared object — Go's
// plugin package offers no unload primitive — but it does let the
// Registry forget the FilterClass value once nothing references it,
// so a subsequent resolve for the same id reopens (and Go memoizes)
// the same underlying *plugin.Plugin rather than holding a stale
// application-level handle forever.
func (r *Registry) release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.loaded[id]
	if !ok {
		return
	}
	lp.refcount--
	if lp.refcount <= 0 {
		delete(r.loaded, id)
	}
}
