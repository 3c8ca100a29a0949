package instance

import (
	"sync"
	"weak"

	"remoting/jlog"
	"remoting/rpcerr"
)

// weakHandle type-erases a weak.Pointer[T] so InstanceInfo can hold one
// regardless of the proxy's concrete type.
type weakHandle interface {
	get() (any, bool)
}

type typedWeak[T any] struct{ p weak.Pointer[T] }

func (w typedWeak[T]) get() (any, bool) {
	v := w.p.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

// InstanceInfo is the registry entry for one ObjectId (spec.md §3).
// Exactly one of hard/weak is set: hard for locally-owned originals
// (invariant 2), weak for proxies standing in for a remote original
// (invariant 3).
type InstanceInfo struct {
	Identifier ObjectId
	hard       any
	weak       weakHandle
}

// Released reports invariant 3's collection predicate: no hard ref, and
// (if a weak ref was ever set) its target has been collected.
func (info *InstanceInfo) Released() bool {
	if info.hard != nil {
		return false
	}
	if info.weak == nil {
		return true
	}
	_, alive := info.weak.get()
	return !alive
}

// Manager is the global ObjectId <-> object registry for one process. A
// sync.Map backs it directly because the spec requires iteration (Sweep)
// to be safe concurrently with marshalling (spec.md §4.2).
type Manager struct {
	entries sync.Map // ObjectId -> *InstanceInfo
}

func NewManager() *Manager { return &Manager{} }

// IdFor allocates (or returns the existing) id for a local object,
// recording a hard reference (spec.md §4.2).
func (m *Manager) IdFor(obj any, typeFullName string) ObjectId {
	if id, ok := m.TryGetId(obj); ok {
		return id
	}
	id := NewId(typeFullName)
	m.entries.Store(id, &InstanceInfo{Identifier: id, hard: obj})
	return id
}

// TryGet is an O(1) lookup; returns (nil,false) if released or unknown.
func (m *Manager) TryGet(id ObjectId) (any, bool) {
	v, ok := m.entries.Load(id)
	if !ok {
		return nil, false
	}
	info := v.(*InstanceInfo)
	if info.hard != nil {
		return info.hard, true
	}
	if info.weak != nil {
		return info.weak.get()
	}
	return nil, false
}

// TryGetId is the reverse lookup by reference equality. It scans, which
// the spec explicitly allows ("acceptable at marshalling time").
func (m *Manager) TryGetId(obj any) (ObjectId, bool) {
	var found ObjectId
	var ok bool
	m.entries.Range(func(k, v any) bool {
		info := v.(*InstanceInfo)
		var candidate any
		if info.hard != nil {
			candidate = info.hard
		} else if info.weak != nil {
			candidate, _ = info.weak.get()
		}
		if candidate != nil && candidate == obj {
			found, ok = info.Identifier, true
			return false
		}
		return true
	})
	return found, ok
}

// AddOrReplaceHard idempotently inserts a hard-held entry for a local id,
// enforcing invariant 2. Used when decoding a RemoteReference whose id
// turns out to be local (the peer is handing us back our own object).
func (m *Manager) AddOrReplaceHard(id ObjectId, obj any) error {
	if !IsLocal(id) {
		return rpcerr.New(rpcerr.ProtocolError, "AddOrReplaceHard: id "+string(id)+" is not local")
	}
	m.entries.Store(id, &InstanceInfo{Identifier: id, hard: obj})
	return nil
}

// AddOrReplaceWeak idempotently inserts a weakly-held proxy entry for a
// remote id, enforcing invariant 3. The weak reference is anchored to
// ptr itself: ptr must be the exact pointer user code will hold (the
// synthesized proxy), not a copy, or the weak reference will never see
// it collected.
func AddOrReplaceWeak[T any](m *Manager, id ObjectId, ptr *T) error {
	if IsLocal(id) {
		return rpcerr.New(rpcerr.ProtocolError, "AddOrReplaceWeak: id "+string(id)+" is local")
	}
	m.entries.Store(id, &InstanceInfo{Identifier: id, weak: typedWeak[T]{weak.Make(ptr)}})
	return nil
}

// Remove drops an entry, used in response to an inbound GcCleanup naming
// an id this process owns locally (spec.md §4.5).
func (m *Manager) Remove(id ObjectId) {
	m.entries.Delete(id)
}

// Resolve looks up an id the way ReadArgument needs: fatal if it parses
// as local but is missing (the peer invented a local id), otherwise a
// plain miss.
func (m *Manager) Resolve(id ObjectId) (any, error) {
	obj, ok := m.TryGet(id)
	if ok {
		return obj, nil
	}
	if IsLocal(id) {
		return nil, rpcerr.New(rpcerr.ProtocolError, "peer referenced local id with no entry: "+string(id))
	}
	return nil, nil
}

// Sweep scans all entries; for each released one it appends the id to a
// batch and drops the entry locally, then — if the batch is non-empty —
// calls emit once with the whole batch so the caller can write a single
// outgoing GcCleanup frame (spec.md §4.2).
func (m *Manager) Sweep(emit func(ids []ObjectId) error) error {
	var released []ObjectId
	m.entries.Range(func(k, v any) bool {
		id := k.(ObjectId)
		info := v.(*InstanceInfo)
		if info.Released() {
			released = append(released, id)
		}
		return true
	})
	for _, id := range released {
		m.entries.Delete(id)
	}
	if len(released) == 0 {
		return nil
	}
	jlog.StdLogger.Info("instance: sweep reclaiming ", len(released), " entries")
	return emit(released)
}

// Len reports the number of live entries, for tests/diagnostics.
func (m *Manager) Len() int {
	n := 0
	m.entries.Range(func(k, v any) bool { n++; return true })
	return n
}
