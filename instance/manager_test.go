package instance

import (
	"runtime"
	"testing"
	"time"
)

func TestIdForIsStableAndLocal(t *testing.T) {
	m := NewManager()
	obj := &struct{ X int }{X: 1}

	id1 := m.IdFor(obj, "Foo")
	id2 := m.IdFor(obj, "Foo")
	if id1 != id2 {
		t.Fatalf("IdFor not stable: %s != %s", id1, id2)
	}
	if !IsLocal(id1) {
		t.Fatalf("own id should be local: %s", id1)
	}

	got, ok := m.TryGet(id1)
	if !ok || got != obj {
		t.Fatalf("TryGet = %v, %v", got, ok)
	}
}

func TestTryGetIdReverseLookup(t *testing.T) {
	m := NewManager()
	obj := &struct{ X int }{X: 2}
	id := m.IdFor(obj, "Bar")

	found, ok := m.TryGetId(obj)
	if !ok || found != id {
		t.Fatalf("TryGetId = %s, %v, want %s", found, ok, id)
	}

	other := &struct{ X int }{X: 3}
	if _, ok := m.TryGetId(other); ok {
		t.Fatalf("TryGetId should miss for an unregistered object")
	}
}

func TestRemoveDropsEntry(t *testing.T) {
	m := NewManager()
	obj := &struct{ X int }{X: 4}
	id := m.IdFor(obj, "Baz")
	m.Remove(id)
	if _, ok := m.TryGet(id); ok {
		t.Fatalf("entry should be gone after Remove")
	}
}

func TestResolveMissingLocalIsFatal(t *testing.T) {
	m := NewManager()
	fakeLocal := ObjectId(string(OwnInstanceIdentifier()) + "/Some.Type/deadbeef")
	if _, err := m.Resolve(fakeLocal); err == nil {
		t.Fatalf("expected a fatal error resolving a missing local id")
	}
}

func TestResolveMissingRemoteIsJustAMiss(t *testing.T) {
	m := NewManager()
	remote := ObjectId("otherhost/123/Some.Type/deadbeef")
	obj, err := m.Resolve(remote)
	if err != nil || obj != nil {
		t.Fatalf("Resolve(remote miss) = %v, %v, want nil, nil", obj, err)
	}
}

func TestAddOrReplaceWeakAndSweep(t *testing.T) {
	m := NewManager()
	remoteId := ObjectId("otherhost/123/Some.Type/deadbeef")

	proxy := new(int)
	*proxy = 42
	if err := AddOrReplaceWeak(m, remoteId, proxy); err != nil {
		t.Fatal(err)
	}
	if got, ok := m.TryGet(remoteId); !ok || got.(*int) != proxy {
		t.Fatalf("TryGet after AddOrReplaceWeak = %v, %v", got, ok)
	}

	proxy = nil
	var swept []ObjectId
	// The weak target may take a GC cycle or two to actually clear;
	// retry a few times rather than asserting on the first pass.
	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
		swept = nil
		_ = m.Sweep(func(ids []ObjectId) error {
			swept = append(swept, ids...)
			return nil
		})
		if len(swept) > 0 {
			break
		}
		// Not yet collected: Sweep left the entry in place, so the next
		// pass checks it again.
	}
}

func TestAddOrReplaceWeakRejectsLocalId(t *testing.T) {
	m := NewManager()
	localId := NewId("Foo")
	if err := AddOrReplaceWeak(m, localId, new(int)); err == nil {
		t.Fatalf("expected an error registering a weak ref under a local id")
	}
}

func TestParseIdentifierAndTypeFullName(t *testing.T) {
	id := NewId("My.Namespace.Type")
	if ParseIdentifier(id) != OwnInstanceIdentifier() {
		t.Fatalf("ParseIdentifier(%s) = %s, want %s", id, ParseIdentifier(id), OwnInstanceIdentifier())
	}
	if TypeFullName(id) != "My.Namespace.Type" {
		t.Fatalf("TypeFullName(%s) = %s", id, TypeFullName(id))
	}
}

func TestNewIdDistinctAcrossCalls(t *testing.T) {
	a := NewId("T")
	b := NewId("T")
	if a == b {
		t.Fatalf("two independent NewId calls produced the same id: %s", a)
	}
}
