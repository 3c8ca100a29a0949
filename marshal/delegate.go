package marshal

import (
	"sync"

	"remoting/instance"
)

// DelegateSink is the internal delegate constructed when decoding a
// MethodPointer (spec.md §4.3): invoking it locally turns into an
// outgoing request carrying the original targetObjectId.
type DelegateSink struct {
	TargetId      instance.ObjectId
	DeclaringType string
	MethodToken   int32
	invoker       Invoker
}

// Invoke forwards a local call on the sink out to the object it was
// bound to when the MethodPointer was decoded.
func (s *DelegateSink) Invoke(args []any) ([]any, error) {
	return s.invoker.Invoke(s.TargetId, s.DeclaringType, s.MethodToken, nil, args, 0)
}

// DelegateTable tracks add_X/remove_X event registrations so a later
// remove_X can find and drop the same sink (spec.md §3's "Delegate
// registration entry"). Keyed by delegateId = "{hostInstanceId}.{method}".
type DelegateTable struct {
	mu      sync.Mutex
	entries map[string]*DelegateSink
}

func NewDelegateTable() *DelegateTable {
	return &DelegateTable{entries: make(map[string]*DelegateSink)}
}

// Register is an idempotent re-add under the same delegateId (spec.md §3
// "Mutated only to replace an entry under the same id").
func (t *DelegateTable) Register(delegateId string, sink *DelegateSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[delegateId] = sink
}

// Drop removes a prior registration; a second Drop for the same id is a
// documented no-op (spec.md §8 testable property on add_event/remove_event).
func (t *DelegateTable) Drop(delegateId string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, delegateId)
}

func (t *DelegateTable) Lookup(delegateId string) (*DelegateSink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[delegateId]
	return s, ok
}
