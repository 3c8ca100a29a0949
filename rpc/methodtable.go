// Package rpc implements the client interceptor (spec.md C4) and server
// dispatcher (spec.md C5): the pair of request/reply loops that turn a
// proxy method call into a MethodCall frame on one side and a resolved,
// reflect-invoked method call on the other. It is adapted from the
// teacher's jrpc package: the Call/pending-map/timeout shape for the
// client, and the "look the method up, build a reflect.Value arg list,
// Call it" shape for the dispatcher, both re-pointed at marshal's
// per-argument classification instead of a single whole-request blob.
package rpc

import (
	"reflect"
	"sync"

	"remoting/marshal"
	"remoting/rpcerr"
)

// methodEntry is what MethodTable resolves a (declaringType, token)
// pair to: enough information for the dispatcher to read each argument
// with its correct static type and invoke the method by reflection.
type methodEntry struct {
	method     reflect.Method
	receiver   reflect.Value
	paramTypes []reflect.Type
	isAddEvent bool
	isRemEvent bool
	// eventName is the method name with its Add/Remove prefix stripped,
	// matching the wire convention of add_X/remove_X pairs sharing the
	// event name X: a delegate registered via AddX and dropped via
	// RemoveX must resolve to the same delegateId (spec.md §3).
	eventName string
}

// MethodTable resolves a wire-level (declaringType, methodToken) pair to
// a concrete reflect.Method on a registered local object type, the way
// the teacher's BaseRpcHandler.RegisterRpcMethod walks a struct's
// methods once at startup rather than looking them up by name per call.
type MethodTable struct {
	mu      sync.RWMutex
	byToken map[string]map[int32]methodEntry // declaringType -> token -> entry
}

func NewMethodTable() *MethodTable {
	return &MethodTable{byToken: make(map[string]map[int32]methodEntry)}
}

// Register walks every exported method of receiver's type and indexes
// it under declaringType by marshal.MethodToken(name). Call this once
// per remotable object the server-side process constructs (spec.md
// §4.4's CreateInstance path, or a well-known service registered at
// bootstrap).
func (t *MethodTable) Register(declaringType string, receiver any) {
	v := reflect.ValueOf(receiver)
	typ := v.Type()

	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byToken[declaringType]
	if !ok {
		m = make(map[int32]methodEntry)
		t.byToken[declaringType] = m
	}
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		params := make([]reflect.Type, 0, method.Type.NumIn()-1)
		for p := 1; p < method.Type.NumIn(); p++ {
			params = append(params, method.Type.In(p))
		}
		isAdd := hasPrefix(method.Name, "Add")
		isRem := hasPrefix(method.Name, "Remove")
		var eventName string
		switch {
		case isAdd:
			eventName = method.Name[len("Add"):]
		case isRem:
			eventName = method.Name[len("Remove"):]
		}
		m[marshal.MethodToken(method.Name)] = methodEntry{
			method:     method,
			receiver:   v,
			paramTypes: params,
			isAddEvent: isAdd,
			isRemEvent: isRem,
			eventName:  eventName,
		}
	}
}

func (t *MethodTable) Lookup(declaringType string, token int32) (methodEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.byToken[declaringType]
	if !ok {
		return methodEntry{}, rpcerr.New(rpcerr.ProtocolError, "no registered type "+declaringType)
	}
	e, ok := m[token]
	if !ok {
		return methodEntry{}, rpcerr.New(rpcerr.ProtocolError, "no method for token on type "+declaringType)
	}
	return e, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
