// Package container implements the well-known-service lookup (spec.md
// §4.4's RequestServiceReference): the one hook through which a client
// obtains a reference to a server-side singleton by name instead of by
// ObjectId, adapted from the teacher's service.ServiceMgr (a process-
// wide registry, initialized at bootstrap, torn down at process exit).
package container

import (
	"sync"

	"remoting/rpcerr"
)

var global = NewRegistry()

// Registry is a name -> object map for well-known remotable services.
type Registry struct {
	mu   sync.RWMutex
	byNm map[string]any
}

func NewRegistry() *Registry {
	return &Registry{byNm: make(map[string]any)}
}

// Register installs obj (which must embed marshal.RemotableBase, so
// WriteArgument marshals it as a RemoteReference) under name. Typically
// called once per service at process startup.
func (r *Registry) Register(name string, obj any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNm[name] = obj
}

func (r *Registry) Lookup(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.byNm[name]
	if !ok {
		return nil, rpcerr.New(rpcerr.ProxyManagementError, "no well-known service registered under "+name)
	}
	return obj, nil
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byNm, name)
}

// Global is the process-wide registry the server dispatcher's
// RequestServiceReference handler consults. A process only ever runs
// one instance manager and one well-known-service namespace.
func Global() *Registry { return global }
