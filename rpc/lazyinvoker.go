package rpc

import (
	"sync"
	"time"

	"remoting/instance"
	"remoting/rpcerr"
)

// LazyInvoker implements marshal.Invoker over a ClientInterceptor that
// does not exist yet at construction time. The server dispatcher needs
// to hand out an Invoker for its per-connection Handler before the
// reverse channel that Invoker will actually use has been established
// (spec.md §4.6 runs the handshake in several steps after the primary
// connection is already accepting MethodCall frames); a proxy decoded
// for a client-owned callback target resolves through this Invoker and
// simply blocks until Set is called, rather than requiring bootstrap to
// happen inside a single synchronous call.
type LazyInvoker struct {
	mu    sync.RWMutex
	ci    *ClientInterceptor
	ready chan struct{}
	once  sync.Once

	// WaitTimeout bounds how long Invoke waits for Set before failing.
	WaitTimeout time.Duration
}

func NewLazyInvoker(waitTimeout time.Duration) *LazyInvoker {
	return &LazyInvoker{ready: make(chan struct{}), WaitTimeout: waitTimeout}
}

// Set installs the now-established reverse-channel interceptor. Safe to
// call at most meaningfully once; later calls replace the target.
func (l *LazyInvoker) Set(ci *ClientInterceptor) {
	l.mu.Lock()
	l.ci = ci
	l.mu.Unlock()
	l.once.Do(func() { close(l.ready) })
}

func (l *LazyInvoker) Invoke(id instance.ObjectId, declaringType string, methodToken int32, genericArgs []string, args []any, numOut int) ([]any, error) {
	select {
	case <-l.ready:
	case <-time.After(l.WaitTimeout):
		return nil, rpcerr.New(rpcerr.ConnectionLost, "reverse channel not yet established")
	}
	l.mu.RLock()
	ci := l.ci
	l.mu.RUnlock()
	return ci.Invoke(id, declaringType, methodToken, genericArgs, args, numOut)
}
