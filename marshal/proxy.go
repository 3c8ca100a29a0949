package marshal

import (
	"sync"

	"remoting/instance"
	"remoting/rpcerr"
)

// Invoker is how a synthesized proxy turns an intercepted method call
// into an outgoing request. rpc.ClientInterceptor and rpc.LazyInvoker
// implement it; marshal never imports rpc (rpc imports marshal, so that
// would be an import cycle), so proxies are handed an Invoker rather
// than a concrete client.
type Invoker interface {
	Invoke(id instance.ObjectId, declaringType string, methodToken int32, genericArgs []string, args []any, numOut int) ([]any, error)
}

// ProxyBase is the embed every ProxyFactory should build its stand-in
// on top of: it satisfies ProxyHandle, so rule 7 recognizes the result
// as an existing proxy instead of re-registering it as a new local
// instance, and it carries the serializer surrogate (proxySurrogate)
// that lets rule 8's sanity check actually detect a proxy that reached
// it instead of being caught by rule 7 (spec.md §4.3's "byte sequence
// identifying the dynamic-proxy assembly name").
type ProxyBase struct {
	RemotableBase
	proxySurrogate
	declaringType string
}

// NewProxyBase constructs the embed a factory should put at the front of
// its concrete stub type.
func NewProxyBase(id instance.ObjectId, declaringType string) ProxyBase {
	return ProxyBase{proxySurrogate: proxySurrogate{id: id}, declaringType: declaringType}
}

func (p ProxyBase) RemoteObjectId() instance.ObjectId { return p.proxySurrogate.id }
func (p ProxyBase) RemoteDeclaringType() string       { return p.declaringType }

// ProxyFactory builds a local stand-in for id that implements the
// interface registered under declaringType, forwarding every call
// through invoker. This is design option A from spec.md §9: stubs are
// generated (by hand here, by a code generator in a real deployment)
// from a registry of remotable interfaces, rather than synthesized by a
// runtime dynamic-proxy library Go doesn't have.
//
// A factory owns registering its own weak reference: after constructing
// the concrete *Stub it must call instance.AddOrReplaceWeak(mgr, id,
// stub) before returning, since only the factory knows the proxy's
// concrete type (AddOrReplaceWeak is generic over it).
type ProxyFactory func(invoker Invoker, mgr *instance.Manager, id instance.ObjectId) any

var proxyFactories sync.Map // declaringType string -> ProxyFactory

// RegisterProxyFactory registers the stub constructor for a remotable
// interface. Call this from an init() in the package defining the
// interface and its generated stub, the same way the teacher's
// BaseRpcHandler.RegisterRpcMethod walks a struct's methods at startup.
func RegisterProxyFactory(declaringType string, factory ProxyFactory) {
	proxyFactories.Store(declaringType, factory)
}

// NewProxy synthesizes a proxy for id/declaringType (spec.md §4.3
// "Proxy synthesis rules"). Interface-only proxying (the spec's primary
// case, since Go callers always hold an interface-typed variable for a
// remotable value) looks up the registered factory; there is no
// class-proxy fallback because Go has no equivalent of constructing an
// unsealed class's runtime subclass — every remotable type in this
// runtime is reached through an interface.
func NewProxy(invoker Invoker, mgr *instance.Manager, id instance.ObjectId, declaringType string) (any, error) {
	v, ok := proxyFactories.Load(declaringType)
	if !ok {
		return nil, rpcerr.New(rpcerr.ProxyManagementError, "no proxy factory registered for type "+declaringType)
	}
	factory := v.(ProxyFactory)
	return factory(invoker, mgr, id), nil
}
