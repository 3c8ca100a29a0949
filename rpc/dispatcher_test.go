package rpc

import (
	"sync"
	"testing"
	"time"

	"remoting/instance"
	"remoting/marshal"
	"remoting/rpcerr"
	"remoting/transport"
)

// sinkInvoker is the method-set a decoded *marshal.DelegateSink already
// satisfies; an add_X/remove_X receiver parameter is typed against this
// interface rather than the concrete sink type.
type sinkInvoker interface {
	Invoke(args []any) ([]any, error)
}

type eventHost struct {
	mu    sync.Mutex
	sinks []sinkInvoker
}

func (h *eventHost) AddChanged(s sinkInvoker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

func (h *eventHost) RemoveChanged(s sinkInvoker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, x := range h.sinks {
		if x == s {
			h.sinks = append(h.sinks[:i], h.sinks[i+1:]...)
			return
		}
	}
}

func (h *eventHost) sinkCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}

type changeListener struct{ marshal.RemotableBase }

func (changeListener) OnChanged(msg string) {}

// dispatcherFixture wires a real ClientInterceptor to a real
// ServerDispatcher over a loopback socket, sharing one instance.Manager,
// so a test can drive Invoke and observe it land as an actual reflected
// method call rather than a hand-built ReadContext.
type dispatcherFixture struct {
	client    *ClientInterceptor
	delegates *marshal.DelegateTable
	mgr       *instance.Manager
	srv       *transport.Server
	cl        *transport.Client
}

func newDispatcherFixture(t *testing.T, methods *MethodTable) *dispatcherFixture {
	t.Helper()
	srv := transport.NewServer("127.0.0.1:0")
	accepted := make(chan *transport.Conn, 1)
	srv.OnConnect = func(c *transport.Conn) { accepted <- c }
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}

	cl := transport.NewClient(srv.ListenAddr().String())
	clientConn, err := cl.Dial()
	if err != nil {
		t.Fatal(err)
	}

	var serverConn *transport.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted")
	}

	mgr := instance.NewManager()
	delegates := marshal.NewDelegateTable()

	sd := NewServerDispatcher(serverConn, marshal.NewHandler(mgr, nil, delegates), methods)
	sd.CallTimeout = 2 * time.Second
	go sd.ReadLoop()

	client := NewClientInterceptor(clientConn, nil, 2*time.Second)
	client.Handler = marshal.NewHandler(mgr, client, nil)
	go client.ReadLoop()

	return &dispatcherFixture{client: client, delegates: delegates, mgr: mgr, srv: srv, cl: cl}
}

func (f *dispatcherFixture) close() {
	f.cl.Close()
	f.srv.Close()
}

// TestAddRemoveEventDrivesRealDelegateRegistration exercises the add_X/
// remove_X path through an actual dispatched MethodCall (not a
// hand-built ReadContext): AddChanged should register a sink under
// "{hostId}.Changed" and RemoveChanged should drop it, and a second
// RemoveChanged must stay a no-op (spec.md §8's add/remove multiset
// invariant).
func TestAddRemoveEventDrivesRealDelegateRegistration(t *testing.T) {
	host := &eventHost{}
	methods := NewMethodTable()
	methods.Register("EventHost", host)

	f := newDispatcherFixture(t, methods)
	defer f.close()

	hostId := f.mgr.IdFor(host, "EventHost")

	listener := &changeListener{}
	delegateArg := marshal.Delegate{Target: listener, Method: "OnChanged"}
	delegateId := string(hostId) + ".Changed"

	if _, ok := f.delegates.Lookup(delegateId); ok {
		t.Fatalf("delegate registered before AddChanged was ever called")
	}

	if _, err := f.client.Invoke(hostId, "EventHost", marshal.MethodToken("AddChanged"), nil, []any{delegateArg}, 1); err != nil {
		t.Fatalf("AddChanged Invoke: %v", err)
	}
	if _, ok := f.delegates.Lookup(delegateId); !ok {
		t.Fatalf("AddChanged did not register delegateId %q", delegateId)
	}
	if n := host.sinkCount(); n != 1 {
		t.Fatalf("host.sinks = %d, want 1", n)
	}

	if _, err := f.client.Invoke(hostId, "EventHost", marshal.MethodToken("RemoveChanged"), nil, []any{delegateArg}, 1); err != nil {
		t.Fatalf("RemoveChanged Invoke: %v", err)
	}
	if _, ok := f.delegates.Lookup(delegateId); ok {
		t.Fatalf("RemoveChanged did not drop delegateId %q", delegateId)
	}

	// A second remove is a documented no-op, not an error.
	if _, err := f.client.Invoke(hostId, "EventHost", marshal.MethodToken("RemoveChanged"), nil, []any{delegateArg}, 1); err != nil {
		t.Fatalf("second RemoveChanged Invoke: %v", err)
	}
}

// TestReplyExceptionPreservesKind confirms a server-side lookup failure's
// Kind survives the wire to the caller instead of every remote failure
// flattening to UnsupportedOperation (spec.md §7).
func TestReplyExceptionPreservesKind(t *testing.T) {
	f := newDispatcherFixture(t, NewMethodTable())
	defer f.close()

	_, err := f.client.Invoke(instance.ObjectId("x"), "Missing.Type", marshal.MethodToken("Foo"), nil, nil, 1)
	if err == nil {
		t.Fatal("expected an error calling an unregistered type")
	}
	if !rpcerr.Is(err, rpcerr.ProtocolError) {
		t.Fatalf("Invoke against unregistered type = %v, want a ProtocolError", err)
	}
}
