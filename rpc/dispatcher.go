package rpc

import (
	"reflect"
	"sync"
	"time"

	"remoting/container"
	"remoting/instance"
	"remoting/jlog"
	"remoting/marshal"
	"remoting/profiler"
	"remoting/rpcerr"
	"remoting/transport"
	"remoting/wire"
)

// dispatchProfiler records how long each server-side method invocation
// takes, so a remote call that hangs or runs long surfaces in
// profiler.Report() instead of silently occupying a worker goroutine
// forever (spec.md §4.5 dispatches every call onto its own goroutine
// specifically so a slow one can't block the reader).
var dispatchProfiler = profiler.RegProfiler("rpc.dispatch")

// ServerDispatcher is the server-side half of spec.md C5. ReadLoop
// decodes one full frame synchronously (so the next header read never
// races a half-consumed argument list, since wire.Reader is not safe
// for concurrent use), then hands the resolved method and arguments to
// a worker goroutine for execution and reply, mirroring the teacher's
// BaseRpcHandler.HandlerRpcRequest being invoked off the connection's
// own read loop via PushRpcRequest.
type ServerDispatcher struct {
	Conn    *transport.Conn
	Handler *marshal.Handler
	Methods *MethodTable

	// ReverseAwaiter resolves the pre-accepted reverse socket matching a
	// token (spec.md §4.6 step 6); wired to transport.Server.AwaitReverse
	// by the bootstrap. Nil means this dispatcher never expects to field
	// an OpenReverseChannel request (e.g. it is itself running on a
	// reverse socket).
	ReverseAwaiter  func(token string, deadline time.Duration) (*transport.Conn, error)
	ReverseDeadline time.Duration
	ReverseInvoker  *LazyInvoker
	CallTimeout     time.Duration

	factoriesLock sync.RWMutex
	factories     map[string]func() any
}

func NewServerDispatcher(conn *transport.Conn, handler *marshal.Handler, methods *MethodTable) *ServerDispatcher {
	return &ServerDispatcher{
		Conn:      conn,
		Handler:   handler,
		Methods:   methods,
		factories: make(map[string]func() any),
	}
}

// RegisterFactory lets declaringType be the target of a CreateInstance
// request (spec.md §4.4): factory must return a value embedding
// marshal.RemotableBase so WriteArgument marshals the reply as a
// RemoteReference rather than attempting to serialize it by value.
func (d *ServerDispatcher) RegisterFactory(declaringType string, factory func() any) {
	d.factoriesLock.Lock()
	defer d.factoriesLock.Unlock()
	d.factories[declaringType] = factory
}

// ReadLoop consumes frames until the connection closes or the peer
// disconnects cleanly.
func (d *ServerDispatcher) ReadLoop() {
	for {
		header, err := wire.ReadHeader(d.Conn.Reader)
		if err != nil {
			return
		}
		switch header.Function {
		case wire.MethodCall:
			if err := d.readAndDispatchMethodCall(header.Sequence); err != nil {
				jlog.StdLogger.Error("rpc: decode MethodCall failed: ", err.Error())
				return
			}
		case wire.CreateInstance, wire.CreateInstanceWithDefaultCtor:
			if err := d.readAndDispatchCreateInstance(header.Sequence); err != nil {
				jlog.StdLogger.Error("rpc: decode CreateInstance failed: ", err.Error())
				return
			}
		case wire.RequestServiceReference:
			if err := d.readAndDispatchServiceReference(header.Sequence); err != nil {
				jlog.StdLogger.Error("rpc: decode RequestServiceReference failed: ", err.Error())
				return
			}
		case wire.GcCleanup:
			if err := d.handleGcCleanup(); err != nil {
				jlog.StdLogger.Error("rpc: decode GcCleanup failed: ", err.Error())
				return
			}
		case wire.ClientDisconnecting:
			jlog.StdLogger.Info("rpc: client disconnecting cleanly")
			d.Conn.Close()
			return
		case wire.OpenReverseChannel:
			if err := d.handleOpenReverseChannel(); err != nil {
				jlog.StdLogger.Error("rpc: open reverse channel failed: ", err.Error())
			}
		default:
			jlog.StdLogger.Error("rpc: server read unexpected frame ", header.Function.String())
		}
	}
}

type decodedCall struct {
	seq     uint32
	id      instance.ObjectId
	entry   methodEntry
	args    []reflect.Value
	numOut  int
}

func (d *ServerDispatcher) readAndDispatchMethodCall(seq uint32) error {
	idStr, err := d.Conn.Reader.ReadString()
	if err != nil {
		return err
	}
	declaringType, err := d.Conn.Reader.ReadString()
	if err != nil {
		return err
	}
	token, err := d.Conn.Reader.ReadInt32()
	if err != nil {
		return err
	}
	genCount, err := d.Conn.Reader.ReadInt32()
	if err != nil {
		return err
	}
	for i := int32(0); i < genCount; i++ {
		if _, err := d.Conn.Reader.ReadString(); err != nil {
			return err
		}
	}

	entry, lookupErr := d.Methods.Lookup(declaringType, token)

	argCount, err := d.Conn.Reader.ReadInt32()
	if err != nil {
		return err
	}
	args := make([]reflect.Value, 0, argCount)
	for i := int32(0); i < argCount; i++ {
		var ctx marshal.ReadContext
		if lookupErr == nil {
			ctx.DeclaringType = declaringType
			ctx.IsAddEvent = entry.isAddEvent
			ctx.IsRemoveEvent = entry.isRemEvent
			ctx.EventHostId = instance.ObjectId(idStr)
			ctx.DelegateMethod = entry.eventName
			if int(i) < len(entry.paramTypes) {
				ctx.StaticType = entry.paramTypes[i]
			}
		}
		v, err := d.Handler.ReadArgument(d.Conn.Reader, ctx)
		if err != nil {
			return err
		}
		if lookupErr == nil && int(i) < len(entry.paramTypes) {
			args = append(args, coerce(v, entry.paramTypes[i]))
		} else {
			args = append(args, reflect.ValueOf(v))
		}
	}
	numOut, err := d.Conn.Reader.ReadInt32()
	if err != nil {
		return err
	}

	if lookupErr != nil {
		d.replyException(seq, lookupErr)
		return nil
	}

	call := decodedCall{seq: seq, id: instance.ObjectId(idStr), entry: entry, args: args, numOut: int(numOut)}
	go d.execute(call)
	return nil
}

// coerce wraps a decoded value in a reflect.Value assignable to want,
// substituting a typed zero value for an untyped nil (spec.md rule 1).
func coerce(v any, want reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(want)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return rv
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want)
	}
	return rv
}

func (d *ServerDispatcher) execute(c decodedCall) {
	analyzer := dispatchProfiler.Push(c.entry.method.Name)
	results := c.entry.method.Func.Call(append([]reflect.Value{c.entry.receiver}, c.args...))
	analyzer.Pop()
	var callErr error
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) && !last.IsNil() {
			callErr = last.Interface().(error)
		}
	}
	if callErr != nil {
		d.replyException(c.seq, callErr)
		return
	}
	outs := make([]any, 0, c.numOut)
	for i := 0; i < c.numOut && i < len(results); i++ {
		outs = append(outs, results[i].Interface())
	}
	d.reply(c.seq, outs)
}

func (d *ServerDispatcher) reply(seq uint32, results []any) {
	d.Conn.Writer.Lock()
	defer d.Conn.Writer.Unlock()
	if err := wire.WriteHeader(d.Conn.Writer, wire.Header{Function: wire.MethodReply, Sequence: seq}); err != nil {
		jlog.StdLogger.Error("rpc: write reply header failed: ", err.Error())
		return
	}
	if err := d.Conn.Writer.WriteInt32(int32(len(results))); err != nil {
		return
	}
	for _, r := range results {
		if err := d.Handler.WriteArgument(d.Conn.Writer, r); err != nil {
			jlog.StdLogger.Error("rpc: encode reply argument failed: ", err.Error())
			return
		}
	}
}

func (d *ServerDispatcher) replyException(seq uint32, cause error) {
	d.Conn.Writer.Lock()
	defer d.Conn.Writer.Unlock()
	if err := wire.WriteHeader(d.Conn.Writer, wire.Header{Function: wire.ExceptionReturn, Sequence: seq}); err != nil {
		return
	}
	kind, msg := rpcerr.Classify(cause)
	if err := d.Conn.Writer.WriteString(string(kind)); err != nil {
		return
	}
	_ = d.Conn.Writer.WriteString(msg)
}

func (d *ServerDispatcher) readAndDispatchCreateInstance(seq uint32) error {
	declaringType, err := d.Conn.Reader.ReadString()
	if err != nil {
		return err
	}
	d.factoriesLock.RLock()
	factory, ok := d.factories[declaringType]
	d.factoriesLock.RUnlock()
	if !ok {
		d.replyException(seq, rpcerr.New(rpcerr.ProxyManagementError, "no factory registered for "+declaringType))
		return nil
	}
	go func() {
		obj := factory()
		d.reply(seq, []any{obj})
	}()
	return nil
}

// readAndDispatchServiceReference answers spec.md's RequestServiceReference:
// a name lookup in the well-known-service registry instead of an
// ObjectId lookup in the instance manager.
func (d *ServerDispatcher) readAndDispatchServiceReference(seq uint32) error {
	name, err := d.Conn.Reader.ReadString()
	if err != nil {
		return err
	}
	obj, lookupErr := container.Global().Lookup(name)
	if lookupErr != nil {
		d.replyException(seq, lookupErr)
		return nil
	}
	go d.reply(seq, []any{obj})
	return nil
}

// handleOpenReverseChannel implements the acceptor's half of spec.md
// §4.6 step 6: the initiator (client) sent this on the primary
// connection after dialing a second, reverse-role socket carrying the
// same token. Resolve that pre-accepted socket and start a
// ClientInterceptor on it — this is the callback path, where the roles
// of C4 and C5 swap (spec.md §2's data-flow note): this process now
// plays client over the reverse socket so it can invoke methods on
// objects the peer owns.
func (d *ServerDispatcher) handleOpenReverseChannel() error {
	token, err := d.Conn.Reader.ReadString()
	if err != nil {
		return err
	}
	if d.ReverseAwaiter == nil {
		return rpcerr.New(rpcerr.ProtocolError, "this dispatcher cannot open a reverse channel")
	}
	deadline := d.ReverseDeadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	go func() {
		reverseConn, err := d.ReverseAwaiter(token, deadline)
		if err != nil {
			jlog.StdLogger.Error("rpc: reverse channel ", token, " never arrived: ", err.Error())
			return
		}
		ci := NewClientInterceptor(reverseConn, nil, d.CallTimeout)
		ci.Handler = marshal.NewHandler(d.Handler.Manager, ci, d.Handler.Delegates)
		if d.ReverseInvoker != nil {
			d.ReverseInvoker.Set(ci)
		}
		ci.ReadLoop()
	}()
	return nil
}

func (d *ServerDispatcher) handleGcCleanup() error {
	n, err := d.Conn.Reader.ReadInt32()
	if err != nil {
		return err
	}
	for i := int32(0); i < n; i++ {
		id, err := d.Conn.Reader.ReadString()
		if err != nil {
			return err
		}
		d.Handler.Manager.Remove(instance.ObjectId(id))
	}
	return nil
}
