package rpc

import (
	"sync"
	"sync/atomic"
	"time"

	"remoting/instance"
	"remoting/jlog"
	"remoting/jtimer"
	"remoting/marshal"
	"remoting/rpcerr"
	"remoting/transport"
	"remoting/wire"
)

// ClientInterceptor is the client-side half of spec.md C4: every
// proxy method call turns into Invoke, which frames a MethodCall,
// parks a Call in the pending map, and blocks until ReadLoop (running
// on another goroutine) resolves it. Adapted from the teacher's
// jrpc.RpcClient pending/timeout bookkeeping, generalized from a single
// serviceMethod string to the (id, declaringType, methodToken) triple
// this runtime's proxies address a remote method with.
type ClientInterceptor struct {
	Conn    *transport.Conn
	Handler *marshal.Handler

	seq uint32

	pendingLock sync.Mutex
	pending     map[uint32]*Call
	timerIds    map[uint32]uint32

	CallTimeout time.Duration
}

func NewClientInterceptor(conn *transport.Conn, handler *marshal.Handler, callTimeout time.Duration) *ClientInterceptor {
	return &ClientInterceptor{
		Conn:        conn,
		Handler:     handler,
		pending:     make(map[uint32]*Call),
		timerIds:    make(map[uint32]uint32),
		CallTimeout: callTimeout,
	}
}

// Invoke implements marshal.Invoker: it is what every synthesized proxy
// calls when one of its methods is invoked locally.
func (ci *ClientInterceptor) Invoke(id instance.ObjectId, declaringType string, methodToken int32, genericArgs []string, args []any, numOut int) ([]any, error) {
	seq := atomic.AddUint32(&ci.seq, 1)
	call := newCall(seq)
	ci.addPending(call)

	if err := ci.writeMethodCall(seq, id, declaringType, methodToken, genericArgs, args, numOut); err != nil {
		ci.removePending(seq)
		call.release()
		return nil, err
	}

	call.Wait()
	results, err := call.Results, call.Err
	call.release()
	return results, err
}

// RequestServiceReference asks the server for a well-known object
// registered under name (spec.md §4.4 RequestServiceReference), coming
// back as a single-result MethodReply the same way Invoke's does.
func (ci *ClientInterceptor) RequestServiceReference(name string) (any, error) {
	return ci.nameOrTypeCall(wire.RequestServiceReference, name)
}

// CreateInstance asks the server to construct a fresh instance of
// declaringType (spec.md §4.4 CreateInstance/CreateInstanceWithDefaultCtor).
func (ci *ClientInterceptor) CreateInstance(declaringType string, useDefaultCtor bool) (any, error) {
	fn := wire.CreateInstance
	if useDefaultCtor {
		fn = wire.CreateInstanceWithDefaultCtor
	}
	return ci.nameOrTypeCall(fn, declaringType)
}

func (ci *ClientInterceptor) nameOrTypeCall(fn wire.Function, payload string) (any, error) {
	seq := atomic.AddUint32(&ci.seq, 1)
	call := newCall(seq)
	ci.addPending(call)

	err := func() error {
		ci.Conn.Writer.Lock()
		defer ci.Conn.Writer.Unlock()
		if err := wire.WriteHeader(ci.Conn.Writer, wire.Header{Function: fn, Sequence: seq}); err != nil {
			return err
		}
		return ci.Conn.Writer.WriteString(payload)
	}()
	if err != nil {
		ci.removePending(seq)
		call.release()
		return nil, err
	}

	call.Wait()
	defer call.release()
	if call.Err != nil {
		return nil, call.Err
	}
	if len(call.Results) == 0 {
		return nil, nil
	}
	return call.Results[0], nil
}

func (ci *ClientInterceptor) writeMethodCall(seq uint32, id instance.ObjectId, declaringType string, methodToken int32, genericArgs []string, args []any, numOut int) error {
	ci.Conn.Writer.Lock()
	defer ci.Conn.Writer.Unlock()

	if err := wire.WriteHeader(ci.Conn.Writer, wire.Header{Function: wire.MethodCall, Sequence: seq}); err != nil {
		return err
	}
	if err := ci.Conn.Writer.WriteString(string(id)); err != nil {
		return err
	}
	if err := ci.Conn.Writer.WriteString(declaringType); err != nil {
		return err
	}
	if err := ci.Conn.Writer.WriteInt32(methodToken); err != nil {
		return err
	}
	if err := ci.Conn.Writer.WriteInt32(int32(len(genericArgs))); err != nil {
		return err
	}
	for _, g := range genericArgs {
		if err := ci.Conn.Writer.WriteString(g); err != nil {
			return err
		}
	}
	if err := ci.Conn.Writer.WriteInt32(int32(len(args))); err != nil {
		return err
	}
	for _, a := range args {
		if err := ci.Handler.WriteArgument(ci.Conn.Writer, a); err != nil {
			return err
		}
	}
	return ci.Conn.Writer.WriteInt32(int32(numOut))
}

func (ci *ClientInterceptor) addPending(call *Call) {
	ci.pendingLock.Lock()
	defer ci.pendingLock.Unlock()
	ci.pending[call.Seq] = call
	if ci.CallTimeout <= 0 {
		return
	}
	seq := call.Seq
	df := jtimer.NewDelayFunc(func(...any) { ci.handleTimeout(seq) }, nil)
	timerId, _ := jtimer.GlobelTimer.CreateTimerAfter(df, ci.CallTimeout, 1, int64(ci.CallTimeout))
	ci.timerIds[seq] = timerId
}

func (ci *ClientInterceptor) removePending(seq uint32) *Call {
	ci.pendingLock.Lock()
	defer ci.pendingLock.Unlock()
	call, ok := ci.pending[seq]
	if !ok {
		return nil
	}
	delete(ci.pending, seq)
	if timerId, ok := ci.timerIds[seq]; ok {
		jtimer.GlobelTimer.RomoveTimer(timerId)
		delete(ci.timerIds, seq)
	}
	return call
}

func (ci *ClientInterceptor) handleTimeout(seq uint32) {
	call := ci.removePending(seq)
	if call == nil {
		return
	}
	call.Err = rpcerr.New(rpcerr.ConnectionLost, "rpc call timed out")
	call.finish()
}

// ReadLoop consumes frames off the connection until it closes or a
// shutdown frame arrives. Run it on its own goroutine per connection.
func (ci *ClientInterceptor) ReadLoop() {
	for {
		header, err := wire.ReadHeader(ci.Conn.Reader)
		if err != nil {
			ci.drainPendingOnDisconnect(err)
			return
		}
		switch header.Function {
		case wire.MethodReply:
			ci.handleReply(header.Sequence, false)
		case wire.ExceptionReturn:
			ci.handleReply(header.Sequence, true)
		case wire.GcCleanup:
			ci.handleGcCleanup()
		case wire.ServerShuttingDown, wire.ShutdownServer:
			jlog.StdLogger.Info("rpc: server announced shutdown")
			ci.Conn.Close()
			ci.drainPendingOnDisconnect(rpcerr.New(rpcerr.ConnectionLost, "server shutting down"))
			return
		case wire.ClientDisconnecting:
			// Only ever sent server -> client's own agent bookkeeping;
			// an ordinary client connection should not receive one.
			jlog.StdLogger.Warn("rpc: unexpected ClientDisconnecting on client side")
		default:
			jlog.StdLogger.Error("rpc: client read unexpected frame ", header.Function.String())
		}
	}
}

func (ci *ClientInterceptor) handleReply(seq uint32, isException bool) {
	call := ci.removePending(seq)
	if isException {
		// Both strings must always be read, regardless of whether call is
		// still around to receive them, or the reader desyncs from the
		// next frame on the stream.
		kindStr, kindErr := ci.Conn.Reader.ReadString()
		var msg string
		var msgErr error
		if kindErr == nil {
			msg, msgErr = ci.Conn.Reader.ReadString()
		}
		if call == nil {
			return
		}
		switch {
		case kindErr != nil:
			call.Err = kindErr
		case msgErr != nil:
			call.Err = msgErr
		default:
			call.Err = rpcerr.New(rpcerr.Kind(kindStr), msg)
		}
		call.finish()
		return
	}

	n, err := ci.Conn.Reader.ReadInt32()
	if err != nil {
		if call != nil {
			call.Err = err
			call.finish()
		}
		return
	}
	results := make([]any, 0, n)
	for i := int32(0); i < n; i++ {
		v, err := ci.Handler.ReadArgument(ci.Conn.Reader, marshal.ReadContext{})
		if err != nil {
			if call != nil {
				call.Err = err
				call.finish()
			}
			return
		}
		results = append(results, v)
	}
	if call == nil {
		jlog.StdLogger.Error("rpc: reply for unknown seq ", seq)
		return
	}
	call.Results = results
	call.finish()
}

func (ci *ClientInterceptor) handleGcCleanup() {
	n, err := ci.Conn.Reader.ReadInt32()
	if err != nil {
		return
	}
	for i := int32(0); i < n; i++ {
		id, err := ci.Conn.Reader.ReadString()
		if err != nil {
			return
		}
		ci.Handler.Manager.Remove(instance.ObjectId(id))
	}
}

func (ci *ClientInterceptor) drainPendingOnDisconnect(cause error) {
	ci.pendingLock.Lock()
	pending := ci.pending
	ci.pending = make(map[uint32]*Call)
	for seq, timerId := range ci.timerIds {
		jtimer.GlobelTimer.RomoveTimer(timerId)
		delete(ci.timerIds, seq)
	}
	ci.pendingLock.Unlock()

	for _, call := range pending {
		call.Err = rpcerr.Wrap(rpcerr.ConnectionLost, cause)
		call.finish()
	}
}
