// Package node implements the connection bootstrap (spec.md C6): the
// handshake that turns a bare TCP socket into a live remoting
// connection, on both the initiator (dialing client) and acceptor
// (listening server) sides. It is adapted from the teacher's top-level
// node.Node — the single process-wide object that used to wire
// jnet+jrpc+service+cluster into a runnable process — with the
// CLI/cluster/module machinery (all explicitly out of scope for this
// spec) replaced by the actual multi-step bootstrap spec.md §4.6
// specifies: primary handshake, reverse-socket dial, OpenReverseChannel
// redemption, and standing up the matching interceptor/dispatcher pair
// on each side.
package node

import (
	"time"

	"remoting/config"
	"remoting/container"
	"remoting/instance"
	"remoting/jlog"
	"remoting/marshal"
	"remoting/rpc"
	"remoting/transport"
)

// Peer is the per-process state the bootstrap needs to share across
// every connection this process takes part in: one instance manager,
// one delegate table, one method table and well-known-service registry,
// all process-wide per spec.md §9's "Global state" design note.
type Peer struct {
	Config    *config.Config
	Manager   *instance.Manager
	Delegates *marshal.DelegateTable
	Methods   *rpc.MethodTable
	Services  *container.Registry
}

// NewPeer builds a Peer ready to Listen and/or Connect. A single Peer
// can do both — accept inbound connections and dial outbound ones — the
// same process-wide registries back either role.
func NewPeer(cfg *config.Config) *Peer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Peer{
		Config:    cfg,
		Manager:   instance.NewManager(),
		Delegates: marshal.NewDelegateTable(),
		Methods:   rpc.NewMethodTable(),
		Services:  container.Global(),
	}
}

// RegisterType indexes receiver's exported methods under declaringType
// so incoming MethodCall/CreateInstance requests can resolve them
// (spec.md §4.5 step 3).
func (p *Peer) RegisterType(declaringType string, receiver any) {
	p.Methods.Register(declaringType, receiver)
}

// Connection is one bootstrapped peer-to-peer link: the primary
// interceptor this process uses to call out, and the dispatcher running
// on the reverse socket so the remote side can call back in.
type Connection struct {
	Primary    *rpc.ClientInterceptor
	Reverse    *rpc.ServerDispatcher
	gcSweepers []*rpc.GcSweeper
}

// Close stops the GC sweepers and tears down both sockets of the
// connection.
func (c *Connection) Close() {
	for _, s := range c.gcSweepers {
		s.Stop()
	}
	c.Primary.Conn.Close()
	c.Reverse.Conn.Close()
}

// Connect performs the initiator's half of spec.md §4.6: dial the
// primary connection, stand up a ClientInterceptor on it, dial the
// reverse companion socket, stand up a ServerDispatcher on *that* one
// (so the acceptor can call back into objects this process owns), and
// finally announce the reverse socket over the primary so the acceptor
// can match it (steps 1-6; step 7 — "spawn an embedded server-dispatcher
// bound to the reverse socket" — happens before the announcement so the
// dispatcher is already reading by the time the peer redeems the
// token).
func (p *Peer) Connect(addr string) (*Connection, error) {
	cl := transport.NewClient(addr)
	primary, err := cl.Dial()
	if err != nil {
		return nil, err
	}

	interceptor := rpc.NewClientInterceptor(primary, nil, p.Config.CallTimeout)
	interceptor.Handler = marshal.NewHandler(p.Manager, interceptor, p.Delegates)
	go interceptor.ReadLoop()

	token, err := transport.NewReverseToken()
	if err != nil {
		primary.Close()
		return nil, err
	}
	reverseConn, err := cl.DialReverse(token)
	if err != nil {
		primary.Close()
		return nil, err
	}

	reverseHandler := marshal.NewHandler(p.Manager, interceptor, p.Delegates)
	dispatcher := rpc.NewServerDispatcher(reverseConn, reverseHandler, p.Methods)
	dispatcher.CallTimeout = p.Config.CallTimeout
	go dispatcher.ReadLoop()

	if err := transport.SendOpenReverseChannel(primary, token); err != nil {
		primary.Close()
		reverseConn.Close()
		return nil, err
	}

	conn := &Connection{Primary: interceptor, Reverse: dispatcher}
	conn.gcSweepers = append(conn.gcSweepers,
		rpc.NewGcSweeper(interceptor, p.Manager, p.Config.GcSweepInterval),
		rpc.NewGcSweeper(dispatcher, p.Manager, p.Config.GcSweepInterval),
	)
	jlog.StdLogger.Info("node: connected to ", addr)
	return conn, nil
}

// Listen accepts primary connections at addr, completing the
// acceptor's half of spec.md §4.6 for each: a ServerDispatcher for
// ordinary inbound calls, whose Handler resolves callback targets
// through a rpc.LazyInvoker that only becomes live once the
// OpenReverseChannel the client sends (spec.md §4.5 control-frame
// handling) has been redeemed against a matching pre-accepted socket.
func (p *Peer) Listen(addr string) (*transport.Server, error) {
	srv := transport.NewServer(addr)
	srv.MaxConnNum = p.Config.MaxConn
	srv.OnConnect = func(c *transport.Conn) { p.acceptPrimary(srv, c) }
	if err := srv.Start(); err != nil {
		return nil, err
	}
	jlog.StdLogger.Info("node: listening on ", addr)
	return srv, nil
}

func (p *Peer) acceptPrimary(srv *transport.Server, c *transport.Conn) {
	reverseDeadline := p.Config.ReverseChannelDeadline
	if reverseDeadline <= 0 {
		reverseDeadline = 10 * time.Second
	}
	reverseInvoker := rpc.NewLazyInvoker(reverseDeadline + time.Second)
	handler := marshal.NewHandler(p.Manager, reverseInvoker, p.Delegates)
	dispatcher := rpc.NewServerDispatcher(c, handler, p.Methods)
	dispatcher.ReverseAwaiter = srv.AwaitReverse
	dispatcher.ReverseDeadline = reverseDeadline
	dispatcher.ReverseInvoker = reverseInvoker
	dispatcher.CallTimeout = p.Config.CallTimeout
	c.SetProperty("dispatcher", dispatcher)

	sweeper := rpc.NewGcSweeper(dispatcher, p.Manager, p.Config.GcSweepInterval)
	go func() {
		dispatcher.ReadLoop()
		sweeper.Stop()
	}()
}
