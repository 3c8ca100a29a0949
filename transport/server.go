package transport

import (
	"net"
	"sync"
	"time"

	"remoting/jlog"
	"remoting/rpcerr"
)

// Server is the inbound half of the bootstrap (adapted from the
// teacher's jnet.TcpServer): accepts sockets, completes the identifier
// handshake, and routes the result either to OnConnect (a new primary
// connection) or to the pending-reverse registry (a callback socket
// carrying a token that an OpenReverseChannel frame on the primary
// connection redeems).
type Server struct {
	Addr       string
	MaxConnNum int

	OnConnect    func(*Conn)
	OnDisconnect func(*Conn)

	Conns *ConnManager

	listener net.Listener
	closed   chan struct{}

	reverseLock sync.Mutex
	reverse     map[string]chan *Conn
}

func NewServer(addr string) *Server {
	return &Server{
		Addr:       addr,
		MaxConnNum: 10000,
		Conns:      NewConnManager(),
		closed:     make(chan struct{}),
		reverse:    make(map[string]chan *Conn),
	}
}

// ListenAddr returns the socket Start bound, which may differ from Addr
// when Addr requested an ephemeral port (":0").
func (s *Server) ListenAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start begins accepting in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return rpcerr.Wrap(rpcerr.ConnectionLost, err)
	}
	s.listener = ln
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	var tempDelay time.Duration
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				jlog.StdLogger.Error("transport: accept error, retrying: ", err.Error())
				time.Sleep(tempDelay)
				continue
			}
			jlog.StdLogger.Error("transport: accept fatal: ", err.Error())
			return
		}
		tempDelay = 0
		if s.Conns.Len() >= s.MaxConnNum {
			jlog.StdLogger.Error("transport: too many connections, rejecting")
			raw.Close()
			continue
		}
		go s.handleAccept(raw)
	}
}

func (s *Server) handleAccept(raw net.Conn) {
	c := newConn(nextConnID(), raw, true)
	r, token, err := handshakeServer(c)
	if err != nil {
		jlog.StdLogger.Error("transport: handshake failed: ", err.Error())
		raw.Close()
		return
	}
	if r == roleReverse {
		s.deliverReverse(token, c)
		return
	}
	s.Conns.Add(c)
	if s.OnConnect != nil {
		s.OnConnect(c)
	}
}

// reverseSlot returns the buffered channel for token, creating it on
// first reference. Since the reverse socket (step 4 of spec.md §4.6) and
// the OpenReverseChannel control frame that redeems it (step 5-6) can
// arrive in either order — the socket often lands first — both
// deliverReverse and AwaitReverse must be able to create the slot, not
// just the waiter.
func (s *Server) reverseSlot(token string) chan *Conn {
	s.reverseLock.Lock()
	defer s.reverseLock.Unlock()
	ch, ok := s.reverse[token]
	if !ok {
		ch = make(chan *Conn, 1)
		s.reverse[token] = ch
	}
	return ch
}

// AwaitReverse blocks until the pre-accepted reverse socket matching
// token appears — whether it already arrived (deliverReverse got there
// first) or arrives later — or deadline elapses (spec.md §9 Open
// Questions: bounded instead of the source's infinite wait).
func (s *Server) AwaitReverse(token string, deadline time.Duration) (*Conn, error) {
	ch := s.reverseSlot(token)
	defer func() {
		s.reverseLock.Lock()
		delete(s.reverse, token)
		s.reverseLock.Unlock()
	}()

	select {
	case c := <-ch:
		return c, nil
	case <-time.After(deadline):
		return nil, rpcerr.New(rpcerr.ConnectionLost, "reverse channel not established within deadline")
	}
}

func (s *Server) deliverReverse(token string, c *Conn) {
	ch := s.reverseSlot(token)
	select {
	case ch <- c:
	default:
		jlog.StdLogger.Error("transport: reverse channel token already redeemed")
		c.Close()
	}
}

// Close shuts the listener and every accepted connection down.
func (s *Server) Close() {
	close(s.closed)
	if s.listener != nil {
		s.listener.Close()
	}
	s.Conns.Each(func(c *Conn) {
		if s.OnDisconnect != nil {
			s.OnDisconnect(c)
		}
	})
	s.Conns.CloseAll()
	jlog.StdLogger.Info("transport: server closed, addr=", s.Addr)
}
