package transport

import (
	"net"
	"time"

	"remoting/jlog"
	"remoting/rpcerr"
)

// Client is the outbound half of the bootstrap (adapted from the
// teacher's jnet.TcpClient): dials the server, completes the identifier
// handshake, and hands the resulting Conn to OnConnect. It also opens
// the reverse-channel socket: the initiator (node.Peer.Connect) mints a
// token, calls DialReverse with it, and then announces that token to
// the server with an OpenReverseChannel frame on the primary connection.
type Client struct {
	Addr            string
	AutoReconnect   bool
	ConnectInterval time.Duration

	OnConnect    func(*Conn)
	OnDisconnect func(*Conn)

	Conns *ConnManager
}

func NewClient(addr string) *Client {
	return &Client{
		Addr:            addr,
		ConnectInterval: 2 * time.Second,
		Conns:           NewConnManager(),
	}
}

// Dial opens the primary connection and runs the handshake.
func (cl *Client) Dial() (*Conn, error) {
	raw, err := net.Dial("tcp", cl.Addr)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.ConnectionLost, err)
	}
	c := newConn(nextConnID(), raw, false)
	if err := handshakeClient(c, rolePrimary, ""); err != nil {
		raw.Close()
		return nil, rpcerr.Wrap(rpcerr.ProtocolError, err)
	}
	cl.Conns.Add(c)
	if cl.OnConnect != nil {
		cl.OnConnect(c)
	}
	return c, nil
}

// DialReverse opens the callback socket, presenting token so the
// server's accept loop can match it to the OpenReverseChannel frame
// that announces the same token (spec.md §4.6).
func (cl *Client) DialReverse(token string) (*Conn, error) {
	raw, err := net.Dial("tcp", cl.Addr)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.ConnectionLost, err)
	}
	c := newConn(nextConnID(), raw, false)
	if err := handshakeClient(c, roleReverse, token); err != nil {
		raw.Close()
		return nil, rpcerr.Wrap(rpcerr.ProtocolError, err)
	}
	return c, nil
}

// Close tears down every connection this client opened.
func (cl *Client) Close() {
	cl.Conns.Each(func(c *Conn) {
		if cl.OnDisconnect != nil {
			cl.OnDisconnect(c)
		}
	})
	cl.Conns.CloseAll()
	jlog.StdLogger.Info("transport: client closed, addr=", cl.Addr)
}
