package transport

import (
	"crypto/rand"
	"encoding/hex"

	"remoting/instance"
	"remoting/rpcerr"
	"remoting/wire"
)

// role distinguishes a primary connection (the ordinary client-to-server
// socket) from a reverse connection (a server-to-client callback socket
// the client dials before announcing its token in an OpenReverseChannel
// control frame, spec.md §4.6/§6).
type role byte

const (
	rolePrimary role = 0
	roleReverse role = 1
)

// handshakeClient performs the client side of the bootstrap: send our
// identifier and role, then read the peer's identifier back.
func handshakeClient(c *Conn, r role, reverseToken string) error {
	c.Writer.Lock()
	defer c.Writer.Unlock()
	if err := c.Writer.WriteByte(byte(r)); err != nil {
		return err
	}
	if err := c.Writer.WriteString(string(instance.OwnInstanceIdentifier())); err != nil {
		return err
	}
	if r == roleReverse {
		if err := c.Writer.WriteString(reverseToken); err != nil {
			return err
		}
		return nil
	}
	peer, err := readPeerIdentifier(c)
	if err != nil {
		return err
	}
	c.PeerId = peer
	return nil
}

// handshakeServer performs the server side: read the peer's role and
// identifier, and for a primary connection write our own identifier
// back. Returns the role and (for a reverse connection) the token the
// client is trying to redeem.
func handshakeServer(c *Conn) (role, string, error) {
	rb, err := c.Reader.ReadByte()
	if err != nil {
		return 0, "", err
	}
	r := role(rb)
	peer, err := c.Reader.ReadString()
	if err != nil {
		return 0, "", err
	}
	c.PeerId = instance.Identifier(peer)
	if r == roleReverse {
		token, err := c.Reader.ReadString()
		if err != nil {
			return 0, "", err
		}
		return r, token, nil
	}
	if err := writeOwnIdentifier(c); err != nil {
		return 0, "", err
	}
	return r, "", nil
}

func writeOwnIdentifier(c *Conn) error {
	c.Writer.Lock()
	defer c.Writer.Unlock()
	return c.Writer.WriteString(string(instance.OwnInstanceIdentifier()))
}

func readPeerIdentifier(c *Conn) (instance.Identifier, error) {
	s, err := c.Reader.ReadString()
	if err != nil {
		return "", err
	}
	return instance.Identifier(s), nil
}

// newReverseToken mints an opaque, unguessable token a reverse-channel
// dial must present to be matched to the OpenReverseChannel request
// that asked for it.
func newReverseToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", rpcerr.Wrap(rpcerr.ProtocolError, err)
	}
	return hex.EncodeToString(buf), nil
}

// SendOpenReverseChannel writes the control frame announcing the reverse
// socket already dialed with the given token, so the peer can match it
// to that socket (spec.md §4.6). Caller already holds no lock; this
// takes the writer lock itself.
func SendOpenReverseChannel(c *Conn, token string) error {
	c.Writer.Lock()
	defer c.Writer.Unlock()
	if err := wire.WriteHeader(c.Writer, wire.Header{Function: wire.OpenReverseChannel}); err != nil {
		return err
	}
	return c.Writer.WriteString(token)
}

// NewReverseToken is exported for callers (node.Peer.Connect) that need
// to mint a token before dialing the reverse socket and sending the
// OpenReverseChannel frame.
func NewReverseToken() (string, error) { return newReverseToken() }
