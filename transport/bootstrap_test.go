package transport

import (
	"testing"
	"time"
)

func startTestServer(t *testing.T) (*Server, chan *Conn) {
	t.Helper()
	accepted := make(chan *Conn, 8)
	srv := NewServer("127.0.0.1:0")
	srv.OnConnect = func(c *Conn) { accepted <- c }
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Start binds an ephemeral port; recover the real address for Dial.
	srv.Addr = srv.ListenAddr().String()
	t.Cleanup(srv.Close)
	return srv, accepted
}

func TestDialCompletesHandshake(t *testing.T) {
	srv, accepted := startTestServer(t)

	cl := NewClient(srv.Addr)
	conn, err := cl.Dial()
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Close()

	select {
	case serverSide := <-accepted:
		if serverSide.PeerId == "" {
			t.Fatalf("server side did not learn the client's identifier")
		}
	case <-time.After(time.Second):
		t.Fatal("server never accepted the primary connection")
	}
	if conn.PeerId == "" {
		t.Fatalf("client side did not learn the server's identifier")
	}
}

func TestReverseChannelSocketFirst(t *testing.T) {
	// The reverse socket dials and completes its handshake before
	// AwaitReverse is ever called — the common case, since the server
	// only calls AwaitReverse once it decodes the OpenReverseChannel
	// frame sent over the (separately established) primary connection.
	srv, _ := startTestServer(t)
	cl := NewClient(srv.Addr)

	token, err := NewReverseToken()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cl.DialReverse(token); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	got, err := srv.AwaitReverse(token, time.Second)
	if err != nil {
		t.Fatalf("AwaitReverse: %v", err)
	}
	if got == nil {
		t.Fatal("AwaitReverse returned a nil Conn")
	}
}

func TestReverseChannelWaiterFirst(t *testing.T) {
	// AwaitReverse is called, and only afterward does the reverse socket
	// arrive — matching must work in this order too.
	srv, _ := startTestServer(t)
	cl := NewClient(srv.Addr)

	token, err := NewReverseToken()
	if err != nil {
		t.Fatal(err)
	}

	resultCh := make(chan *Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := srv.AwaitReverse(token, time.Second)
		resultCh <- c
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := cl.DialReverse(token); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-resultCh:
		if err := <-errCh; err != nil {
			t.Fatalf("AwaitReverse: %v", err)
		}
		if c == nil {
			t.Fatal("AwaitReverse returned a nil Conn")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitReverse never returned")
	}
}

func TestAwaitReverseTimesOut(t *testing.T) {
	srv, _ := startTestServer(t)
	_, err := srv.AwaitReverse("no-such-token", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}
