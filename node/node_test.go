package node

import (
	"encoding/json"
	"testing"
	"time"

	"remoting/config"
	"remoting/marshal"
)

type echoService struct{}

func (echoService) Echo(msg string) string { return "echo:" + msg }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.CallTimeout = 2 * time.Second
	cfg.GcSweepInterval = 0 // no periodic sweep noise in tests
	cfg.ReverseChannelDeadline = 2 * time.Second
	return cfg
}

func TestConnectEstablishesPrimaryAndReverse(t *testing.T) {
	serverPeer := NewPeer(testConfig())
	srv, err := serverPeer.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	clientPeer := NewPeer(testConfig())
	conn, err := clientPeer.Connect(srv.ListenAddr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if conn.Primary == nil || conn.Reverse == nil {
		t.Fatalf("Connect did not set up both halves: %+v", conn)
	}
}

func TestMethodCallRoundTripsThroughBootstrappedConnection(t *testing.T) {
	serverPeer := NewPeer(testConfig())
	srv, err := serverPeer.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	receiver := echoService{}
	const declaringType = "NodeTest.EchoService"
	serverPeer.RegisterType(declaringType, receiver)
	id := serverPeer.Manager.IdFor(receiver, declaringType)

	clientPeer := NewPeer(testConfig())
	conn, err := clientPeer.Connect(srv.ListenAddr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	results, err := conn.Primary.Invoke(id, declaringType, marshal.MethodToken("Echo"), nil, []any{"hi"}, 1)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v, want exactly one reply value", results)
	}
	// The client decodes a reply value with no declared static type, so it
	// comes back as the raw serialized payload rather than a typed string
	// (marshal.Handler.ReadArgument's SerializedItem case).
	raw, ok := results[0].([]byte)
	if !ok {
		t.Fatalf("results[0] = %#v (%T), want raw serialized bytes", results[0], results[0])
	}
	var got string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got != "echo:hi" {
		t.Fatalf("decoded reply = %q, want %q", got, "echo:hi")
	}
}
