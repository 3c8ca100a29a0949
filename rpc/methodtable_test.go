package rpc

import (
	"testing"

	"remoting/marshal"
	"remoting/rpcerr"
)

type greeterService struct{}

func (greeterService) Greet(name string) string { return "hello " + name }
func (greeterService) AddGreeted(name string) {}

func TestMethodTableRegisterAndLookup(t *testing.T) {
	mt := NewMethodTable()
	mt.Register("Greeter", greeterService{})

	token := marshal.MethodToken("Greet")
	entry, err := mt.Lookup("Greeter", token)
	if err != nil {
		t.Fatal(err)
	}
	if entry.method.Name != "Greet" {
		t.Fatalf("resolved method = %s, want Greet", entry.method.Name)
	}
	if len(entry.paramTypes) != 1 {
		t.Fatalf("paramTypes = %v, want 1 entry", entry.paramTypes)
	}
}

func TestMethodTableUnknownType(t *testing.T) {
	mt := NewMethodTable()
	_, err := mt.Lookup("NoSuchType", 0)
	if !rpcerr.Is(err, rpcerr.ProtocolError) {
		t.Fatalf("Lookup(unknown type) = %v, want a ProtocolError", err)
	}
}

func TestMethodTableUnknownToken(t *testing.T) {
	mt := NewMethodTable()
	mt.Register("Greeter", greeterService{})
	_, err := mt.Lookup("Greeter", 0)
	if !rpcerr.Is(err, rpcerr.ProtocolError) {
		t.Fatalf("Lookup(unknown token) = %v, want a ProtocolError", err)
	}
}

func TestMethodTableFlagsEventPrefixedMethods(t *testing.T) {
	mt := NewMethodTable()
	mt.Register("Greeter", greeterService{})
	entry, err := mt.Lookup("Greeter", marshal.MethodToken("AddGreeted"))
	if err != nil {
		t.Fatal(err)
	}
	if !entry.isAddEvent {
		t.Fatalf("AddGreeted should be flagged as an add-event method")
	}
}
