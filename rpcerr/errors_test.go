package rpcerr

import (
	"errors"
	"testing"
)

func TestNewAndError(t *testing.T) {
	err := New(ProtocolError, "bad frame")
	if err.Error() != "ProtocolError: bad frame" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ConnectionLost, cause)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Wrap result does not unwrap to *Error: %v", err)
	}
	if e.Unwrap() == nil {
		t.Fatalf("Unwrap() returned nil")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(ConnectionLost, nil) != nil {
		t.Fatalf("Wrap(kind, nil) should be nil")
	}
}

func TestIs(t *testing.T) {
	err := New(SerializationFailure, "cannot marshal")
	if !Is(err, SerializationFailure) {
		t.Fatalf("Is(err, SerializationFailure) = false")
	}
	if Is(err, ProtocolError) {
		t.Fatalf("Is(err, ProtocolError) = true, want false")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := New(ConnectionLost, "peer hung up")
	outer := Wrap(ConnectionLost, inner)
	if !Is(outer, ConnectionLost) {
		t.Fatalf("Is should see through an Error wrapping another Error")
	}
}

func TestFatalKinds(t *testing.T) {
	fatal := []Kind{ProtocolError, ConnectionLost}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
	recoverable := []Kind{UnsupportedOperation, ProxyManagementError, SerializationFailure}
	for _, k := range recoverable {
		if k.Fatal() {
			t.Errorf("%s should not be fatal", k)
		}
	}
}
