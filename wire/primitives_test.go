package wire

import (
	"bytes"
	"testing"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteInt32(-42); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint32(7); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint64(1 << 40); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBool(true); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBytes([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString("héllo wörld"); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	if v, err := r.ReadInt32(); err != nil || v != -42 {
		t.Fatalf("ReadInt32 = %d, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 7 {
		t.Fatalf("ReadUint32 = %d, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 1<<40 {
		t.Fatalf("ReadUint64 = %d, %v", v, err)
	}
	if v, err := r.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool = %v, %v", v, err)
	}
	if v, err := r.ReadBytes(); err != nil || string(v) != "payload" {
		t.Fatalf("ReadBytes = %q, %v", v, err)
	}
	if v, err := r.ReadString(); err != nil || v != "héllo wörld" {
		t.Fatalf("ReadString = %q, %v", v, err)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := WriteHeader(w, Header{Function: MethodCall, Sequence: 99}); err != nil {
		t.Fatal(err)
	}
	h, err := ReadHeader(NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if h.Function != MethodCall || h.Sequence != 99 {
		t.Fatalf("got %+v", h)
	}
}

func TestIsControl(t *testing.T) {
	control := []Function{OpenReverseChannel, ClientDisconnecting, LoadClientAssemblyIntoServer, GcCleanup, ShutdownServer}
	for _, f := range control {
		if !f.IsControl() {
			t.Errorf("%s should be a control frame", f)
		}
	}
	notControl := []Function{MethodCall, MethodReply, CreateInstance, ExceptionReturn, RequestServiceReference, ServerShuttingDown}
	for _, f := range notControl {
		if f.IsControl() {
			t.Errorf("%s should not be a control frame", f)
		}
	}
}
