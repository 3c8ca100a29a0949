package marshal

import (
	"bytes"
	"net"
	"reflect"
	"testing"

	"remoting/instance"
	"remoting/rpcerr"
	"remoting/wire"
)

type fakeRemotable struct {
	RemotableBase
	Name string
}

type recordingInvoker struct {
	id            instance.ObjectId
	declaringType string
	methodToken   int32
	args          []any
}

func (r *recordingInvoker) Invoke(id instance.ObjectId, declaringType string, methodToken int32, genericArgs []string, args []any, numOut int) ([]any, error) {
	r.id = id
	r.declaringType = declaringType
	r.methodToken = methodToken
	r.args = args
	return []any{"ok"}, nil
}

func roundTrip(t *testing.T, h *Handler, v any, ctx ReadContext) any {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := h.WriteArgument(w, v); err != nil {
		t.Fatalf("WriteArgument(%v) = %v", v, err)
	}
	r := wire.NewReader(&buf)
	got, err := h.ReadArgument(r, ctx)
	if err != nil {
		t.Fatalf("ReadArgument after writing %v = %v", v, err)
	}
	return got
}

func TestWriteArgumentNil(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	got := roundTrip(t, h, nil, ReadContext{})
	if got != nil {
		t.Fatalf("nil round trip = %v", got)
	}
}

func TestWriteArgumentTypeToken(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	got := roundTrip(t, h, TypeToken{Name: "My.Type"}, ReadContext{})
	tt, ok := got.(TypeToken)
	if !ok || tt.Name != "My.Type" {
		t.Fatalf("TypeToken round trip = %#v", got)
	}
}

func TestWriteArgumentTypeTokenSlice(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	in := []TypeToken{{Name: "A"}, {Name: "B"}}
	got := roundTrip(t, h, in, ReadContext{})
	out, ok := got.([]TypeToken)
	if !ok || len(out) != 2 || out[0].Name != "A" || out[1].Name != "B" {
		t.Fatalf("[]TypeToken round trip = %#v", got)
	}
}

func TestWriteArgumentNetAddr(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	got := roundTrip(t, h, addr, ReadContext{})
	tok, ok := got.(NetAddressToken)
	if !ok || tok.String() != addr.String() {
		t.Fatalf("net.Addr round trip = %#v, want %s", got, addr.String())
	}
}

func TestWriteArgumentContainerOfScalarsRoundTripsByValue(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	in := []int{1, 2, 3}
	got := roundTrip(t, h, in, ReadContext{StaticType: reflect.TypeOf([]int{})})
	out, ok := got.([]int)
	if !ok || len(out) != 3 || out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Fatalf("[]int round trip = %#v, want []int{1, 2, 3}", got)
	}
}

func TestWriteArgumentContainerOfRemotablesUsesContainerTag(t *testing.T) {
	mgr := instance.NewManager()
	h := NewHandler(mgr, nil, nil)
	in := []Remotable{&fakeRemotable{Name: "a"}, &fakeRemotable{Name: "b"}}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := h.WriteArgument(w, in); err != nil {
		t.Fatal(err)
	}
	r := wire.NewReader(&buf)
	tag, err := r.ReadInt32()
	if err != nil {
		t.Fatal(err)
	}
	if wire.RemotingReferenceType(tag) != wire.ContainerType {
		t.Fatalf("tag = %s, want ContainerType", wire.RemotingReferenceType(tag))
	}
}

func TestWriteArgumentContainerRebuildsConcreteSliceWhenStaticTypeKnown(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	in := []any{"a", "b"} // an interface element type forces the container path
	got := roundTrip(t, h, in, ReadContext{StaticType: reflect.TypeOf([]string{})})
	out, ok := got.([]string)
	if !ok || len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Fatalf("container round trip with a known static type = %#v, want []string{\"a\", \"b\"}", got)
	}
}

func TestWriteArgumentDelegate(t *testing.T) {
	mgr := instance.NewManager()
	h := NewHandler(mgr, nil, nil)
	target := &fakeRemotable{Name: "target"}
	d := Delegate{Target: target, Method: "OnEvent"}

	got := roundTrip(t, h, d, ReadContext{})
	sink, ok := got.(*DelegateSink)
	if !ok {
		t.Fatalf("delegate round trip = %#v", got)
	}
	wantId, _ := mgr.TryGetId(target)
	if sink.TargetId != wantId {
		t.Fatalf("sink.TargetId = %s, want %s", sink.TargetId, wantId)
	}
	if sink.MethodToken != MethodToken("OnEvent") {
		t.Fatalf("sink.MethodToken = %d, want %d", sink.MethodToken, MethodToken("OnEvent"))
	}
}

func TestWriteArgumentDelegateRejectsStaticTarget(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	err := h.WriteArgument(w, Delegate{Target: nil, Method: "X"})
	if err == nil {
		t.Fatalf("expected an error for a delegate with a nil target")
	}
}

func TestWriteArgumentRemotable(t *testing.T) {
	mgr := instance.NewManager()
	h := NewHandler(mgr, nil, nil)
	obj := &fakeRemotable{Name: "orig"}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := h.WriteArgument(w, obj); err != nil {
		t.Fatal(err)
	}
	r := wire.NewReader(&buf)
	got, err := h.ReadArgument(r, ReadContext{})
	if err != nil {
		t.Fatal(err)
	}
	// The manager owns obj locally, so ReadArgument should hand back the
	// very same instance rather than a synthesized proxy.
	if got != obj {
		t.Fatalf("ReadArgument(local remotable) = %v, want the original %v", got, obj)
	}
}

func TestWriteArgumentRemoteReferenceSynthesizesProxy(t *testing.T) {
	const declaringType = "Some.RemoteIface"
	var factoryInvoker Invoker
	var factoryId instance.ObjectId
	RegisterProxyFactory(declaringType, func(invoker Invoker, mgr *instance.Manager, id instance.ObjectId) any {
		factoryInvoker = invoker
		factoryId = id
		stub := &struct {
			ProxyBase
			invoker Invoker
		}{ProxyBase: NewProxyBase(id, declaringType), invoker: invoker}
		_ = instance.AddOrReplaceWeak(mgr, id, stub)
		return stub
	})

	mgr := instance.NewManager()
	inv := &recordingInvoker{}
	h := NewHandler(mgr, inv, nil)

	remoteId := instance.ObjectId("otherhost/1/" + declaringType + "/abc123")
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := w.WriteInt32(int32(wire.RemoteReference)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString(string(remoteId)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString(declaringType); err != nil {
		t.Fatal(err)
	}

	r := wire.NewReader(&buf)
	got, err := h.ReadArgument(r, ReadContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatalf("expected a synthesized proxy, got nil")
	}
	if factoryId != remoteId {
		t.Fatalf("factory saw id %s, want %s", factoryId, remoteId)
	}
	if factoryInvoker != inv {
		t.Fatalf("factory did not receive the handler's invoker")
	}
}

func TestWriteArgumentRejectsNestedProxyInValueGraph(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	type wrapper struct {
		Label string
		Inner any
	}
	proxy := &struct{ ProxyBase }{ProxyBase: NewProxyBase("otherhost/1/Some.Type/abc123", "Some.Type")}
	v := wrapper{Label: "x", Inner: proxy}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	err := h.WriteArgument(w, v)
	if !rpcerr.Is(err, rpcerr.UnsupportedOperation) {
		t.Fatalf("WriteArgument(value graph with a nested proxy) = %v, want an UnsupportedOperation", err)
	}
}

func TestWriteArgumentByValueFallback(t *testing.T) {
	h := NewHandler(instance.NewManager(), nil, nil)
	type payload struct{ N int }
	got := roundTrip(t, h, payload{N: 7}, ReadContext{StaticType: reflect.TypeOf(payload{})})
	out, ok := got.(payload)
	if !ok || out.N != 7 {
		t.Fatalf("by-value round trip = %#v", got)
	}
}
