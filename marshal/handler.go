package marshal

import (
	"net"
	"reflect"

	"remoting/instance"
	"remoting/rpcerr"
	"remoting/wire"
)

// ReadContext carries the static information ReadArgument needs that
// can't be recovered from the wire alone: the declared parameter type
// (what a SerializedItem is decoded into, and which concrete slice a
// ContainerType is rebuilt as), and — for the two event
// plumbing methods — which host object a decoded MethodPointer's
// add_X/remove_X should be filed under.
type ReadContext struct {
	// StaticType is the declared Go type of this argument slot, when
	// known (an RPC method's parameter type, a struct field's type).
	// SerializedItem decodes into a fresh value of this type if set;
	// with no static type available (a container element, a dynamic
	// argument list) the caller gets the raw encoded bytes back and
	// must unmarshal them once it learns the type it expects.
	StaticType     reflect.Type
	DeclaringType  string
	IsAddEvent     bool
	IsRemoveEvent  bool
	EventHostId    instance.ObjectId
	DelegateMethod string
}

// Handler is the message handler (spec.md C3): it owns the three pieces
// of process state argument classification needs (the instance
// registry, the outgoing-call path proxies use, and the event
// registration table) and exposes the WriteArgument/ReadArgument pair
// every frame's argument list is built and consumed through.
type Handler struct {
	Manager    *instance.Manager
	Invoker    Invoker
	Delegates  *DelegateTable
	serializer valueSerializer
}

func NewHandler(mgr *instance.Manager, invoker Invoker, delegates *DelegateTable) *Handler {
	return &Handler{Manager: mgr, Invoker: invoker, Delegates: delegates}
}

// WriteArgument classifies v per spec.md §4.3's ten priority-ordered
// rules and writes its wire tag plus payload. Rules are checked in the
// order listed there; the first match wins.
func (h *Handler) WriteArgument(w *wire.Writer, v any) error {
	// Rule 1: nil.
	if v == nil {
		return w.WriteInt32(int32(wire.NullPointer))
	}

	// Rule 2: a bare type token.
	if tt, ok := v.(TypeToken); ok {
		if err := w.WriteInt32(int32(wire.InstanceOfSystemType)); err != nil {
			return err
		}
		return w.WriteString(tt.Name)
	}

	// Rule 3: a slice of type tokens.
	if tts, ok := v.([]TypeToken); ok {
		if err := w.WriteInt32(int32(wire.ArrayOfSystemType)); err != nil {
			return err
		}
		if err := w.WriteInt32(int32(len(tts))); err != nil {
			return err
		}
		for _, tt := range tts {
			if err := w.WriteString(tt.Name); err != nil {
				return err
			}
		}
		return nil
	}

	// Rule 4: a network address.
	if addr, ok := v.(net.Addr); ok {
		if err := w.WriteInt32(int32(wire.IpAddress)); err != nil {
			return err
		}
		return w.WriteString(addr.String())
	}

	// Rule 5 (container): a slice/array whose element type could itself
	// require pass-by-reference dispatch (a proxy, a delegate, a
	// Remotable, a type token, a network address, an interface that might
	// hold any of those at runtime, or a nested container of such
	// elements) travels as a tagged, heterogeneous, self-delimiting
	// sequence rather than a flat by-value blob. A slice of plain values
	// (ints, strings, ordinary structs) has nothing rule 5 needs to
	// intercept per-element, so it falls through to rule 8 and round-trips
	// as a single serialized value instead.
	if rv := reflect.ValueOf(v); (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && elementMayBeByReference(rv.Type().Elem()) {
		if err := w.WriteInt32(int32(wire.ContainerType)); err != nil {
			return err
		}
		if err := w.WriteString(containerTypeName(rv)); err != nil {
			return err
		}
		if err := w.WriteString(elementTypeName(rv)); err != nil {
			return err
		}
		n := rv.Len()
		for i := 0; i < n; i++ {
			if err := w.WriteBool(true); err != nil {
				return err
			}
			if err := h.WriteArgument(w, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return w.WriteBool(false)
	}

	// Rule 6: a bound delegate.
	if d, ok := v.(Delegate); ok {
		if d.Target == nil {
			return rpcerr.New(rpcerr.SerializationFailure, "delegate with a static (non-remotable) target cannot cross the wire")
		}
		targetId, declaringType, err := h.idAndTypeOf(d.Target)
		if err != nil {
			return err
		}
		if err := w.WriteInt32(int32(wire.MethodPointer)); err != nil {
			return err
		}
		if err := w.WriteString(string(targetId)); err != nil {
			return err
		}
		if err := w.WriteString(declaringType); err != nil {
			return err
		}
		return w.WriteInt32(MethodToken(d.Method))
	}

	// Rule 7: already a proxy for some remote original. Write back the
	// same id rather than re-registering it as a new local instance —
	// this is the "handing a proxy back to its own origin" case, and
	// also the ordinary "forwarding a reference on" case.
	if ph, ok := v.(ProxyHandle); ok {
		if err := w.WriteInt32(int32(wire.RemoteReference)); err != nil {
			return err
		}
		if err := w.WriteString(string(ph.RemoteObjectId())); err != nil {
			return err
		}
		return w.WriteString(ph.RemoteDeclaringType())
	}

	// Rule 9 (checked ahead of rule 8 since Remotable is the narrower,
	// more specific match): a value opting into pass-by-reference.
	if rem, ok := v.(Remotable); ok {
		id, declaringType, err := h.idAndTypeOf(rem)
		if err != nil {
			return err
		}
		if err := w.WriteInt32(int32(wire.RemoteReference)); err != nil {
			return err
		}
		if err := w.WriteString(string(id)); err != nil {
			return err
		}
		return w.WriteString(declaringType)
	}

	// Rule 8: everything else goes by value through the opaque
	// serializer. Rule 7 above already catches a bare proxy, so nothing
	// legitimately reaching this point should be (or contain) one; the
	// serializer's own sanity check is what actually enforces that.
	payload, err := h.serializer.Marshal(v)
	if err != nil {
		return err
	}
	if err := w.WriteInt32(int32(wire.SerializedItem)); err != nil {
		return err
	}
	return w.WriteBytes(payload)
}

// ReadArgument is WriteArgument's dual: it reads a tag, then decodes the
// matching payload, reconstituting proxies (rule 9 reversed) and
// delegate sinks (rule 6 reversed) rather than returning raw ids.
func (h *Handler) ReadArgument(r *wire.Reader, ctx ReadContext) (any, error) {
	tag, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	switch wire.RemotingReferenceType(tag) {
	case wire.NullPointer:
		return nil, nil

	case wire.InstanceOfSystemType:
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return TypeToken{Name: name}, nil

	case wire.ArrayOfSystemType:
		n, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		out := make([]TypeToken, 0, n)
		for i := int32(0); i < n; i++ {
			name, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			out = append(out, TypeToken{Name: name})
		}
		return out, nil

	case wire.IpAddress:
		text, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return NetAddressToken{Text: text}, nil

	case wire.ContainerType:
		containerName, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		elementName, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		var elemType reflect.Type
		elemCtx := ReadContext{}
		if ctx.StaticType != nil && (ctx.StaticType.Kind() == reflect.Slice || ctx.StaticType.Kind() == reflect.Array) {
			elemType = ctx.StaticType.Elem()
			elemCtx.StaticType = elemType
		}
		var items []any
		for {
			more, err := r.ReadBool()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			item, err := h.ReadArgument(r, elemCtx)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if elemType == nil {
			return ContainerValue{ContainerTypeName: containerName, ElementTypeName: elementName, Items: items}, nil
		}
		out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(items))
		for _, item := range items {
			out = reflect.Append(out, coerceToType(item, elemType))
		}
		return out.Interface(), nil

	case wire.MethodPointer:
		targetId, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		declaringType, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		token, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		sink := &DelegateSink{
			TargetId:      instance.ObjectId(targetId),
			DeclaringType: declaringType,
			MethodToken:   token,
			invoker:       h.Invoker,
		}
		if (ctx.IsAddEvent || ctx.IsRemoveEvent) && h.Delegates != nil {
			delegateId := string(ctx.EventHostId) + "." + ctx.DelegateMethod
			if ctx.IsAddEvent {
				h.Delegates.Register(delegateId, sink)
			} else {
				h.Delegates.Drop(delegateId)
			}
		}
		return sink, nil

	case wire.RemoteReference:
		id, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		declaringType, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return h.resolveReference(instance.ObjectId(id), declaringType)

	case wire.SerializedItem:
		payload, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		if ctx.StaticType == nil {
			return payload, nil
		}
		out := reflect.New(ctx.StaticType)
		if err := h.serializer.Unmarshal(payload, out.Interface()); err != nil {
			return nil, err
		}
		return out.Elem().Interface(), nil

	default:
		return nil, rpcerr.New(rpcerr.ProtocolError, "unknown argument tag on wire")
	}
}

// resolveReference turns a decoded RemoteReference into either the
// local original (if id names an object this process owns, invariant
// 2) or a synthesized proxy (otherwise, invariant 3), registering the
// proxy's weak reference via the factory contract in proxy.go.
func (h *Handler) resolveReference(id instance.ObjectId, declaringType string) (any, error) {
	if obj, ok := h.Manager.TryGet(id); ok {
		return obj, nil
	}
	if instance.IsLocal(id) {
		return nil, rpcerr.New(rpcerr.ProtocolError, "peer referenced local id with no live entry: "+string(id))
	}
	return NewProxy(h.Invoker, h.Manager, id, declaringType)
}

// idAndTypeOf resolves a local Remotable's ObjectId, minting one on
// first use the way invariant 2 requires, and recovers its declaring
// type name from the proxy interface if it is itself a proxy standing
// in for a third party (the pass-through case), or from the concrete
// type's name otherwise.
func (h *Handler) idAndTypeOf(rem Remotable) (instance.ObjectId, string, error) {
	if ph, ok := rem.(ProxyHandle); ok {
		return ph.RemoteObjectId(), ph.RemoteDeclaringType(), nil
	}
	declaringType := reflect.TypeOf(rem).String()
	id := h.Manager.IdFor(rem, declaringType)
	return id, declaringType, nil
}

var (
	remotableType   = reflect.TypeOf((*Remotable)(nil)).Elem()
	proxyHandleType = reflect.TypeOf((*ProxyHandle)(nil)).Elem()
	netAddrType     = reflect.TypeOf((*net.Addr)(nil)).Elem()
	delegateType    = reflect.TypeOf(Delegate{})
	typeTokenType   = reflect.TypeOf(TypeToken{})
)

// elementMayBeByReference reports whether a container's element type
// needs rule 5's tagged sequence: true when an element of this type
// could itself route through rules 2/3/4/6/7/9 rather than landing on
// rule 8 by value. An interface element type is treated conservatively
// as "may" since its runtime value could hold any of those at any time.
func elementMayBeByReference(et reflect.Type) bool {
	switch {
	case et.Kind() == reflect.Interface:
		return true
	case et == delegateType:
		return true
	case et == typeTokenType:
		return true
	case et.Implements(proxyHandleType):
		return true
	case et.Implements(remotableType):
		return true
	case et.Implements(netAddrType):
		return true
	case et.Kind() == reflect.Slice || et.Kind() == reflect.Array:
		return elementMayBeByReference(et.Elem())
	default:
		return false
	}
}

// coerceToType wraps a decoded value in a reflect.Value assignable to
// want, substituting a typed zero value for an untyped nil.
func coerceToType(v any, want reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(want)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return rv
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want)
	}
	return rv
}

func containerTypeName(rv reflect.Value) string {
	switch rv.Kind() {
	case reflect.Array:
		return "Array"
	default:
		return "List"
	}
}

func elementTypeName(rv reflect.Value) string {
	return rv.Type().Elem().String()
}
