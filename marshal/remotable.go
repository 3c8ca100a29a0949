// Package marshal implements the message handler (spec.md C3): the
// argument classification/serialization algorithm that decides, for every
// value crossing the wire, whether it travels by value (SerializedItem)
// or by reference (RemoteReference / MethodPointer), and the dual
// decoding path that reconstitutes proxies and delegate sinks.
package marshal

import "remoting/instance"

// Remotable is the marker "base class" (spec.md GLOSSARY) a type embeds
// to opt into pass-by-reference marshalling (rule 9). The source models
// this as a common base class (MarshalByRefObject); Go has no
// inheritance, so the same opt-in is expressed as embedding
// RemotableBase, which is exactly how the teacher's own
// BaseRpcHandler/IRpcHandlerChannel embedding pattern works.
type Remotable interface {
	remotable()
}

// RemotableBase is embedded by any type that should be marshalled as a
// RemoteReference instead of being serialized by value.
type RemotableBase struct{}

func (RemotableBase) remotable() {}

// ProxyHandle is implemented by every synthesized proxy (client-side
// stand-in for a remote original). WriteArgument uses it to detect
// "value is already a remote proxy" (rule 7) via an interface check
// rather than a register scan, since the proxy always knows its own id.
type ProxyHandle interface {
	Remotable
	RemoteObjectId() instance.ObjectId
	RemoteDeclaringType() string
}

// TypeToken is the wire analogue of a type descriptor (System.Type in the
// source). Rule 2/3 classify a bare TypeToken, or a slice of them, ahead
// of everything else.
type TypeToken struct {
	Name string
}

// Delegate is a bound method reference (spec.md rule 6). The source
// detects this structurally (any delegate value); Go has no bound-method
// reflection that exposes the receiver, so callers construct a Delegate
// explicitly instead of relying on an implicit conversion — the one
// deliberate re-architecture decision recorded in DESIGN.md.
type Delegate struct {
	Target Remotable // nil means a static target, which rule 6 rejects
	Method string
}

// NetAddress is the spec's "network address (an otherwise
// non-serializable well-known record)" (rule 4). Any net.Addr
// implementation (net.TCPAddr, net.UDPAddr, ...) qualifies; see the
// net.Addr type assertion in Handler.WriteArgument (handler.go).

// NetAddressToken is what ReadArgument reconstructs an IpAddress tag
// into: the decode side only ever sees the peer's textual form, never
// the original net.Addr value, so it gets a lightweight net.Addr of its
// own rather than a half-populated net.TCPAddr.
type NetAddressToken struct {
	Text string
}

func (n NetAddressToken) Network() string { return "tcp" }
func (n NetAddressToken) String() string  { return n.Text }

// ContainerValue is what ReadArgument reconstructs a ContainerType tag
// into when the ReadContext names no static slice/array type: the
// element type name travels on the wire for diagnostics, and callers
// work with Items directly. When a static slice/array type is known,
// ReadArgument returns a slice of that element type instead.
type ContainerValue struct {
	ContainerTypeName string
	ElementTypeName   string
	Items             []any
}
