package wire

// RemotingReferenceType tags every argument on the wire (spec.md §4.1).
// The tag alone determines how many more bytes follow, since frames are
// not length-prefixed end-to-end.
type RemotingReferenceType int32

const (
	NullPointer RemotingReferenceType = iota
	SerializedItem
	RemoteReference
	InstanceOfSystemType
	ArrayOfSystemType
	ContainerType
	IpAddress
	MethodPointer
)

func (t RemotingReferenceType) String() string {
	switch t {
	case NullPointer:
		return "NullPointer"
	case SerializedItem:
		return "SerializedItem"
	case RemoteReference:
		return "RemoteReference"
	case InstanceOfSystemType:
		return "InstanceOfSystemType"
	case ArrayOfSystemType:
		return "ArrayOfSystemType"
	case ContainerType:
		return "ContainerType"
	case IpAddress:
		return "IpAddress"
	case MethodPointer:
		return "MethodPointer"
	default:
		return "Unknown"
	}
}
