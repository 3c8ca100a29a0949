package marshal

import (
	"bytes"

	"github.com/gogo/protobuf/proto"
	jsoniter "github.com/json-iterator/go"

	"remoting/instance"
	"remoting/rpcerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// proxySentinelKey is the JSON key proxySurrogate writes when a proxy is
// value-serialized (spec.md §4.3's "dynamic-proxy assembly name"
// stand-in). Its presence in a payload means a proxy reached rule 8
// instead of being caught by rule 7, so Marshal rejects that payload.
const proxySentinelKey = `"$remotingProxy"`

// valueSerializer is the opaque serializer rule 8 and the ReadArgument
// dual delegate to. It tries the teacher's two processors in the same
// order GetProcessorType does: protobuf first for types that are already
// proto.Message, JSON (jsoniter) for everything else.
type valueSerializer struct{}

func (valueSerializer) Marshal(v any) ([]byte, error) {
	if pm, ok := v.(proto.Message); ok {
		b, err := proto.Marshal(pm)
		if err != nil {
			return nil, rpcerr.Wrap(rpcerr.SerializationFailure, err)
		}
		return b, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.SerializationFailure, err)
	}
	if bytes.Contains(b, []byte(proxySentinelKey)) {
		return nil, rpcerr.New(rpcerr.UnsupportedOperation, "value graph contains an unresolved proxy reference; rule 7 was missed")
	}
	return b, nil
}

func (valueSerializer) Unmarshal(data []byte, v any) error {
	if pm, ok := v.(proto.Message); ok {
		if err := proto.Unmarshal(data, pm); err != nil {
			return rpcerr.Wrap(rpcerr.SerializationFailure, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return rpcerr.Wrap(rpcerr.SerializationFailure, err)
	}
	return nil
}

// proxySurrogate is embedded by generated proxy stubs so that, if one
// ever ends up nested inside a value-serialized struct, it serializes as
// a reference token rather than leaking its invoker/connection fields.
type proxySurrogate struct {
	id instance.ObjectId
}

func (p proxySurrogate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$remotingProxy": string(p.id)})
}
