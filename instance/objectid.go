// Package instance implements the global object registry (spec.md C2):
// the mapping from ObjectId to either a hard-held local original or a
// weakly-held proxy standing in for a remote one, plus the distributed-GC
// sweep that reclaims the latter.
package instance

import (
	"hash/fnv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// ObjectId is the stable, globally unique identity of an object
// (spec.md §3): "{HostName}/{ProcessId}/{TypeFullName}/{Hash}".
type ObjectId string

// Identifier is the first two segments of an ObjectId: the originating
// process. Two ObjectIds share an Identifier iff they were minted by the
// same process.
type Identifier string

var ownHostname = func() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}()

var ownPid = os.Getpid()

// OwnInstanceIdentifier is this process's InstanceIdentifier, exchanged
// during the connection bootstrap (spec.md §4.6).
func OwnInstanceIdentifier() Identifier {
	return Identifier(fmt.Sprintf("%s/%d", ownHostname, ownPid))
}

// NewId mints a fresh ObjectId for a local object of the given type name.
// The hash only needs to be unique within this process/type combination;
// it is not a content hash of the object.
func NewId(typeFullName string) ObjectId {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s-%d-%d", typeFullName, ownPid, idCounter.next())
	return ObjectId(fmt.Sprintf("%s/%s/%s", OwnInstanceIdentifier(), typeFullName, strconv.FormatUint(h.Sum64(), 36)))
}

var idCounter counter

type counter struct{ n atomic.Uint64 }

func (c *counter) next() uint64 {
	return c.n.Add(1)
}

// ParseIdentifier returns the InstanceIdentifier (host/pid) prefix of id.
func ParseIdentifier(id ObjectId) Identifier {
	parts := strings.SplitN(string(id), "/", 3)
	if len(parts) < 2 {
		return ""
	}
	return Identifier(parts[0] + "/" + parts[1])
}

// IsLocal reports whether id was minted by this process (spec.md §3).
func IsLocal(id ObjectId) bool {
	return ParseIdentifier(id) == OwnInstanceIdentifier()
}

// TypeFullName extracts the third segment of id, empty if malformed.
func TypeFullName(id ObjectId) string {
	parts := strings.SplitN(string(id), "/", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
