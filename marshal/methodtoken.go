package marshal

import "hash/fnv"

// MethodToken stands in for the source's methodMetadataToken: a stable
// per-process-version numeric handle for a method, computed by both
// sides from the method name rather than looked up in a shared assembly
// (the source's approach only makes sense with a shared binary; Go's
// deployment model gives each side an independently-built binary, and
// cross-version schema evolution is an explicit non-goal, so a pure
// content hash of the name is sufficient and requires no registry).
func MethodToken(methodName string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(methodName))
	return int32(h.Sum32())
}
