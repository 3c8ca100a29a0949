package rpc

import "remoting/mempool"

// Call is one outstanding MethodCall this side sent, parked in the
// client's pending map until a matching MethodReply/ExceptionReturn
// arrives or the call timer expires (spec.md §5, adapted from the
// teacher's jrpc.Call). Pooled through mempool the same way the teacher
// pools its own RpcRequest/Call, since a busy client mints and retires
// one of these per outstanding call.
type Call struct {
	Seq     uint32
	Results []any
	Err     error
	done    chan *Call
}

var callPool = mempool.NewPool(make(chan interface{}, 256), func() interface{} {
	return &Call{done: make(chan *Call, 1)}
})

func newCall(seq uint32) *Call {
	c := callPool.Get().(*Call)
	c.Seq = seq
	c.Results = nil
	c.Err = nil
	return c
}

func (c *Call) finish() { c.done <- c }

// Wait blocks until the call completes, one way or another.
func (c *Call) Wait() *Call { return <-c.done }

// release returns a fully-drained Call to the pool. Only safe once the
// caller is done reading Results/Err — after that, nothing else holds a
// reference to this Call (it was removed from the pending map before
// finish() fired).
func (c *Call) release() {
	c.Results = nil
	c.Err = nil
	callPool.Put(c)
}
