package transport

import (
	"sync"
	"sync/atomic"

	"remoting/rpcerr"
)

var connSeq uint32

func nextConnID() uint32 { return atomic.AddUint32(&connSeq, 1) }

// ConnManager tracks the live connections of one server or client
// (adapted from the teacher's jnet.ConnManager), keyed by the locally
// assigned connection id rather than anything from the wire.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[uint32]*Conn
}

func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[uint32]*Conn)}
}

func (m *ConnManager) Add(c *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.ID()] = c
}

func (m *ConnManager) Remove(c *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, c.ID())
}

func (m *ConnManager) Get(id uint32) (*Conn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, rpcerr.New(rpcerr.ConnectionLost, "connection not found")
	}
	return c, nil
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Each calls f on a snapshot of every managed connection; CloseAll uses
// it to close them all, the way ClearConn does in the teacher's
// ConnManager.
func (m *ConnManager) Each(f func(*Conn)) {
	m.mu.RLock()
	snapshot := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		snapshot = append(snapshot, c)
	}
	m.mu.RUnlock()
	for _, c := range snapshot {
		f(c)
	}
}

func (m *ConnManager) CloseAll() {
	m.Each(func(c *Conn) { c.Close() })
	m.mu.Lock()
	m.conns = make(map[uint32]*Conn)
	m.mu.Unlock()
}
