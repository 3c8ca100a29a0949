package rpc

import (
	"time"

	"remoting/instance"
	"remoting/jlog"
	"remoting/jtimer"
	"remoting/wire"
)

// frameWriter is the minimal surface GcSweeper needs from either a
// ClientInterceptor's or ServerDispatcher's connection: ship a batch of
// released ids to the peer as one GcCleanup frame.
type frameWriter interface {
	sendGcCleanup(ids []instance.ObjectId) error
}

func (ci *ClientInterceptor) sendGcCleanup(ids []instance.ObjectId) error {
	ci.Conn.Writer.Lock()
	defer ci.Conn.Writer.Unlock()
	return writeGcCleanupFrame(ci.Conn.Writer, ids)
}

func (d *ServerDispatcher) sendGcCleanup(ids []instance.ObjectId) error {
	d.Conn.Writer.Lock()
	defer d.Conn.Writer.Unlock()
	return writeGcCleanupFrame(d.Conn.Writer, ids)
}

func writeGcCleanupFrame(w *wire.Writer, ids []instance.ObjectId) error {
	if err := wire.WriteHeader(w, wire.Header{Function: wire.GcCleanup}); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := w.WriteString(string(id)); err != nil {
			return err
		}
	}
	return nil
}

// GcSweeper periodically sweeps the instance manager and ships the
// resulting batch of released ids to the peer as a GcCleanup frame
// (spec.md §4.2/§4.5's distributed GC), supplementing the purely
// caller-triggered instance.Manager.Sweep with the always-on cadence a
// real deployment needs.
type GcSweeper struct {
	target   frameWriter
	manager  *instance.Manager
	interval time.Duration
	timerId  uint32
	stopped  bool
}

// NewGcSweeper starts a periodic sweep against manager, reporting
// released ids to target every interval. A non-positive interval
// disables the periodic sweep; Manager.Sweep is still usable directly.
// Each tick reschedules the next one itself rather than relying on the
// scheduler's repeat count: every timer the sweeper creates passes
// times=1, so it fires once.
func NewGcSweeper(target frameWriter, manager *instance.Manager, interval time.Duration) *GcSweeper {
	s := &GcSweeper{target: target, manager: manager, interval: interval}
	if interval <= 0 {
		return s
	}
	s.scheduleNext()
	return s
}

func (s *GcSweeper) scheduleNext() {
	df := jtimer.NewDelayFunc(func(...any) { s.tick() }, nil)
	id, _ := jtimer.GlobelTimer.CreateTimerAfter(df, s.interval, 1, int64(s.interval))
	s.timerId = id
}

func (s *GcSweeper) tick() {
	if s.stopped {
		return
	}
	err := s.manager.Sweep(func(ids []instance.ObjectId) error {
		return s.target.sendGcCleanup(ids)
	})
	if err != nil {
		jlog.StdLogger.Error("rpc: gc sweep emit failed: ", err.Error())
	}
	if !s.stopped {
		s.scheduleNext()
	}
}

func (s *GcSweeper) Stop() {
	s.stopped = true
	if s.timerId != 0 {
		jtimer.GlobelTimer.RomoveTimer(s.timerId)
	}
}
