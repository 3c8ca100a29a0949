package rpc

import "testing"

func TestCallWaitDeliversResultsAndRecycles(t *testing.T) {
	c := newCall(1)
	c.Results = []any{"a", "b"}
	c.finish()

	done := c.Wait()
	if done != c {
		t.Fatalf("Wait() returned a different Call")
	}
	if len(done.Results) != 2 {
		t.Fatalf("Results = %v", done.Results)
	}
	done.release()

	// A recycled Call must come back cleared, not carrying the previous
	// caller's results into the next one.
	reused := newCall(2)
	if reused.Results != nil || reused.Err != nil {
		t.Fatalf("reused Call not cleared: %+v", reused)
	}
	if reused.Seq != 2 {
		t.Fatalf("reused.Seq = %d, want 2", reused.Seq)
	}
	reused.finish()
	reused.Wait()
	reused.release()
}
