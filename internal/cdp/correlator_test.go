package cdp

import (
	"errors"
	"testing"
)

func TestCorrelator_SettlesOnce(t *testing.T) {
	t.Parallel()

	c := newCorrelator()
	id, ch, err := c.register("Page.navigate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !c.resolve(&Response{ID: id}) {
		t.Fatal("expected first resolve to settle the call")
	}
	if c.resolve(&Response{ID: id}) {
		t.Error("second resolve for the same id must be a no-op")
	}
	if c.abandon(id) {
		t.Error("abandon after resolve must be a no-op")
	}

	r := <-ch
	if r.resp == nil || r.resp.ID != id {
		t.Errorf("unexpected settle value %+v", r)
	}
}

func TestCorrelator_AbandonBeatsLateReply(t *testing.T) {
	t.Parallel()

	c := newCorrelator()
	id, _, _ := c.register("Slow.method")

	if !c.abandon(id) {
		t.Fatal("expected abandon to remove the call")
	}
	if c.resolve(&Response{ID: id}) {
		t.Error("late reply must be dropped")
	}
	if c.len() != 0 {
		t.Errorf("expected no pending calls, got %d", c.len())
	}
}

func TestCorrelator_IDsAreNeverReused(t *testing.T) {
	t.Parallel()

	c := newCorrelator()
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		id, _, _ := c.register("Test.method")
		if id <= 0 {
			t.Fatalf("id must start above zero, got %d", id)
		}
		if seen[id] {
			t.Fatalf("id %d reused", id)
		}
		seen[id] = true
		if i%2 == 0 {
			c.abandon(id)
		}
	}
}

func TestCorrelator_CloseFailsPendingAndRejectsNew(t *testing.T) {
	t.Parallel()

	c := newCorrelator()
	_, ch1, _ := c.register("A.method")
	_, ch2, _ := c.register("B.method")

	c.close(ErrClosed)
	c.close(errors.New("second close ignored"))

	for _, ch := range []<-chan reply{ch1, ch2} {
		if r := <-ch; !errors.Is(r.err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", r.err)
		}
	}
	if _, _, err := c.register("C.method"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected register after close to fail with ErrClosed, got %v", err)
	}
}
