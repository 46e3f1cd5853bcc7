package clock

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestFakeFiresImmediately(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	f := NewFake(start)

	got := <-f.After(5 * time.Second)
	if !got.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("fired at %v", got)
	}
	f.After(time.Second)
	if !f.Now().Equal(start.Add(6 * time.Second)) {
		t.Fatalf("now = %v", f.Now())
	}
	d := f.Delays()
	if len(d) != 2 || d[0] != 5*time.Second || d[1] != time.Second {
		t.Fatalf("delays = %v", d)
	}
}

func TestClockworkFakeIsAClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var c Clock = fc

	ch := c.After(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	fc.Advance(time.Minute)

	select {
	case <-ch:
	case <-ctx.Done():
		t.Fatal("After did not fire on Advance")
	}
}

func TestRealAfter(t *testing.T) {
	c := NewReal()
	before := c.Now()
	<-c.After(time.Millisecond)
	if c.Now().Before(before) {
		t.Fatal("clock went backwards")
	}
}
