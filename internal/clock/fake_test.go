package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(5*time.Second), got)
	default:
		t.Fatal("did not fire at deadline")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeClock_NonPositiveDurationFiresImmediately(t *testing.T) {
	c := Fake(epoch)
	select {
	case got := <-c.After(0):
		assert.Equal(t, epoch, got)
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeClock_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never released")
	}
}

func TestFakeClock_SetBackwardsDoesNotFire(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(time.Second)
	c.Set(epoch.Add(-time.Hour))
	require.Equal(t, 1, c.PendingCount())
	select {
	case <-ch:
		t.Fatal("fired on backwards jump")
	default:
	}
}
