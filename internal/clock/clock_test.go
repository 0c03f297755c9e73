package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	fake := NewFake(start)
	assert.Equal(t, start, fake.Now())

	short := fake.After(10 * time.Minute)
	long := fake.After(30 * time.Minute)

	fake.Advance(5 * time.Minute)
	select {
	case <-short:
		t.Fatal("waiter released before its deadline")
	default:
	}

	fake.Advance(6 * time.Minute)
	select {
	case at := <-short:
		assert.Equal(t, start.Add(11*time.Minute), at)
	default:
		t.Fatal("due waiter not released")
	}
	select {
	case <-long:
		t.Fatal("later waiter released early")
	default:
	}

	fake.Advance(20 * time.Minute)
	select {
	case <-long:
	default:
		t.Fatal("due waiter not released")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("non-positive delay must fire immediately")
	}
}

func TestSystemNow(t *testing.T) {
	clk := System()
	before := time.Now()
	now := clk.Now()
	assert.False(t, now.Before(before))
}
