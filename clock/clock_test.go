package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFake_Advance_Fires_Due_Timers_In_Order(t *testing.T) {
	req := require.New(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)
	var fired []string

	c.AfterFunc(2*time.Second, func() { fired = append(fired, "second") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "first") })
	c.AfterFunc(5*time.Second, func() { fired = append(fired, "late") })

	// When time moves by three seconds
	c.Advance(3 * time.Second)

	// Then only due timers fired, in deadline order
	req.Equal([]string{"first", "second"}, fired)
	req.Equal(start.Add(3*time.Second), c.Now())
	req.Equal(1, c.Pending())
}

func TestFake_Stopped_Timer_Never_Fires(t *testing.T) {
	req := require.New(t)
	c := Fake(time.Unix(0, 0))
	called := false

	timer := c.AfterFunc(time.Second, func() { called = true })
	req.True(timer.Stop())
	req.False(timer.Stop())

	c.Advance(time.Minute)
	req.False(called)
	req.Zero(c.Pending())
}

func TestFake_Callback_Sees_Its_Deadline(t *testing.T) {
	req := require.New(t)
	start := time.Unix(100, 0)
	c := Fake(start)
	var seen time.Time

	c.AfterFunc(2*time.Second, func() { seen = c.Now() })
	c.Advance(10 * time.Second)

	req.Equal(start.Add(2*time.Second), seen)
}

func TestFake_Callback_Can_Register_Timer(t *testing.T) {
	req := require.New(t)
	c := Fake(time.Unix(0, 0))
	count := 0

	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})
	c.Advance(3 * time.Second)

	req.Equal(2, count)
}
