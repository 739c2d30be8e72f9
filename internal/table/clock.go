package table

import "time"

// Clock is a table's logical clock. Next never returns the same instant
// twice: when the wall clock has not moved past the last issued timestamp it
// issues the last one plus a millisecond. The last issued timestamp is saved
// with the table so the guarantee survives reloads.
type Clock struct {
	now  func() time.Time
	last time.Time
}

// NewClock returns a clock reading now, or time.Now when now is nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now is the wall clock at millisecond precision.
func (c *Clock) Now() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

// Next returns a unique timestamp strictly after every one issued before.
func (c *Clock) Next() time.Time {
	t := c.Now()
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

// Observe moves the clock past t if t is later than anything issued.
func (c *Clock) Observe(t time.Time) {
	if t.After(c.last) {
		c.last = t.UTC()
	}
}

// Last returns the most recently issued timestamp.
func (c *Clock) Last() time.Time {
	return c.last
}
