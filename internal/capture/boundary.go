package capture

// Rollover describes a detected change of calendar day.
type Rollover struct {
	// Today is the newly observed date.
	Today string
	// Closed is the date that just ended. Empty on a reconcile.
	Closed string
	// Reconcile is set when no date had been observed yet, so every closed
	// group left over from a previous run must be rendered.
	Reconcile bool
}

// Detect compares today with the last observed date. It reports a rollover
// when last is unset or differs from today.
func Detect(today, last string) (Rollover, bool) {
	switch {
	case last == "":
		return Rollover{Today: today, Reconcile: true}, true
	case today != last:
		return Rollover{Today: today, Closed: last}, true
	default:
		return Rollover{}, false
	}
}

// Trigger holds the last observed date for the capture loop. It is owned by a
// single goroutine and is not safe for concurrent use.
type Trigger struct {
	last string
}

// Check reports whether today differs from the stored date without updating it.
func (t *Trigger) Check(today string) (Rollover, bool) {
	return Detect(today, t.last)
}

// Observe records today as the last seen date.
func (t *Trigger) Observe(today string) {
	t.last = today
}

// Last returns the stored date, empty before the first observation.
func (t *Trigger) Last() string {
	return t.last
}
