package tbspread

// Event is a scheduled stochastic transition. The zero value is unarmed.
type Event struct {
	at    int
	armed bool
}

// ArmedAt returns an event that fires at tick.
func ArmedAt(tick int) Event {
	return Event{at: tick, armed: true}
}

// Armed reports whether the event is pending.
func (e Event) Armed() bool { return e.armed }

// At returns the fire tick and whether the event is armed.
func (e Event) At() (int, bool) {
	return e.at, e.armed
}

// Due reports whether an armed event has reached its fire tick.
func (e Event) Due(tick int) bool {
	return e.armed && tick >= e.at
}
