package event

// Log is an append-only, turn-ordered record of a single conversation.
// It is not safe for concurrent use; a session is accessed sequentially.
type Log struct {
	events   []Event
	lastTurn int
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{lastTurn: -1}
}

// Append validates and adds an event. Turns must be strictly increasing.
func (l *Log) Append(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Turn <= l.lastTurn {
		return &ValidationError{
			Field:   "turn",
			Message: "turns must be strictly increasing",
		}
	}
	l.events = append(l.events, e)
	l.lastTurn = e.Turn
	return nil
}

// Events returns a copy of the current event sequence.
func (l *Log) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events currently held.
func (l *Log) Len() int {
	return len(l.events)
}

// Replace swaps in a new event sequence, typically the output of a
// compression cycle. The last-turn watermark is kept so that future appends
// stay monotonic even when the tail was summarized away.
func (l *Log) Replace(events []Event) {
	l.events = make([]Event, len(events))
	copy(l.events, events)
}
