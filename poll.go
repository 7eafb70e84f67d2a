package zwave

import (
	"sync"
	"time"
)

// PollIntensity controls how eagerly a value is re-polled: it seeds a
// per-entry counter that is decremented each time the rotation visits
// the entry, and the entry fires only when its counter reaches zero
// (the counter then resets to the intensity). An intensity of N fires
// the entry once every N passes of the rotation.
type PollIntensity int

const (
	// PollNone excludes a value from the rotating poll list entirely.
	PollNone PollIntensity = 0
	// PollNormal polls the value on every pass of the rotation.
	PollNormal PollIntensity = 1
)

// PollDispatchMode selects how the engine spreads its rotation across
// time.
type PollDispatchMode int

const (
	// DispatchIntervalBetweenPolls sleeps a fixed interval after each
	// individual poll is issued, so the wall-clock gap between any two
	// consecutive polls is constant regardless of list length.
	DispatchIntervalBetweenPolls PollDispatchMode = iota
	// DispatchIntervalPerCycle sleeps once per full rotation through the
	// list, so the per-value poll rate shrinks as the list grows.
	DispatchIntervalPerCycle
)

// AdaptivePoll is an exponential-backoff pacer: it starts at Fast and
// backs off toward Steady so a newly-opened driver polls quickly while
// its value set is still filling in, then settles into its steady-state
// rate once things are quiet.
type AdaptivePoll struct {
	Cur    time.Duration
	Fast   time.Duration
	Steady time.Duration
	skip   bool
}

// NewAdaptivePoll returns a pacer starting at fast and backing off toward
// steady.
func NewAdaptivePoll(fast, steady time.Duration) *AdaptivePoll {
	return &AdaptivePoll{Cur: fast, Fast: fast, Steady: steady}
}

// Sleep blocks for the pacer's current interval, then doubles it toward
// Steady (capped there).
func (p *AdaptivePoll) Sleep() {
	time.Sleep(p.Cur)
	if p.skip {
		p.skip = false
		return
	}
	p.Cur *= 2
	if p.Cur > p.Steady {
		p.Cur = p.Steady
	}
}

// Reset drops the pacer back to Fast, e.g. after a burst of new values
// arrives.
func (p *AdaptivePoll) Reset() { p.Cur = p.Fast }

// Interval returns the current pacing interval and advances it toward
// Steady, leaving the actual wait to the caller. Useful when the wait
// must remain interruptible.
func (p *AdaptivePoll) Interval() time.Duration {
	cur := p.Cur
	p.Cur *= 2
	if p.Cur > p.Steady {
		p.Cur = p.Steady
	}
	return cur
}

// pollEntry is one value_id/intensity pair in the rotation, with the
// countdown that paces how often the entry actually fires.
type pollEntry struct {
	id        ValueID
	intensity PollIntensity
	counter   int
}

// PollEngine rotates through a list of (value_id, intensity) pairs,
// issuing a poll request for each in turn. It owns no
// transport of its own: Tick enqueues a Message onto the Poll band via
// SendQueues, the same as any other outbound traffic, so polls are
// always the lowest-priority band and never starve higher-priority work.
type PollEngine struct {
	mu      sync.Mutex
	entries []pollEntry
	cursor  int

	Mode     PollDispatchMode
	Interval time.Duration

	buildPoll func(id ValueID) (Message, error)
}

// NewPollEngine returns an empty engine. buildPoll turns a value id into
// the Message its owning command-class plugin would send to request a
// fresh read; the engine has no idea what that looks like on the wire.
func NewPollEngine(mode PollDispatchMode, interval time.Duration, buildPoll func(ValueID) (Message, error)) *PollEngine {
	return &PollEngine{Mode: mode, Interval: interval, buildPoll: buildPoll}
}

// SetPacing retargets the dispatch mode and interval of a live engine,
// taking effect on the poll thread's next pacing decision.
func (e *PollEngine) SetPacing(interval time.Duration, mode PollDispatchMode) {
	e.mu.Lock()
	e.Interval = interval
	e.Mode = mode
	e.mu.Unlock()
}

// Pacing returns the current dispatch interval and mode.
func (e *PollEngine) Pacing() (time.Duration, PollDispatchMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Interval, e.Mode
}

// Enable adds id to the rotation at the given intensity, or updates its
// intensity if already present. PollNone removes it.
func (e *PollEngine) Enable(id ValueID, intensity PollIntensity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, ent := range e.entries {
		if ent.id == id {
			if intensity == PollNone {
				e.entries = append(e.entries[:i], e.entries[i+1:]...)
				if e.cursor > i {
					e.cursor--
				}
			} else {
				e.entries[i].intensity = intensity
				e.entries[i].counter = int(intensity)
			}
			return
		}
	}
	if intensity != PollNone {
		e.entries = append(e.entries, pollEntry{id: id, intensity: intensity, counter: int(intensity)})
	}
}

// IsPolled reports whether id is currently in the rotation.
func (e *PollEngine) IsPolled(id ValueID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range e.entries {
		if ent.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of values currently in rotation.
func (e *PollEngine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Next advances the rotation cursor one entry and decrements that
// entry's poll counter. The entry's value id is returned only when the
// counter reaches zero, at which point it resets to the entry's
// intensity; ok=false means the visited entry wasn't due yet (or the
// rotation is empty), so an intensity of N fires once every N passes.
func (e *PollEngine) Next() (ValueID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.entries) == 0 {
		return ValueID{}, false
	}
	ent := &e.entries[e.cursor]
	e.cursor = (e.cursor + 1) % len(e.entries)
	ent.counter--
	if ent.counter > 0 {
		return ValueID{}, false
	}
	ent.counter = int(ent.intensity)
	return ent.id, true
}

// AtCycleStart reports whether the cursor just wrapped to the beginning
// of the list, for DispatchIntervalPerCycle pacing.
func (e *PollEngine) AtCycleStart() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor == 0
}

// Tick visits the next entry in rotation and, if its counter has run
// down, enqueues its refresh request onto queues. A visit to an entry
// that isn't due yet is a no-op tick. It's called from the driver's
// poll goroutine; pacing between calls is the caller's responsibility
// via Mode/Interval.
func (e *PollEngine) Tick(queues *SendQueues) error {
	id, ok := e.Next()
	if !ok {
		return nil
	}
	msg, err := e.buildPoll(id)
	if err != nil {
		return err
	}
	queues.SendMessage(BandPoll, msg)
	return nil
}
