package proximity

import (
	"sync"
	"time"
)

type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

func (k pairKey) other(uid string) string {
	if k.a == uid {
		return k.b
	}
	return k.a
}

// PairState is the trigger state of one unordered pair of users
type PairState struct {
	Zone      Zone
	AlertedAt time.Time
	// Booped is set once the pair booped during the current episode and is
	// cleared when the pair leaves the boop zone.
	Booped bool

	seen uint64
}

// Decision is what a single observation of a pair asks the engine to emit
type Decision struct {
	Alert bool
	Boop  bool
}

// PairTracker holds the trigger state of every pair currently in range.
// All transitions happen under one lock so concurrent updates from both
// members of a pair cannot both trigger the same boop.
type PairTracker struct {
	mu      sync.Mutex
	realert time.Duration
	seq     uint64
	pairs   map[pairKey]*PairState
	byUser  map[string]map[pairKey]struct{}
}

// NewPairTracker creates a tracker that re-alerts an unchanged zone after
// realert. A zero realert never re-alerts.
func NewPairTracker(realert time.Duration) *PairTracker {
	return &PairTracker{
		realert: realert,
		pairs:   make(map[pairKey]*PairState),
		byUser:  make(map[string]map[pairKey]struct{}),
	}
}

// Observe records that x and y are currently in zone z
func (t *PairTracker) Observe(x, y string, z Zone, now time.Time) Decision {
	key := newPairKey(x, y)

	t.mu.Lock()
	defer t.mu.Unlock()

	if z == ZoneNone {
		t.remove(key)
		return Decision{}
	}

	t.seq++
	var d Decision
	st, ok := t.pairs[key]
	if !ok {
		st = &PairState{Zone: z, AlertedAt: now}
		t.pairs[key] = st
		t.index(key)
		d.Alert = true
	} else {
		due := t.realert > 0 && now.Sub(st.AlertedAt) >= t.realert
		if st.AlertedAt.IsZero() || st.Zone != z || due {
			d.Alert = true
			st.AlertedAt = now
		}
		st.Zone = z
	}
	st.seen = t.seq

	if z == ZoneBoop {
		if !st.Booped {
			st.Booped = true
			d.Boop = true
		}
	} else {
		st.Booped = false
	}
	return d
}

// MarkBooped records a boop the pair made outside Observe. The pair enters
// the boop zone with its episode already booped, so the next observation in
// range alerts but does not boop again.
func (t *PairTracker) MarkBooped(x, y string) {
	key := newPairKey(x, y)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	st, ok := t.pairs[key]
	if !ok {
		st = &PairState{}
		t.pairs[key] = st
		t.index(key)
	}
	st.Zone = ZoneBoop
	st.Booped = true
	st.seen = t.seq
}

// Mark returns a position in the observation sequence to pass to Retain
func (t *PairTracker) Mark() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Retain drops the state of every pair containing uid whose other member is
// not in keep. Pairs observed after mark are kept: they come from a
// concurrent update that saw a newer location than the caller's search.
func (t *PairTracker) Retain(uid string, keep map[string]bool, mark uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.byUser[uid] {
		if keep[key.other(uid)] || t.pairs[key].seen > mark {
			continue
		}
		t.remove(key)
	}
}

// Forget drops every pair containing uid
func (t *PairTracker) Forget(uid string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.byUser[uid] {
		t.remove(key)
	}
}

// State returns a copy of the pair's state
func (t *PairTracker) State(x, y string) (PairState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.pairs[newPairKey(x, y)]
	if !ok {
		return PairState{}, false
	}
	return *st, true
}

// Len returns the number of tracked pairs
func (t *PairTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pairs)
}

func (t *PairTracker) index(key pairKey) {
	for _, uid := range []string{key.a, key.b} {
		set, ok := t.byUser[uid]
		if !ok {
			set = make(map[pairKey]struct{})
			t.byUser[uid] = set
		}
		set[key] = struct{}{}
	}
}

func (t *PairTracker) remove(key pairKey) {
	if _, ok := t.pairs[key]; !ok {
		return
	}
	delete(t.pairs, key)
	for _, uid := range []string{key.a, key.b} {
		if set, ok := t.byUser[uid]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(t.byUser, uid)
			}
		}
	}
}
