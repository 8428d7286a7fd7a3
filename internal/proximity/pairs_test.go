package proximity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Boundaries(t *testing.T) {
	assert.Equal(t, ZoneBoop, Classify(0, DefaultAlertRadius))
	assert.Equal(t, ZoneBoop, Classify(10.0, DefaultAlertRadius))
	assert.Equal(t, ZoneAlert, Classify(10.001, DefaultAlertRadius))
	assert.Equal(t, ZoneAlert, Classify(100, DefaultAlertRadius))
	assert.Equal(t, ZoneNone, Classify(100.001, DefaultAlertRadius))
	assert.Equal(t, ZoneAlert, Classify(150, 200), "alert radius is configurable")
}

func TestPairTracker_FirstObservationAlerts(t *testing.T) {
	tr := NewPairTracker(time.Minute)
	now := time.Now()

	d := tr.Observe("a", "b", ZoneAlert, now)
	assert.Equal(t, Decision{Alert: true}, d)

	d = tr.Observe("b", "a", ZoneAlert, now.Add(time.Second))
	assert.Equal(t, Decision{}, d, "pair state is unordered")
}

func TestPairTracker_ZoneChangeAlerts(t *testing.T) {
	tr := NewPairTracker(time.Minute)
	now := time.Now()

	tr.Observe("a", "b", ZoneAlert, now)
	d := tr.Observe("a", "b", ZoneBoop, now.Add(time.Second))
	assert.Equal(t, Decision{Alert: true, Boop: true}, d)

	d = tr.Observe("a", "b", ZoneAlert, now.Add(2*time.Second))
	assert.Equal(t, Decision{Alert: true}, d)
}

func TestPairTracker_RealertInterval(t *testing.T) {
	tr := NewPairTracker(30 * time.Second)
	now := time.Now()

	tr.Observe("a", "b", ZoneAlert, now)
	assert.False(t, tr.Observe("a", "b", ZoneAlert, now.Add(29*time.Second)).Alert)
	assert.True(t, tr.Observe("a", "b", ZoneAlert, now.Add(30*time.Second)).Alert)
	assert.False(t, tr.Observe("a", "b", ZoneAlert, now.Add(45*time.Second)).Alert)

	never := NewPairTracker(0)
	never.Observe("a", "b", ZoneAlert, now)
	assert.False(t, never.Observe("a", "b", ZoneAlert, now.Add(time.Hour)).Alert)
}

func TestPairTracker_Hysteresis(t *testing.T) {
	tr := NewPairTracker(0)
	now := time.Now()

	assert.True(t, tr.Observe("a", "b", ZoneBoop, now).Boop)
	for i := 1; i <= 5; i++ {
		assert.False(t, tr.Observe("a", "b", ZoneBoop, now.Add(time.Duration(i)*time.Second)).Boop,
			"lingering inside the boop zone must not boop again")
	}

	tr.Observe("a", "b", ZoneAlert, now.Add(10*time.Second))
	st, ok := tr.State("a", "b")
	assert.True(t, ok)
	assert.False(t, st.Booped)

	assert.True(t, tr.Observe("b", "a", ZoneBoop, now.Add(11*time.Second)).Boop, "re-entry starts a new episode")
}

func TestPairTracker_NoneClearsState(t *testing.T) {
	tr := NewPairTracker(0)
	now := time.Now()

	tr.Observe("a", "b", ZoneBoop, now)
	assert.Equal(t, Decision{}, tr.Observe("a", "b", ZoneNone, now))
	_, ok := tr.State("a", "b")
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Len())
}

func TestPairTracker_RetainAndForget(t *testing.T) {
	tr := NewPairTracker(0)
	now := time.Now()

	tr.Observe("a", "b", ZoneAlert, now)
	tr.Observe("a", "c", ZoneAlert, now)
	tr.Observe("b", "c", ZoneAlert, now)
	assert.Equal(t, 3, tr.Len())

	tr.Retain("a", map[string]bool{"b": true}, tr.Mark())
	_, ab := tr.State("a", "b")
	_, ac := tr.State("a", "c")
	assert.True(t, ab)
	assert.False(t, ac)

	tr.Forget("b")
	assert.Equal(t, 0, tr.Len())
}

func TestPairTracker_RetainKeepsNewerObservations(t *testing.T) {
	tr := NewPairTracker(0)
	now := time.Now()

	mark := tr.Mark()
	// a concurrent update observes the pair after the search began
	tr.Observe("b", "a", ZoneBoop, now)
	tr.Retain("a", nil, mark)

	_, ok := tr.State("a", "b")
	assert.True(t, ok)

	tr.Retain("a", nil, tr.Mark())
	_, ok = tr.State("a", "b")
	assert.False(t, ok)
}

func TestPairTracker_MarkBooped(t *testing.T) {
	now := time.Now()

	t.Run("untracked pair", func(t *testing.T) {
		tr := NewPairTracker(0)
		tr.MarkBooped("a", "b")

		d := tr.Observe("b", "a", ZoneBoop, now)
		assert.True(t, d.Alert, "the pair was never alerted")
		assert.False(t, d.Boop, "the episode already booped")

		tr.Observe("a", "b", ZoneAlert, now)
		assert.True(t, tr.Observe("a", "b", ZoneBoop, now).Boop, "a new episode boops again")
	})

	t.Run("tracked pair", func(t *testing.T) {
		tr := NewPairTracker(0)
		tr.Observe("a", "b", ZoneBoop, now)
		tr.MarkBooped("b", "a")

		d := tr.Observe("a", "b", ZoneBoop, now)
		assert.False(t, d.Alert)
		assert.False(t, d.Boop)
	})

	t.Run("survives a stale retain", func(t *testing.T) {
		tr := NewPairTracker(0)
		mark := tr.Mark()
		tr.MarkBooped("a", "b")
		tr.Retain("a", nil, mark)

		st, ok := tr.State("a", "b")
		require.True(t, ok)
		assert.True(t, st.Booped)
	})
}
