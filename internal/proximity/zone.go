package proximity

// BoopRadius is the fixed distance in meters at or under which two users boop.
// It does not depend on per-user hot/warm/cold thresholds.
const BoopRadius = 10.0

// DefaultAlertRadius is the outer search radius for proximity alerts.
const DefaultAlertRadius = 100.0

// Zone is the distance band of a pair of users
type Zone int

const (
	ZoneNone Zone = iota
	ZoneAlert
	ZoneBoop
)

func (z Zone) String() string {
	switch z {
	case ZoneBoop:
		return "boop"
	case ZoneAlert:
		return "alert"
	default:
		return "none"
	}
}

// Classify maps a distance in meters to a zone. Both bounds are inclusive.
func Classify(distance, alertRadius float64) Zone {
	switch {
	case distance <= BoopRadius:
		return ZoneBoop
	case distance <= alertRadius:
		return ZoneAlert
	default:
		return ZoneNone
	}
}
