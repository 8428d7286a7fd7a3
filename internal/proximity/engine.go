package proximity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"boop/server/internal/geo"
	"boop/server/internal/ledger"
	"boop/server/internal/models"
	"boop/server/internal/presence"
	"boop/server/internal/store"
)

var (
	// ErrNotSameGroup is the manual-boop form of a missing shared group
	ErrNotSameGroup = errors.New("both users must be in the same group to boop")
	ErrOutOfRange   = errors.New("users must be within 10 meters to boop")
	ErrSelfBoop     = errors.New("cannot boop yourself")
)

// Alert is a proximity_alert for one recipient about one nearby user
type Alert struct {
	NearbyUser models.UserRef
	Location   geo.Point
	Distance   float64
	Bearing    float64
	CanBoop    bool
}

// BoopEvent describes one boop, delivered identically to both participants
type BoopEvent struct {
	Booper    models.UserRef
	Boopee    models.UserRef
	Record    models.BoopRecord
	Distance  *float64
	Group     *models.GroupSummary // nil when no ledger entry was written
	Automatic bool
}

// Notifier delivers engine output to users. Delivery is best effort.
type Notifier interface {
	NotifyProximity(recipient string, alert Alert)
	NotifyBoop(recipient string, event BoopEvent)
	NotifyMemberLocation(recipients []string, user *models.User)
}

// Ledger records boops in a group's log
type Ledger interface {
	Append(ctx context.Context, groupID string, rec models.BoopRecord) (*ledger.Receipt, error)
}

var _ Ledger = (*ledger.Ledger)(nil)

type Config struct {
	AlertRadius float64
	// RealertInterval re-sends an alert for an unchanged zone. Zero disables it.
	RealertInterval time.Duration
	// IdempotencyWindow skips the write when the same coordinates are resubmitted.
	IdempotencyWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		AlertRadius:       DefaultAlertRadius,
		RealertInterval:   30 * time.Second,
		IdempotencyWindow: 5 * time.Second,
	}
}

// UpdateResult is the outcome of one accepted location update
type UpdateResult struct {
	User      *models.User
	Duplicate bool
	Alerts    int
	Boops     int
}

// Engine reacts to location updates: it persists the location, finds nearby
// users, classifies zones, suppresses repeated triggers and emits alerts and boops.
type Engine struct {
	users    store.UserDirectory
	groups   store.GroupStore
	presence presence.Tracker
	ledger   Ledger
	notifier Notifier
	cfg      Config
	logger   *slog.Logger

	pairs *PairTracker
	locks *userLocks
	now   func() time.Time
}

func NewEngine(
	users store.UserDirectory,
	groups store.GroupStore,
	tracker presence.Tracker,
	boops Ledger,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if cfg.AlertRadius <= 0 {
		cfg.AlertRadius = DefaultAlertRadius
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		users:    users,
		groups:   groups,
		presence: tracker,
		ledger:   boops,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		pairs:    NewPairTracker(cfg.RealertInterval),
		locks:    newUserLocks(),
		now:      time.Now,
	}
}

// Pairs exposes the trigger state, mainly for stats and tests
func (e *Engine) Pairs() *PairTracker {
	return e.pairs
}

// UpdateLocation handles one location update for uid. Updates for the same
// user are processed one at a time. Invalid input and persistence or lookup
// failures return an error before anything is sent.
func (e *Engine) UpdateLocation(ctx context.Context, uid string, lat, lon float64) (*UpdateResult, error) {
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(uid)
	defer unlock()

	user, err := e.users.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	now := e.now()
	res := &UpdateResult{User: user}
	res.Duplicate = user.Location != nil && *user.Location == p &&
		user.LocationUpdatedAt != nil && now.Sub(*user.LocationUpdatedAt) < e.cfg.IdempotencyWindow

	if !res.Duplicate {
		if err := e.users.SetLocation(ctx, uid, p, now); err != nil {
			return nil, fmt.Errorf("failed to persist location: %w", err)
		}
		user.Location = &p
		user.LocationUpdatedAt = &now
	}

	if user.Privacy.ShareLocation && user.Privacy.ProximityAlertsEnabled {
		if err := e.detect(ctx, user, p, now, res); err != nil {
			return nil, err
		}
	} else {
		e.pairs.Forget(uid)
	}

	if !res.Duplicate {
		e.shareWithGroup(ctx, user)
	}
	return res, nil
}

func (e *Engine) detect(ctx context.Context, user *models.User, p geo.Point, now time.Time, res *UpdateResult) error {
	mark := e.pairs.Mark()
	candidates, err := e.users.FindWithinRadius(ctx, p, e.cfg.AlertRadius, user.ID)
	if err != nil {
		return fmt.Errorf("failed to search nearby users: %w", err)
	}

	uids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		uids = append(uids, c.UID)
	}
	online, err := e.presence.Online(ctx, uids)
	if err != nil {
		return fmt.Errorf("failed to check presence: %w", err)
	}

	self := models.UserRef{UID: user.ID, Name: user.Name}
	inRange := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		if c.UID == user.ID || !c.ProximityAlertsEnabled || !online[c.UID] {
			continue
		}

		d := geo.Distance(p, c.Location)
		zone := Classify(d, e.cfg.AlertRadius)
		if zone == ZoneNone {
			continue
		}
		inRange[c.UID] = true

		dec := e.pairs.Observe(user.ID, c.UID, zone, now)
		if dec.Alert {
			other := models.UserRef{UID: c.UID, Name: c.Name}
			e.notifier.NotifyProximity(user.ID, Alert{
				NearbyUser: other,
				Location:   c.Location,
				Distance:   d,
				Bearing:    geo.Bearing(p, c.Location),
				CanBoop:    zone == ZoneBoop,
			})
			e.notifier.NotifyProximity(c.UID, Alert{
				NearbyUser: self,
				Location:   p,
				Distance:   d,
				Bearing:    geo.Bearing(c.Location, p),
				CanBoop:    zone == ZoneBoop,
			})
			res.Alerts++
		}
		if dec.Boop {
			e.autoBoop(ctx, user, c, p, d, now)
			res.Boops++
		}
	}

	// pairs that left the search radius or went offline start a new episode next time
	e.pairs.Retain(user.ID, inRange, mark)
	return nil
}

// autoBoop records the boop when both users share a group and notifies both
// sides either way. A ledger failure is logged and does not stop delivery.
func (e *Engine) autoBoop(ctx context.Context, user *models.User, c models.Candidate, at geo.Point, d float64, now time.Time) {
	rec := models.NewBoopRecord(user.ID, c.UID, &at)
	rec.Timestamp = now

	ev := BoopEvent{
		Booper:    models.UserRef{UID: user.ID, Name: user.Name},
		Boopee:    models.UserRef{UID: c.UID, Name: c.Name},
		Distance:  &d,
		Automatic: true,
	}

	groupID, err := e.groups.SharedGroup(ctx, user.ID, c.UID)
	switch {
	case err != nil:
		e.logger.Warn("shared group lookup failed", "booper", user.ID, "boopee", c.UID, "error", err)
	case groupID == "":
		e.logger.Debug("boop without shared group, not recorded", "booper", user.ID, "boopee", c.UID)
	default:
		receipt, err := e.ledger.Append(ctx, groupID, rec)
		if err != nil {
			e.logger.Error("failed to record boop", "group", groupID, "booper", user.ID, "boopee", c.UID, "error", err)
			break
		}
		rec = receipt.Record
		ev.Group = &receipt.Group
	}
	ev.Record = rec

	e.logger.Info("boop", "booper", user.ID, "boopee", c.UID, "distance", d, "recorded", ev.Group != nil)
	e.notifier.NotifyBoop(user.ID, ev)
	e.notifier.NotifyBoop(c.UID, ev)
}

func (e *Engine) shareWithGroup(ctx context.Context, user *models.User) {
	groupID := user.InGroup()
	if groupID == "" || !user.Privacy.ShareLocation {
		return
	}
	members, err := e.groups.Members(ctx, groupID)
	if err != nil {
		e.logger.Warn("group member lookup failed", "group", groupID, "error", err)
		return
	}
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m != user.ID {
			recipients = append(recipients, m)
		}
	}
	if len(recipients) > 0 {
		e.notifier.NotifyMemberLocation(recipients, user)
	}
}

// BoopRequest is an explicit boop sent by a client
type BoopRequest struct {
	BooperUID string
	BoopeeUID string
	At        *geo.Point
}

// Boop performs a manual boop. Unlike the automatic path it requires a shared
// group, and when a boop location is given both users must be within
// BoopRadius of it.
func (e *Engine) Boop(ctx context.Context, req BoopRequest) (*BoopEvent, error) {
	if req.BooperUID == req.BoopeeUID {
		return nil, ErrSelfBoop
	}
	if req.At != nil {
		if err := req.At.Validate(); err != nil {
			return nil, err
		}
	}

	unlock := e.locks.Lock(req.BooperUID)
	defer unlock()

	booper, err := e.users.GetUser(ctx, req.BooperUID)
	if err != nil {
		return nil, err
	}
	boopee, err := e.users.GetUser(ctx, req.BoopeeUID)
	if err != nil {
		return nil, err
	}

	groupID, err := e.groups.SharedGroup(ctx, booper.ID, boopee.ID)
	if err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, ErrNotSameGroup
	}

	located := booper.Location != nil && boopee.Location != nil
	if req.At != nil && located {
		if !geo.WithinRadius(*req.At, *booper.Location, BoopRadius) ||
			!geo.WithinRadius(*req.At, *boopee.Location, BoopRadius) {
			return nil, ErrOutOfRange
		}
	}

	receipt, err := e.ledger.Append(ctx, groupID, models.NewBoopRecord(booper.ID, boopee.ID, req.At))
	if err != nil {
		return nil, err
	}

	ev := &BoopEvent{
		Booper: models.UserRef{UID: booper.ID, Name: booper.Name},
		Boopee: models.UserRef{UID: boopee.ID, Name: boopee.Name},
		Record: receipt.Record,
		Group:  &receipt.Group,
	}
	if located {
		d := geo.Distance(*booper.Location, *boopee.Location)
		ev.Distance = &d
	}

	// the pair is together now; the auto-boop must not fire again this episode
	if req.At != nil || (located && geo.WithinRadius(*booper.Location, *boopee.Location, BoopRadius)) {
		e.pairs.MarkBooped(booper.ID, boopee.ID)
	}

	e.notifier.NotifyBoop(booper.ID, *ev)
	e.notifier.NotifyBoop(boopee.ID, *ev)
	return ev, nil
}

// UserDisconnected clears trigger state once the user's last connection is gone
func (e *Engine) UserDisconnected(uid string) {
	e.pairs.Forget(uid)
}
