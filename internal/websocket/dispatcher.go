package websocket

import (
	"log/slog"

	"boop/server/internal/models"
	"boop/server/internal/proximity"
)

// Sender is the part of the Hub the dispatcher needs
type Sender interface {
	SendToUser(userID string, message WSMessage) int
	SendToUsers(userIDs []string, message WSMessage) int
}

// Dispatcher turns engine output into wire events. Delivery is at most once
// and best effort: users without a live connection simply miss the event.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

var _ proximity.Notifier = (*Dispatcher)(nil)

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// SendToUser delivers one event to every connection of userID
func (d *Dispatcher) SendToUser(userID string, event EventType, payload interface{}) int {
	return d.sender.SendToUser(userID, NewMessage(event, payload))
}

func (d *Dispatcher) NotifyProximity(recipient string, alert proximity.Alert) {
	loc := alert.Location
	d.SendToUser(recipient, EventProximityAlert, ProximityAlertPayload{
		NearbyUser: NearbyUser{
			UID:      alert.NearbyUser.UID,
			Name:     alert.NearbyUser.Name,
			Location: models.PointToGeoJSON(&loc),
		},
		Distance:  alert.Distance,
		Direction: alert.Bearing,
		CanBoop:   alert.CanBoop,
	})
}

// NotifyBoop sends boop_happened and boop_success to the recipient. Each
// send is independent of the other and of the other participant.
func (d *Dispatcher) NotifyBoop(recipient string, ev proximity.BoopEvent) {
	loc := models.PointToGeoJSON(ev.Record.Location)

	d.SendToUser(recipient, EventBoopHappened, BoopHappenedPayload{
		Booper:    ev.Booper,
		Boopee:    ev.Boopee,
		Timestamp: ev.Record.Timestamp,
		Location:  loc,
		Distance:  ev.Distance,
	})
	d.SendToUser(recipient, EventBoopSuccess, BoopSuccessPayload{
		Message:  "Boop successful!",
		Boop:     ev.Record.ToResponse(),
		Distance: ev.Distance,
		Group:    ev.Group,
	})
}

func (d *Dispatcher) NotifyMemberLocation(recipients []string, user *models.User) {
	n := d.sender.SendToUsers(recipients, NewMessage(EventMemberLocationUpdated, MemberLocationPayload{
		UID:      user.ID,
		Name:     user.Name,
		Location: models.PointToGeoJSON(user.Location),
	}))
	d.logger.Debug("member location shared", "user_id", user.ID, "recipients", len(recipients), "delivered", n)
}
