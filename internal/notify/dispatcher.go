package notify

import (
	"context"
	"log"

	"bibliohub/internal/realtime"
	"bibliohub/pkg/database"
	"bibliohub/pkg/models"
)

// Dispatcher persists notifications and pushes them over the realtime
// hub. It is passed explicitly to the components that emit; a Dispatcher
// with a nil Hub persists only, so business operations never depend on a
// live socket layer.
type Dispatcher struct {
	Repo   *Repo
	Hub    *realtime.Hub
	Logger *log.Logger
}

func NewDispatcher(repo *Repo, hub *realtime.Hub, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{Repo: repo, Hub: hub, Logger: logger}
}

// Record writes the notification row. Call it inside the transaction of
// the operation that triggered the notification, then Push after commit.
func (d *Dispatcher) Record(ctx context.Context, q database.Queryer, n models.Notification) (models.Notification, error) {
	return d.Repo.Create(ctx, q, n)
}

// Push delivers a stored notification to the target user's room.
// Best-effort, at most once: if nobody is connected the notification
// stays unread in the database and shows up on the next poll or connect.
// Push must never fail the operation that emitted it.
func (d *Dispatcher) Push(n models.Notification) {
	if d.Hub == nil {
		return
	}
	sent := d.Hub.Emit(realtime.UserRoom(n.UserID), realtime.EventNewNotification, n)
	if sent == 0 {
		d.Logger.Printf("[notify] user %s offline, notification %s persisted only", n.UserID, n.ID)
	}
}

// PushAdmin broadcasts to the admin room without persisting.
func (d *Dispatcher) PushAdmin(data any) {
	if d.Hub == nil {
		return
	}
	d.Hub.Emit(realtime.AdminRoom, realtime.EventAdminNotification, data)
}
