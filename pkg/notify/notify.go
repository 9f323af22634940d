package notify

import (
	"fmt"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// OrderPlacedNotice asks the notifier to tell a user their order went through.
type OrderPlacedNotice struct {
	OrderID     string
	UserID      string
	TotalAmount float64
}

// StatusChangedNotice is sent when an admin moves an order to a new status.
type StatusChangedNotice struct {
	OrderID string
	UserID  string
	Status  string
}

// notificationActor delivers order notifications in-process. Delivery is
// best-effort: the placement flow never waits on it.
type notificationActor struct {
	logger *zap.Logger
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *OrderPlacedNotice:
		a.logger.Info("Notifying user of placed order",
			zap.String("order_id", msg.OrderID),
			zap.String("user_id", msg.UserID),
			zap.Float64("total_amount", msg.TotalAmount))

	case *StatusChangedNotice:
		a.logger.Info("Notifying user of order status change",
			zap.String("order_id", msg.OrderID),
			zap.String("user_id", msg.UserID),
			zap.String("status", msg.Status))

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopping:
		a.logger.Info("Notification actor stopping")
	}
}

// Notifier wraps the actor system behind a plain method surface.
type Notifier struct {
	system *actor.ActorSystem
	pid    *actor.PID
}

func NewNotifier(logger *zap.Logger) (*Notifier, error) {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{logger: logger.Named("notification-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}
	return &Notifier{system: system, pid: pid}, nil
}

func (n *Notifier) OrderPlaced(orderID, userID string, totalAmount float64) {
	n.system.Root.Send(n.pid, &OrderPlacedNotice{
		OrderID:     orderID,
		UserID:      userID,
		TotalAmount: totalAmount,
	})
}

func (n *Notifier) StatusChanged(orderID, userID, status string) {
	n.system.Root.Send(n.pid, &StatusChangedNotice{
		OrderID: orderID,
		UserID:  userID,
		Status:  status,
	})
}

func (n *Notifier) Shutdown() {
	n.system.Root.Stop(n.pid)
	n.system.Shutdown()
}
