package worker

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/models"
	"github.com/example/buildco/backend/internal/mq"
)

// Notifier sends the emails tied to request events.
type Notifier interface {
	RequestCreated(req models.MaintenanceRequest) error
	StatusChanged(req models.MaintenanceRequest) error
}

// NotificationWorker turns maintenance events into notification emails. It
// consumes them from RabbitMQ, or receives them directly through Publish when
// the broker is unavailable.
type NotificationWorker struct {
	notifier Notifier
	log      *log.Entry
}

// NewNotificationWorker creates the worker.
func NewNotificationWorker(notifier Notifier, logger *log.Logger) *NotificationWorker {
	return &NotificationWorker{notifier: notifier, log: logger.WithField("component", "notification_worker")}
}

// Run subscribes to the consumer and blocks until ctx is cancelled. It should
// be launched in its own goroutine.
func (w *NotificationWorker) Run(ctx context.Context, consumer mq.Consumer) error {
	if err := consumer.Consume(w.handleDelivery); err != nil {
		return errors.Wrap(err, "start consuming")
	}
	w.log.Info("notification worker started")
	<-ctx.Done()
	w.log.Info("notification worker shutting down")
	return nil
}

func (w *NotificationWorker) handleDelivery(msg amqp091.Delivery) {
	var evt models.RequestEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		w.log.WithError(err).Warn("drop malformed event")
		_ = msg.Nack(false, false)
		return
	}
	if evt.Event == "" {
		evt.Event = msg.RoutingKey
	}
	if err := w.HandleEvent(evt); err != nil {
		w.log.WithError(err).WithField("event", evt.Event).Error("handle event failed")
	}
	// Emails are best effort; a failed send is not redelivered.
	_ = msg.Ack(false)
}

// HandleEvent dispatches one event to the notifier.
func (w *NotificationWorker) HandleEvent(evt models.RequestEvent) error {
	entry := w.log.WithFields(log.Fields{"event": evt.Event, "reference": evt.Request.ReferenceNumber})
	switch evt.Event {
	case models.EventRequestCreated:
		if err := w.notifier.RequestCreated(evt.Request); err != nil {
			return err
		}
	case models.EventStatusChanged:
		if err := w.notifier.StatusChanged(evt.Request); err != nil {
			return err
		}
	default:
		entry.Debug("ignoring unknown event")
		return nil
	}
	entry.Info("notification sent")
	return nil
}

// Publish implements mq.Publisher for in-process delivery. Sending happens
// in the background so callers never wait on SMTP.
func (w *NotificationWorker) Publish(ctx context.Context, routingKey string, payload any) error {
	evt, ok := payload.(models.RequestEvent)
	if !ok {
		return errors.Errorf("unsupported payload %T", payload)
	}
	if evt.Event == "" {
		evt.Event = routingKey
	}
	go func() {
		if err := w.HandleEvent(evt); err != nil {
			w.log.WithError(err).WithField("event", evt.Event).Error("handle event failed")
		}
	}()
	return nil
}
