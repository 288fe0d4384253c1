// Package notify delivers findings to external channels.
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/digimosa/hawk-scan/internal/models"
	"github.com/digimosa/hawk-scan/internal/suppress"
)

// Notifier delivers one message to one external channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg models.Message) error
}

// NotifyError is a failed delivery.
type NotifyError struct {
	Channel string
	Status  int
	Err     error
}

func (e *NotifyError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s notification failed with status %d: %v", e.Channel, e.Status, e.Err)
	}
	return fmt.Sprintf("%s notification failed: %v", e.Channel, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Dispatcher formats findings and fans them out to every notifier,
// skipping messages the suppressor has seen before.
type Dispatcher struct {
	notifiers  []Notifier
	suppressor *suppress.Suppressor
	log        logrus.FieldLogger
}

func NewDispatcher(sup *suppress.Suppressor, log logrus.FieldLogger, notifiers ...Notifier) *Dispatcher {
	if sup == nil {
		sup = suppress.New(false, nil)
	}
	return &Dispatcher{notifiers: notifiers, suppressor: sup, log: log}
}

func (d *Dispatcher) Enabled() bool { return len(d.notifiers) > 0 }

// Dispatch notifies about each finding and returns how many messages went
// out. Delivery failures are logged and never abort the run.
func (d *Dispatcher) Dispatch(ctx context.Context, findings []models.Finding) int {
	if !d.Enabled() {
		return 0
	}

	delivered := 0
	for i := range findings {
		if ctx.Err() != nil {
			break
		}
		msg := FormatMessage(findings[i])
		log := d.log.WithField("pattern", findings[i].PatternName)
		if d.deliver(ctx, msg, log) {
			delivered++
		}
	}
	return delivered
}

// deliver gates msg separately for each notifier, so a channel that failed
// is retried on the next run without repeating the ones that succeeded.
// It reports whether any channel received the message.
func (d *Dispatcher) deliver(ctx context.Context, msg models.Message, log logrus.FieldLogger) bool {
	delivered := false
	for _, n := range d.notifiers {
		log := log.WithField("channel", n.Name())
		sent, err := d.suppressor.Gate(n.Name(), msg, func() error {
			return n.Send(ctx, msg)
		})
		switch {
		case err != nil:
			log.WithError(err).Error("Notification failed")
		case !sent:
			log.Debug("Duplicate message detected, skipping notification")
		default:
			log.Debug("Notification sent")
			delivered = true
		}
	}
	return delivered
}
