package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/db"
	"github.com/beaconcoach/beacon/internal/email"
	"github.com/beaconcoach/beacon/internal/metrics"
	"github.com/beaconcoach/beacon/internal/push"
)

// ReminderSource reads and settles due class reminders.
type ReminderSource interface {
	DueReminders(ctx context.Context, channel string, now time.Time) ([]*db.DueReminder, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// PushPublisher fans a push reminder out to subscribers. Optional.
type PushPublisher interface {
	Publish(ctx context.Context, msg push.Message) (string, error)
}

// Dispatcher delivers due, unsent class reminders. An email that fails
// to send stays unsent and is picked up again on the next tick; there
// is no backoff.
type Dispatcher struct {
	reminders ReminderSource
	notifs    NotificationSink
	provider  email.Provider
	push      PushPublisher
	logger    *zap.Logger
	interval  time.Duration
}

// NewDispatcher creates a Dispatcher. push may be nil when no topic is
// configured; push reminders then only become in-app notifications.
func NewDispatcher(reminders ReminderSource, notifs NotificationSink, provider email.Provider, pub PushPublisher, interval time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		reminders: reminders,
		notifs:    notifs,
		provider:  provider,
		push:      pub,
		logger:    logger,
		interval:  interval,
	}
}

// Start runs a pass every interval until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("reminder dispatcher started", zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("reminder dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.Run(ctx, time.Now()); err != nil {
				d.logger.Error("dispatch pass failed", zap.Error(err))
			}
		}
	}
}

// Run executes one dispatch pass over both channels and returns the
// number of reminders delivered.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (int, error) {
	sent, err := d.dispatchEmail(ctx, now)
	if err != nil {
		return sent, err
	}

	pushed, err := d.dispatchPush(ctx, now)
	if err != nil {
		return sent + pushed, err
	}

	return sent + pushed, nil
}

func (d *Dispatcher) dispatchEmail(ctx context.Context, now time.Time) (int, error) {
	due, err := d.reminders.DueReminders(ctx, db.ChannelEmail, now)
	if err != nil {
		return 0, fmt.Errorf("query due email reminders: %w", err)
	}

	sent := 0
	for _, rem := range due {
		subject := email.ClassReminderSubject(rem.ClassTitle, rem.ReminderMinutesBefore)

		body, err := email.RenderClassReminder(email.ClassReminderData{
			UserName:      rem.UserName,
			ClassTitle:    rem.ClassTitle,
			StartTime:     rem.ClassStartTime,
			MinutesBefore: rem.ReminderMinutesBefore,
			JoinURL:       rem.JoinURL,
		})
		if err != nil {
			metrics.RecordDispatchError()
			d.logger.Error("failed to render reminder email",
				zap.String("reminder_id", rem.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if err := d.provider.Send(ctx, rem.UserEmail, subject, body); err != nil {
			// Row stays unsent: the next tick retries it.
			metrics.RecordDispatchError()
			d.logger.Error("reminder email send failed",
				zap.String("reminder_id", rem.ID.String()),
				zap.String("to", rem.UserEmail),
				zap.Error(err),
			)
			continue
		}

		d.recordNotification(ctx, rem, subject)

		if err := d.reminders.MarkSent(ctx, rem.ID); err != nil {
			d.logger.Error("failed to mark reminder sent",
				zap.String("reminder_id", rem.ID.String()),
				zap.Error(err),
			)
			continue
		}

		metrics.RecordReminderDispatched(db.ChannelEmail)
		sent++
	}

	if len(due) > 0 {
		d.logger.Info("email dispatch pass complete",
			zap.Int("due", len(due)),
			zap.Int("sent", sent),
		)
	}

	return sent, nil
}

func (d *Dispatcher) dispatchPush(ctx context.Context, now time.Time) (int, error) {
	due, err := d.reminders.DueReminders(ctx, db.ChannelPush, now)
	if err != nil {
		return 0, fmt.Errorf("query due push reminders: %w", err)
	}

	sent := 0
	for _, rem := range due {
		title := email.ClassReminderSubject(rem.ClassTitle, rem.ReminderMinutesBefore)
		d.recordNotification(ctx, rem, title)

		if d.push != nil {
			_, err := d.push.Publish(ctx, push.Message{
				UserID:     rem.UserID.String(),
				ReminderID: rem.ID.String(),
				Title:      title,
				Body:       fmt.Sprintf("%s starts soon. Tap to join.", rem.ClassTitle),
				Link:       rem.JoinURL,
			})
			if err != nil {
				// In-app notification already exists, so the push fan-out
				// failure is non-fatal.
				d.logger.Warn("push publish failed",
					zap.String("reminder_id", rem.ID.String()),
					zap.Error(err),
				)
			}
		}

		if err := d.reminders.MarkSent(ctx, rem.ID); err != nil {
			d.logger.Error("failed to mark reminder sent",
				zap.String("reminder_id", rem.ID.String()),
				zap.Error(err),
			)
			continue
		}

		metrics.RecordReminderDispatched(db.ChannelPush)
		sent++
	}

	return sent, nil
}

// recordNotification writes the in-app notification for a dispatched
// reminder. A failure here is logged but does not block MarkSent; the
// email has already gone out and must not be sent twice.
func (d *Dispatcher) recordNotification(ctx context.Context, rem *db.DueReminder, title string) {
	link := rem.JoinURL
	notif := &db.Notification{
		ID:      uuid.New(),
		UserID:  rem.UserID,
		Title:   title,
		Message: fmt.Sprintf("%s starts in %d minutes.", rem.ClassTitle, rem.ReminderMinutesBefore),
		Type:    db.TypeReminder,
		Link:    &link,
	}

	if err := d.notifs.Create(ctx, notif); err != nil {
		d.logger.Error("failed to record reminder notification",
			zap.String("reminder_id", rem.ID.String()),
			zap.Error(err),
		)
	}
}
