// internal/app/notification_service.go
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rental_expiry_monitor/internal/domain/expiry"
	"rental_expiry_monitor/internal/domain/notify"
)

// NotificationService fans the rendered run outcome out to the enabled channels.
type NotificationService interface {
	// Dispatch sends the outcome to every channel. It never fails as a whole: each channel's
	// result is reported in its Delivery.
	Dispatch(ctx context.Context, outcome *expiry.Outcome, attachment string) []notify.Delivery
	Channels() []string
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	channels []notify.Channel
	renderer *MessageRenderer
	timeout  time.Duration
	allClear bool
	now      func() time.Time
	logger   *logrus.Entry
}

func NewNotificationServiceImpl(
	channels []notify.Channel,
	renderer *MessageRenderer,
	timeout time.Duration,
	allClear bool,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		channels: channels,
		renderer: renderer,
		timeout:  timeout,
		allClear: allClear,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *NotificationServiceImpl) Channels() []string {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch renders the message once and sends it on all channels concurrently.
func (s *NotificationServiceImpl) Dispatch(ctx context.Context, outcome *expiry.Outcome, attachment string) []notify.Delivery {
	if len(s.channels) == 0 {
		s.logger.Info("No notification channels enabled")
		return nil
	}
	if outcome.Nominal() && !s.allClear {
		s.logger.Info("Nothing expired and all-clear notifications are off, skipping notifications")
		return nil
	}

	msg, err := s.renderer.Render(outcome, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Failed to render notification message")
		deliveries := make([]notify.Delivery, 0, len(s.channels))
		for _, ch := range s.channels {
			deliveries = append(deliveries, notify.Delivery{Channel: ch.Name(), Err: err, Error: err.Error()})
		}
		return deliveries
	}
	msg.Attachment = attachment

	deliveries := make([]notify.Delivery, len(s.channels))
	var g errgroup.Group
	for i, ch := range s.channels {
		i, ch := i, ch
		g.Go(func() error {
			deliveries[i] = s.send(ctx, ch, msg)
			// Channel failures are independent; never abort the group.
			return nil
		})
	}
	_ = g.Wait()

	return deliveries
}

func (s *NotificationServiceImpl) send(ctx context.Context, ch notify.Channel, msg notify.Message) notify.Delivery {
	sendCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := ch.Send(sendCtx, msg)
	d := notify.Delivery{Channel: ch.Name(), Err: err, Duration: time.Since(start)}

	entry := s.logger.WithFields(logrus.Fields{
		"channel":  ch.Name(),
		"kind":     msg.Kind,
		"duration": d.Duration.Round(time.Millisecond),
	})
	if err != nil {
		d.Error = err.Error()
		entry.WithError(err).Error("Notification delivery failed")
		return d
	}
	entry.Info("Notification delivered")
	return d
}
