package notify

import (
	"context"
	"time"

	"github.com/yairfalse/shelfwatch/telemetry"
	"github.com/yairfalse/shelfwatch/types"
)

// DefaultChannelTimeout bounds one channel's delivery attempt.
const DefaultChannelTimeout = 15 * time.Second

// Dispatcher fans messages out to all configured channels. A failure on
// one channel never blocks or rolls back delivery on another; every
// attempt, success or failure, lands in the returned event.
type Dispatcher struct {
	channels       []Channel
	logger         *telemetry.Logger
	channelTimeout time.Duration
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels []Channel, logger *telemetry.Logger, channelTimeout time.Duration) *Dispatcher {
	if channelTimeout <= 0 {
		channelTimeout = DefaultChannelTimeout
	}
	return &Dispatcher{
		channels:       channels,
		logger:         logger,
		channelTimeout: channelTimeout,
	}
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, c := range d.channels {
		names[i] = c.Name()
	}
	return names
}

// Dispatch delivers msg on every channel and returns the audit event.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) types.NotificationEvent {
	event := types.NotificationEvent{
		TargetID:  msg.TargetID,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: time.Now().UTC(),
	}

	for _, ch := range d.channels {
		attempt := types.DeliveryAttempt{
			Channel: ch.Name(),
			At:      time.Now().UTC(),
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.channelTimeout)
		err := ch.Send(sendCtx, msg)
		cancel()

		if err != nil {
			attempt.Status = types.DeliveryFailed
			attempt.Error = err.Error()
		} else {
			attempt.Status = types.DeliverySent
		}

		d.logger.LogDelivery(ctx, msg.TargetID, ch.Name(), err)
		event.Deliveries = append(event.Deliveries, attempt)
	}

	return event
}
