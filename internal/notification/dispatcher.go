package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
)

var channelOrder = []models.ChannelName{
	models.ChannelEmail,
	models.ChannelSMS,
	models.ChannelWhatsApp,
}

type Dispatcher struct {
	channels    map[models.ChannelName]Channel
	sendTimeout time.Duration
	now         func() time.Time
}

func NewDispatcher(sendTimeout time.Duration, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		channels:    make(map[models.ChannelName]Channel, len(channels)),
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

// Dispatch delivers msg on every enabled channel. Channels run concurrently;
// recipients within a channel are sent one at a time and a failure never
// stops the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, rcpts []recipients.Recipient, msg Message, settings models.NotificationSettings) models.Deliveries {
	var (
		out     models.Deliveries
		results = make([]models.ChannelDelivery, len(channelOrder))
		wg      sync.WaitGroup
	)

	for i, name := range channelOrder {
		cs := settings.For(name)
		if !cs.Enabled {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.dispatchChannel(ctx, name, cs, rcpts, msg)
		}()
	}
	wg.Wait()

	for i, name := range channelOrder {
		*out.Channel(name) = results[i]
	}
	return out
}

func (d *Dispatcher) dispatchChannel(ctx context.Context, name models.ChannelName, cs models.ChannelSettings, rcpts []recipients.Recipient, msg Message) models.ChannelDelivery {
	var result models.ChannelDelivery
	ch := d.channels[name]

	for _, r := range rcpts {
		if !cs.Recipients.Allows(r.Role) || optedOut(name, r.Preferences) {
			continue
		}

		addr := defaultAddress(name, r)
		if ch != nil {
			addr = ch.Address(r)
		}
		if addr == "" {
			continue
		}

		rec := models.DeliveryRecord{
			Recipient: addr,
			UserID:    r.UserID,
			Role:      r.Role,
			Status:    models.DeliverySent,
		}
		var err error
		if ch == nil {
			err = models.ErrChannelNotConfigured
		} else {
			err = d.send(ctx, ch, r, msg)
		}
		rec.Timestamp = d.now().UTC()
		if err != nil {
			derr := &models.DeliveryError{Channel: name, Recipient: addr, Err: err}
			rec.Status = models.DeliveryFailed
			rec.Error = err.Error()
			slog.Warn("delivery failed", "event_id", msg.EventID, "user_id", r.UserID, "error", derr)
		}
		result.Record(rec)
	}

	if result.Sent+result.Failed > 0 {
		slog.Info("channel dispatched", "event_id", msg.EventID, "channel", name, "sent", result.Sent, "failed", result.Failed)
	}
	return result
}

func defaultAddress(name models.ChannelName, r recipients.Recipient) string {
	if name == models.ChannelEmail {
		return r.Email
	}
	return r.Phone
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, r recipients.Recipient, msg Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send panicked: %v", p)
		}
	}()

	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	return ch.Send(ctx, r, msg)
}
