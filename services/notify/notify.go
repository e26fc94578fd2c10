// Package notify formats new listings and delivers them to a user's
// push channel, one message per listing.
package notify

import (
	"context"
	"time"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// DefaultPace is the gap between consecutive sends for one user, kept
// well under Pushover's burst tolerance.
const DefaultPace = 500 * time.Millisecond

// Sender delivers one formatted message with the given credentials.
type Sender interface {
	Send(ctx context.Context, creds model.Credentials, title, message string) error
}

// Result counts what one dispatch attempt achieved.
type Result struct {
	Sent   int
	Failed int
}

// Dispatcher sends one user's new listings in batch order with pacing
// between messages.
type Dispatcher struct {
	sender Sender
	pace   time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	log    *logger.Logger
}

// NewDispatcher wraps sender with pacing. pace <= 0 selects DefaultPace.
func NewDispatcher(sender Sender, pace time.Duration) *Dispatcher {
	if pace <= 0 {
		pace = DefaultPace
	}
	return &Dispatcher{
		sender: sender,
		pace:   pace,
		sleep:  sleepContext,
		log:    logger.ForNotifier(),
	}
}

// Dispatch sends one notification per listing, in order. Any delivery
// failure, rejected credentials included, costs only its own listing;
// the rest of the batch is still attempted. Only cancellation stops
// the loop, and listings not attempted count as failed.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, creds model.Credentials, listings []model.Listing) (Result, error) {
	var res Result

	for i, l := range listings {
		if i > 0 {
			if err := d.sleep(ctx, d.pace); err != nil {
				res.Failed += len(listings) - i
				return res, errors.NewTransport("notifier", "canceled between sends", err)
			}
		}

		title, message := FormatListing(l)
		if err := d.sender.Send(ctx, creds, title, message); err != nil {
			res.Failed++
			d.log.Warn().
				Str("user_id", userID).
				Str("hash", shortHash(l.Hash)).
				Err(err).
				Msg("Notification failed")
			continue
		}
		res.Sent++

		d.log.Debug().
			Str("user_id", userID).
			Str("hash", shortHash(l.Hash)).
			Msg("Notification sent")
	}

	if len(listings) > 0 {
		d.log.Info().
			Str("user_id", userID).
			Int("sent", res.Sent).
			Int("failed", res.Failed).
			Msg("Dispatched notifications")
	}
	return res, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
