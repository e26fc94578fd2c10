// Package publisher emits newly detected listings to an event stream
// for downstream consumers. Notification delivery never depends on it;
// a publish failure is logged and the cycle moves on.
package publisher

import (
	"context"

	"mkobal/avtowatch/internal/model"
)

// Publisher emits newly detected listings.
type Publisher interface {
	// PublishNew emits one entry per listing, attributed to the user
	// whose filters surfaced it.
	PublishNew(ctx context.Context, userID string, listings []model.Listing) error

	// Close releases the underlying connection.
	Close() error
}

// Noop discards everything. Used while no stream backend is configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) PublishNew(context.Context, string, []model.Listing) error { return nil }

func (Noop) Close() error { return nil }
