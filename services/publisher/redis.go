package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// Stream entry fields.
const (
	fieldUserID  = "user_id"
	fieldListing = "b64_listing"
)

// RedisPublisher implements Publisher on a single Redis Stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	log    *logger.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher writing to stream on addr/db.
// maxLen bounds the stream length; older entries are trimmed on write.
func NewRedisPublisher(addr string, db int, stream string, maxLen int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: int64(maxLen),
		log:    logger.ForPublisher(),
	}
}

// PublishNew emits one stream entry per listing. The listing travels as
// base64-encoded JSON next to the plain user id.
func (p *RedisPublisher) PublishNew(ctx context.Context, userID string, listings []model.Listing) error {
	for _, l := range listings {
		payload, err := json.Marshal(l)
		if err != nil {
			return errors.NewPublisher("publisher", "encode listing", err)
		}

		err = p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				fieldUserID:  userID,
				fieldListing: base64.StdEncoding.EncodeToString(payload),
			},
		}).Err()
		if err != nil {
			return errors.NewPublisher("publisher", "publish listing", err)
		}
	}

	if len(listings) > 0 {
		p.log.Debug().
			Str("user_id", userID).
			Int("count", len(listings)).
			Str("stream", p.stream).
			Msg("Published new listings")
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
