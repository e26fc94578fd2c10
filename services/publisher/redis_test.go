package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkobal/avtowatch/internal/model"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	const stream = "test_newlistings"
	client.Del(ctx, stream)

	p := NewRedisPublisher("localhost:6379", 0, stream, 100)
	defer p.Close()

	listing := model.Listing{
		Hash:         model.HashListing("Audi A4 Avant", "18990", "2019"),
		URL:          "https://www.avto.net/Ads/details.asp?id=12345",
		Title:        "Audi A4 Avant",
		Price:        "18990",
		Registration: "2019",
	}
	require.NoError(t, p.PublishNew(ctx, "user-1", []model.Listing{listing}))

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, "user-1", values[fieldUserID])

	encoded, ok := values[fieldListing].(string)
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var got model.Listing
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, listing.Hash, got.Hash)
	assert.Equal(t, "Audi A4 Avant", got.Title)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}

	err := p.PublishNew(context.Background(), "user-1", []model.Listing{{Title: "Audi A4"}})
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}
