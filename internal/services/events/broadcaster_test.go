package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts, err := redis.ParseURL("redis://" + mr.Addr())
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil))), client
}

func receive(t *testing.T, ch <-chan *redis.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_ProfileEvents(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, ProfileChannel("p1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	require.NoError(t, b.PublishStatsUpdated(ctx, "p1", 3, 0, 2, "stranger"))
	ev := receive(t, ch)
	assert.Equal(t, EventTypeStatsUpdated, ev.Type)
	assert.Equal(t, "p1", ev.ProfileID)
	assert.EqualValues(t, 3, ev.Data["affection_level"])
	assert.Equal(t, "stranger", ev.Data["romantic_progression"])

	require.NoError(t, b.PublishPathUnlocked(ctx, "p1", "friendship"))
	ev = receive(t, ch)
	assert.Equal(t, EventTypePathUnlocked, ev.Type)
	assert.Equal(t, "friendship", ev.Data["path_id"])

	require.NoError(t, b.PublishBeatCompleted(ctx, "p1", "first_encounter", 2))
	ev = receive(t, ch)
	assert.Equal(t, EventTypeBeatCompleted, ev.Type)
	assert.Equal(t, "first_encounter", ev.EpisodeID)
}

func TestBroadcaster_CatalogEvents(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, CatalogChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishEpisodeDeleted(ctx, "coffee_date"))
	ev := receive(t, sub.Channel())
	assert.Equal(t, EventTypeEpisodeDeleted, ev.Type)
	assert.Equal(t, "coffee_date", ev.EpisodeID)
}
