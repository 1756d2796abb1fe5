package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEpisodeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const coffeeDate = `{
  "id": "coffee_date",
  "title": "Coffee in Hongdae",
  "prerequisite": {"affection_level": 15},
  "beats": [{"id": 1, "title": "Order", "trigger": "episode_started", "actions": []}]
}`

const arenaTraining = `{
  "id": "arena_training",
  "title": "Sparring",
  "beats": [{"id": 1, "title": "Warm up", "trigger": "episode_started",
    "actions": [{"type": "SET_CHA_MOOD", "params": {"mood": "focused"}}]}]
}`

func TestCatalog_ListSkipsMalformed(t *testing.T) {
	dataDir := t.TempDir()
	catalog := NewCatalog(dataDir, testLogger())
	dir := catalog.Dir()

	writeEpisodeFile(t, dir, "coffee_date.json", coffeeDate)
	writeEpisodeFile(t, filepath.Join(dir, "training"), "arena.json", arenaTraining)
	writeEpisodeFile(t, dir, "broken.json", `{"id": "broken", "title": `)
	writeEpisodeFile(t, dir, "no_beats.json", `{"id": "no_beats", "title": "Nothing"}`)
	writeEpisodeFile(t, dir, "duplicate.json", coffeeDate)
	writeEpisodeFile(t, dir, "notes.txt", "not an episode")

	episodes, err := catalog.ListEpisodes(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, ep := range episodes {
		ids = append(ids, ep.ID)
	}
	assert.ElementsMatch(t, []string{"coffee_date", "arena_training"}, ids)
}

func TestCatalog_MissingDirIsEmpty(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "nope"), testLogger())
	episodes, err := catalog.ListEpisodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, episodes)
}

func TestCatalog_GetEpisode(t *testing.T) {
	catalog := NewCatalog(t.TempDir(), testLogger())
	writeEpisodeFile(t, catalog.Dir(), "coffee_date.json", coffeeDate)
	writeEpisodeFile(t, catalog.Dir(), "sparring.json", arenaTraining)
	ctx := context.Background()

	ep, err := catalog.GetEpisode(ctx, "coffee_date")
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, "Coffee in Hongdae", ep.Title)
	require.NotNil(t, ep.Prerequisite.AffectionLevel)
	assert.Equal(t, 15, *ep.Prerequisite.AffectionLevel)

	// File name differs from the id.
	ep, err = catalog.GetEpisode(ctx, "arena_training")
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Len(t, ep.Beats, 1)

	ep, err = catalog.GetEpisode(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, ep)

	ep, err = catalog.GetEpisode(ctx, "../coffee_date")
	require.NoError(t, err)
	assert.Nil(t, ep)
}
