package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	calls []string
	fail  error
}

func (r *recordingHandler) record(call string) error {
	r.calls = append(r.calls, call)
	return r.fail
}

func (r *recordingHandler) AddCommunicatorMessage(ctx context.Context, episodeID string, msg episode.AddCommunicatorMessage) error {
	return r.record("message:" + msg.Sender)
}

func (r *recordingHandler) SetQuestObjective(ctx context.Context, objective string) error {
	return r.record("objective:" + objective)
}

func (r *recordingHandler) UpdateQuestObjective(ctx context.Context, objective string) error {
	return r.record("update:" + objective)
}

func (r *recordingHandler) SetChaLocationOverride(ctx context.Context, o episode.SetChaLocationOverride) error {
	return r.record("location:" + o.LocationID)
}

func (r *recordingHandler) SetChaMood(ctx context.Context, mood string) error {
	return r.record("mood:" + mood)
}

func (r *recordingHandler) CompleteEpisode(ctx context.Context, episodeID string) error {
	return r.record("complete:" + episodeID)
}

func newTestEngine(t *testing.T) (*Engine, *storage.MockStorage, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ms := storage.NewMockStorage()
	return New(ms, ms, logger), ms, &buf
}

func testEpisode(id string, beats ...episode.Beat) episode.Episode {
	return episode.Episode{ID: id, Title: id, Beats: beats}
}

func ids(episodes []episode.Episode) []string {
	out := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		out = append(out, ep.ID)
	}
	return out
}

func TestListAvailableEpisodes_FallsBackToDefault(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ctx := context.Background()

	assert.Equal(t, []string{episode.DefaultID}, ids(eng.ListAvailableEpisodes(ctx)))

	ms.SetSourceError(errors.New("disk on fire"))
	assert.Equal(t, []string{episode.DefaultID}, ids(eng.ListAvailableEpisodes(ctx)))
}

func TestListAvailableEpisodes_SortedAndFiltered(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ctx := context.Background()

	ms.AddEpisode(testEpisode("coffee_date"))
	ms.AddEpisode(testEpisode("arena_training"))
	ms.AddEpisode(testEpisode("gate_aftermath"))

	assert.Equal(t, []string{"arena_training", "coffee_date", "gate_aftermath"}, ids(eng.ListAvailableEpisodes(ctx)))

	require.NoError(t, eng.DeleteEpisode(ctx, "coffee_date"))
	assert.Equal(t, []string{"arena_training", "gate_aftermath"}, ids(eng.ListAvailableEpisodes(ctx)))
}

func TestDeleteEpisode_PermanentAndIdempotent(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ctx := context.Background()
	ms.AddEpisode(testEpisode("x"))
	ms.AddEpisode(testEpisode("y"))

	require.NoError(t, eng.DeleteEpisode(ctx, "x"))
	require.NoError(t, eng.DeleteEpisode(ctx, "x"))

	for range 3 {
		assert.NotContains(t, ids(eng.ListAvailableEpisodes(ctx)), "x")
	}
	_, ok := eng.GetEpisode(ctx, "x")
	assert.False(t, ok)

	deleted, err := ms.ListDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, deleted)
}

func TestDeleteEpisode_LedgerWriteFails(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ms.SetLedgerError(errors.New("read-only"))
	assert.Error(t, eng.DeleteEpisode(context.Background(), "x"))
}

func TestDeleteEpisode_ConcurrentDeletesAllRecorded(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, eng.DeleteEpisode(ctx, id))
		}()
	}
	wg.Wait()

	deleted, err := ms.ListDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, deleted)
}

func TestDefaultEpisode_SubjectToLedger(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, ok := eng.GetEpisode(ctx, episode.DefaultID)
	require.True(t, ok)

	require.NoError(t, eng.DeleteEpisode(ctx, episode.DefaultID))
	assert.Empty(t, eng.ListAvailableEpisodes(ctx))
	_, ok = eng.GetEpisode(ctx, episode.DefaultID)
	assert.False(t, ok)
}

func TestLedgerFailure_Policies(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ctx := context.Background()
	ms.AddEpisode(testEpisode("a"))
	ms.AddEpisode(testEpisode("b"))
	require.NoError(t, eng.DeleteEpisode(ctx, "a"))

	ms.SetLedgerError(errors.New("timeout"))

	// Fail-open: nothing is known to be deleted.
	assert.Equal(t, []string{"a", "b"}, ids(eng.ListAvailableEpisodes(ctx)))
	_, ok := eng.GetEpisode(ctx, "a")
	assert.True(t, ok)

	eng.SetFailClosed(true)
	assert.Equal(t, []string{episode.DefaultID}, ids(eng.ListAvailableEpisodes(ctx)))
	_, ok = eng.GetEpisode(ctx, "b")
	assert.False(t, ok)
	_, ok = eng.GetEpisode(ctx, episode.DefaultID)
	assert.True(t, ok)
}

func TestGetEpisode_Unknown(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, ok := eng.GetEpisode(context.Background(), "nope")
	assert.False(t, ok)
	_, ok = eng.GetEpisode(context.Background(), "")
	assert.False(t, ok)
}

func TestAvailableFor_Prerequisites(t *testing.T) {
	eng, ms, _ := newTestEngine(t)
	ctx := context.Background()

	gated := testEpisode("gate_aftermath")
	gated.Prerequisite = episode.Predicate{AffectionLevel: state.Int(10)}
	ms.AddEpisode(gated)
	ms.AddEpisode(testEpisode("coffee_date"))

	ps := state.NewPlayerState("p1")
	assert.Equal(t, []string{"coffee_date"}, ids(eng.AvailableFor(ctx, ps)))

	ps.AffectionLevel = 10
	assert.Equal(t, []string{"coffee_date", "gate_aftermath"}, ids(eng.AvailableFor(ctx, ps)))
}

func TestExecuteBeatAction_Dispatch(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	h := &recordingHandler{}

	assert.True(t, eng.ExecuteBeatAction(ctx, episode.DefaultID, 1, 0, h))
	assert.True(t, eng.ExecuteBeatAction(ctx, episode.DefaultID, 1, 2, h))
	assert.True(t, eng.ExecuteBeatAction(ctx, episode.DefaultID, 3, 1, h))
	assert.Equal(t, []string{
		"message:Hunter Association",
		"location:hunter_association",
		"complete:" + episode.DefaultID,
	}, h.calls)
}

func TestExecuteBeatAction_MissingIsNoop(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	h := &recordingHandler{}

	tests := []struct {
		name      string
		episodeID string
		beatID    int
		index     int
	}{
		{"unknown episode", "nope", 1, 0},
		{"unknown beat", episode.DefaultID, 99, 0},
		{"index past end", episode.DefaultID, 1, 3},
		{"negative index", episode.DefaultID, 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, eng.ExecuteBeatAction(ctx, tt.episodeID, tt.beatID, tt.index, h))
		})
	}
	assert.Empty(t, h.calls)
}

func TestExecuteBeatAction_HandlerError(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	h := &recordingHandler{fail: errors.New("inbox full")}
	assert.False(t, eng.ExecuteBeatAction(context.Background(), episode.DefaultID, 1, 0, h))
	assert.Len(t, h.calls, 1)
}

func TestExecuteBeatAction_UnrecognizedLoggedOnce(t *testing.T) {
	eng, ms, logs := newTestEngine(t)
	ctx := context.Background()

	ms.AddEpisode(testEpisode("future", episode.Beat{
		ID: 1,
		Actions: []episode.Action{
			{Command: episode.Unrecognized{Tag: "PLAY_SOUND"}},
			{Command: episode.SetChaMood{Mood: "happy"}},
		},
	}))
	h := &recordingHandler{}

	assert.False(t, eng.ExecuteBeatAction(ctx, "future", 1, 0, h))
	assert.False(t, eng.ExecuteBeatAction(ctx, "future", 1, 0, h))
	assert.True(t, eng.ExecuteBeatAction(ctx, "future", 1, 1, h))

	assert.Equal(t, 1, strings.Count(logs.String(), "PLAY_SOUND"))
	assert.Equal(t, []string{"mood:happy"}, h.calls)
}

func TestExecuteBeat_RunsAllActions(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	h := &recordingHandler{}

	n := eng.ExecuteBeat(context.Background(), episode.DefaultID, 2, h)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"mood:curious", "update:Talk to Cha Hae-In"}, h.calls)
}

func TestTriggerBeatCompletion(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	var got []int
	eng.OnBeatCompletion(func(ctx context.Context, episodeID string, beatID int, data map[string]any) {
		got = append(got, beatID)
	})

	assert.True(t, eng.TriggerBeatCompletion(ctx, episode.DefaultID, 1, map[string]any{"location_id": "hunter_association"}))
	assert.False(t, eng.TriggerBeatCompletion(ctx, episode.DefaultID, 42, nil))
	assert.False(t, eng.TriggerBeatCompletion(ctx, "nope", 1, nil))
	assert.Equal(t, []int{1}, got)
}

func TestNextBeat(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ep := episode.Default()

	next, ok := eng.NextBeat(ep, 1)
	require.True(t, ok)
	assert.Equal(t, 2, next.ID)

	_, ok = eng.NextBeat(ep, 3)
	assert.False(t, ok)
}
