package sequencer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	lock   sync.Mutex
	shown  []apimodel.MediaId
	dones  []func(Signal)
	clears int
	broken map[apimodel.MediaId]bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{broken: map[apimodel.MediaId]bool{}}
}

func (r *fakeRenderer) Show(entry apimodel.PlaylistEntry, media apimodel.MediaItem, done func(Signal)) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.broken[media.Id] {
		return errors.New("player crashed on start")
	}
	r.shown = append(r.shown, media.Id)
	r.dones = append(r.dones, done)
	return nil
}

func (r *fakeRenderer) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clears++
}

func (r *fakeRenderer) history() []apimodel.MediaId {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]apimodel.MediaId(nil), r.shown...)
}

func (r *fakeRenderer) done(i int) func(Signal) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.dones[i]
}

func (r *fakeRenderer) last() func(Signal) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.dones[len(r.dones)-1]
}

func seconds(n int64) *int64 { return &n }

func image(id string, defaultDuration *int64) *apimodel.MediaItem {
	return &apimodel.MediaItem{Id: apimodel.MediaId(id), MediaType: apimodel.MediaTypeImage, Filename: id + ".png", DefaultDuration: defaultDuration}
}

func video(id string) *apimodel.MediaItem {
	return &apimodel.MediaItem{Id: apimodel.MediaId(id), MediaType: apimodel.MediaTypeVideo, Filename: id + ".mp4"}
}

func entry(media *apimodel.MediaItem, duration *int64) apimodel.PlaylistEntry {
	return apimodel.PlaylistEntry{MediaId: media.Id, Duration: duration, Media: media}
}

func newTestSequencer() (*Sequencer, *fakeRenderer, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local))
	renderer := newFakeRenderer()
	return New(clk, renderer, Options{}), renderer, clk
}

func ids(values ...string) []apimodel.MediaId {
	out := make([]apimodel.MediaId, len(values))
	for i, v := range values {
		out[i] = apimodel.MediaId(v)
	}
	return out
}

func TestInitialStateIsIdle(t *testing.T) {
	s, renderer, _ := newTestSequencer()
	status := s.Status()
	assert.Equal(t, Idle, status.Phase)
	assert.Nil(t, status.Current)
	assert.Empty(t, renderer.history())
}

func TestReconcileEmptyPlaylistGoesIdle(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 4, Items: []apimodel.PlaylistEntry{}})

	assert.Equal(t, Idle, s.Status().Phase)
	assert.Equal(t, 1, renderer.clears)
	assert.Equal(t, 0, clk.Pending())
}

func TestImageAdvancesAfterItsDuration(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(5)),
		entry(image("b", nil), seconds(3)),
	}})
	require.Equal(t, ids("a"), renderer.history())
	assert.True(t, s.Status().TimerArmed)

	clk.Advance(4999 * time.Millisecond)
	assert.Equal(t, ids("a"), renderer.history())

	clk.Advance(time.Millisecond)
	assert.Equal(t, ids("a", "b"), renderer.history())
	assert.Equal(t, 1, s.Status().Index)
	assert.Equal(t, 1, clk.Pending())
}

func TestWrapsAfterLastItem(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(1)),
		entry(image("b", nil), seconds(1)),
		entry(image("c", nil), seconds(1)),
	}})

	clk.Advance(3 * time.Second)
	assert.Equal(t, ids("a", "b", "c", "a"), renderer.history())
	assert.Equal(t, 0, s.Status().Index)

	s.Play(3)
	assert.Equal(t, 0, s.Status().Index)
	s.Play(-1)
	assert.Equal(t, 0, s.Status().Index)
}

func TestSingleImageWithNullDurationNeverAdvances(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("only", seconds(10)), nil),
	}})

	status := s.Status()
	assert.Equal(t, Showing, status.Phase)
	assert.False(t, status.TimerArmed)
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(72 * time.Hour)
	assert.Equal(t, ids("only"), renderer.history())
}

func TestSingleImageWithOverrideStillLoops(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("only", nil), seconds(2)),
	}})
	clk.Advance(4 * time.Second)
	assert.Equal(t, ids("only", "only", "only"), renderer.history())
}

func TestVideoWaitsForSignal(t *testing.T) {
	for name, signal := range map[string]Signal{"ended": SignalEnded, "error": SignalError} {
		t.Run(name, func(t *testing.T) {
			s, renderer, clk := newTestSequencer()
			s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
				entry(video("v"), seconds(2)),
				entry(image("b", nil), seconds(3)),
			}})

			status := s.Status()
			assert.False(t, status.TimerArmed)
			assert.True(t, status.AwaitingSignal)

			clk.Advance(time.Hour)
			require.Equal(t, ids("v"), renderer.history())

			renderer.last()(signal)
			assert.Equal(t, ids("v", "b"), renderer.history())
			assert.Equal(t, 1, s.Status().Index)
		})
	}
}

func TestSignalIsConsumedOnce(t *testing.T) {
	s, renderer, _ := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(video("v1"), nil),
		entry(video("v2"), nil),
		entry(video("v3"), nil),
	}})

	done := renderer.last()
	done(SignalEnded)
	done(SignalEnded)
	assert.Equal(t, ids("v1", "v2"), renderer.history())
}

func TestReconcileCancelsPendingTimer(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(5)),
		entry(image("b", nil), seconds(5)),
	}})
	clk.Advance(5 * time.Second)
	require.Equal(t, ids("a", "b"), renderer.history())
	require.Equal(t, 1, clk.Pending())

	s.Reconcile(apimodel.Playlist{Version: 2, Items: []apimodel.PlaylistEntry{
		entry(image("x", nil), seconds(10)),
		entry(image("y", nil), seconds(10)),
	}})
	assert.Equal(t, 1, clk.Pending())
	assert.Equal(t, ids("a", "b", "x"), renderer.history())
	assert.Equal(t, 0, s.Status().Index)

	// the old 5s timer would have fired here
	clk.Advance(5 * time.Second)
	assert.Equal(t, ids("a", "b", "x"), renderer.history())

	clk.Advance(5 * time.Second)
	assert.Equal(t, ids("a", "b", "x", "y"), renderer.history())
}

func TestReconcileIgnoresSignalFromPreviousSnapshot(t *testing.T) {
	s, renderer, _ := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(video("old"), nil),
		entry(video("old2"), nil),
	}})
	stale := renderer.last()

	s.Reconcile(apimodel.Playlist{Version: 2, Items: []apimodel.PlaylistEntry{
		entry(video("new"), nil),
		entry(video("new2"), nil),
	}})
	stale(SignalEnded)

	assert.Equal(t, ids("old", "new"), renderer.history())
	assert.Equal(t, 0, s.Status().Index)
	assert.Equal(t, apimodel.PlaylistVersion(2), s.Status().Version)
}

func TestMissingMediaIsSkipped(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(2)),
		{MediaId: "deleted", Duration: seconds(2)},
		entry(image("c", nil), seconds(2)),
	}})
	clk.Advance(2 * time.Second)
	assert.Equal(t, ids("a", "c"), renderer.history())
	assert.Equal(t, 2, s.Status().Index)
}

func TestRendererErrorIsSkipped(t *testing.T) {
	s, renderer, _ := newTestSequencer()
	renderer.broken["a"] = true
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(2)),
		entry(image("b", nil), seconds(2)),
	}})
	assert.Equal(t, ids("b"), renderer.history())
	assert.Equal(t, 1, s.Status().Index)
}

func TestNothingDisplayableRetriesLater(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		{MediaId: "gone1"},
		{MediaId: "gone2"},
	}})
	assert.Equal(t, Idle, s.Status().Phase)
	assert.Equal(t, 1, clk.Pending())
	assert.Empty(t, renderer.history())

	clk.Advance(DefaultRetryDelay)
	assert.Equal(t, Idle, s.Status().Phase)
	assert.Equal(t, 1, clk.Pending())
}

func TestEveryVideoFailingGoesIdle(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(video("v1"), nil),
		entry(video("v2"), nil),
	}})
	renderer.last()(SignalError)
	renderer.last()(SignalError)

	assert.Equal(t, Idle, s.Status().Phase)
	assert.Equal(t, ids("v1", "v2"), renderer.history())

	clk.Advance(DefaultRetryDelay)
	assert.Equal(t, Showing, s.Status().Phase)
	assert.Equal(t, ids("v1", "v2", "v1"), renderer.history())
}

func TestEndedSignalResetsFailureCount(t *testing.T) {
	s, renderer, _ := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(video("v1"), nil),
		entry(video("v2"), nil),
	}})
	renderer.last()(SignalError)
	renderer.last()(SignalEnded)
	renderer.last()(SignalError)

	assert.Equal(t, Showing, s.Status().Phase)
	assert.Equal(t, ids("v1", "v2", "v1", "v2"), renderer.history())
}

func TestStopClearsEverything(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(2)),
		entry(video("v"), nil),
	}})
	s.Stop()

	assert.Equal(t, Idle, s.Status().Phase)
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 1, renderer.clears)

	renderer.done(0)(SignalEnded)
	clk.Advance(time.Minute)
	assert.Equal(t, ids("a"), renderer.history())
}

func TestNext(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Next()
	assert.Empty(t, renderer.history())

	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(10)),
		entry(image("b", nil), seconds(10)),
	}})
	s.Next()
	assert.Equal(t, ids("a", "b"), renderer.history())
	assert.Equal(t, 1, clk.Pending())
}

func TestAtMostOnePendingWait(t *testing.T) {
	s, renderer, clk := newTestSequencer()
	s.Reconcile(apimodel.Playlist{Version: 1, Items: []apimodel.PlaylistEntry{
		entry(image("a", nil), seconds(1)),
		entry(video("v"), nil),
		entry(image("b", nil), nil),
	}})
	for step := 0; step < 9; step++ {
		status := s.Status()
		require.Equal(t, Showing, status.Phase)
		require.False(t, status.TimerArmed && status.AwaitingSignal)
		require.LessOrEqual(t, clk.Pending(), 1)
		if status.AwaitingSignal {
			renderer.last()(SignalEnded)
		} else {
			clk.Advance(8 * time.Second)
		}
	}
}

func TestEffectiveDuration(t *testing.T) {
	img := *image("a", seconds(12))
	imgNoDefault := *image("b", nil)
	imgBadDefault := *image("c", seconds(0))
	vid := *video("v")

	cases := []struct {
		name     string
		entry    apimodel.PlaylistEntry
		media    apimodel.MediaItem
		count    int
		expected time.Duration
		ok       bool
	}{
		{"override wins", apimodel.PlaylistEntry{Duration: seconds(3)}, img, 2, 3 * time.Second, true},
		{"media default", apimodel.PlaylistEntry{}, img, 2, 12 * time.Second, true},
		{"fallback", apimodel.PlaylistEntry{}, imgNoDefault, 2, DefaultFallbackDuration, true},
		{"non positive default", apimodel.PlaylistEntry{}, imgBadDefault, 2, DefaultFallbackDuration, true},
		{"non positive override", apimodel.PlaylistEntry{Duration: seconds(-1)}, imgNoDefault, 2, DefaultFallbackDuration, true},
		{"single null is indefinite", apimodel.PlaylistEntry{}, img, 1, 0, false},
		{"single with override", apimodel.PlaylistEntry{Duration: seconds(4)}, img, 1, 4 * time.Second, true},
		{"video", apimodel.PlaylistEntry{Duration: seconds(4)}, vid, 2, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			duration, ok := EffectiveDuration(c.entry, c.media, c.count, DefaultFallbackDuration)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.expected, duration)
		})
	}
}
