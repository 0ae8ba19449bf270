package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/jypelle/pishow/internal/srv/event"
	"github.com/jypelle/pishow/internal/srv/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDisplay struct {
	status apimodel.DisplayStatus
}

func (s staticDisplay) Status() apimodel.DisplayStatus {
	return s.status
}

type apiFixture struct {
	server    *httptest.Server
	store     *store.Store
	transport *fakeTransport
	done      chan struct{}

	lock    sync.Mutex
	playErr error
}

func (f *apiFixture) failPlayback(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.playErr = err
}

func (f *apiFixture) answer(ev event.ApiEvent) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := ev.Data.(event.ApiEventMediaPlayData); ok {
		ev.Result <- f.playErr
		return
	}
	ev.Result <- nil
}

func newApiFixture(t *testing.T) *apiFixture {
	dir := t.TempDir()
	serverConfig, err := config.LoadServerConfig(dir, false, true)
	require.NoError(t, err)

	mediaStore, err := store.Open(filepath.Join(dir, "test.sqlite3"), filepath.Join(dir, "media"))
	require.NoError(t, err)
	t.Cleanup(func() { mediaStore.Close() })

	schedules, err := config.NewScheduleStore(filepath.Join(dir, "schedule.json"))
	require.NoError(t, err)

	fixture := &apiFixture{
		store:     mediaStore,
		transport: &fakeTransport{},
		done:      make(chan struct{}),
	}
	scheduler := NewScheduler(clock.NewFake(time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local)), schedules, fixture.transport, time.Minute)
	scheduler.StopSendingEvent()

	api := NewApi(serverConfig, ApiBackend{
		Store:     mediaStore,
		Schedules: schedules,
		Scheduler: scheduler,
		Player:    newTestPlayer("true"),
		Display:   staticDisplay{status: apimodel.DisplayStatus{Running: true, Phase: "showing"}},
		Hub:       NewStatusHub(nil),
		State:     serverConfig.ServerState,
	})

	// stands in for the server event loop
	go func() {
		for {
			select {
			case ev := <-api.EventChannel():
				fixture.answer(ev)
			case <-fixture.done:
				return
			}
		}
	}()

	fixture.server = httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		fixture.server.Close()
		close(fixture.done)
	})
	return fixture
}

func (f *apiFixture) do(t *testing.T, method string, path string, body string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	request, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { response.Body.Close() })
	return response
}

func (f *apiFixture) addMedia(t *testing.T, name string) apimodel.MediaItem {
	item, err := f.store.AddMedia(context.Background(), name, bytes.NewBufferString("content"))
	require.NoError(t, err)
	return item
}

func decodeBody(t *testing.T, response *http.Response, v interface{}) {
	require.NoError(t, json.NewDecoder(response.Body).Decode(v))
}

func errorMessage(t *testing.T, response *http.Response) string {
	var message apimodel.ErrorMessage
	decodeBody(t, response, &message)
	return message.ErrMessage
}

func TestApiIsAlive(t *testing.T) {
	f := newApiFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/api/is_alive", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/nothing", "").StatusCode)
}

func TestApiPlaylistLifecycle(t *testing.T) {
	f := newApiFixture(t)
	image := f.addMedia(t, "a.png")
	video := f.addMedia(t, "b.mp4")

	response := f.do(t, "GET", "/api/playlist", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var initial apimodel.Playlist
	decodeBody(t, response, &initial)
	assert.Empty(t, initial.Items)

	body := `{"items":[{"media_id":"` + string(image.Id) + `","duration":5},{"media_id":"` + string(video.Id) + `"}]}`
	response = f.do(t, "POST", "/api/playlist", body)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var saved apimodel.Playlist
	decodeBody(t, response, &saved)
	assert.Greater(t, saved.Version, initial.Version)
	require.Len(t, saved.Items, 2)
	require.NotNil(t, saved.Items[0].Duration)
	assert.Equal(t, int64(5), *saved.Items[0].Duration)
	assert.Nil(t, saved.Items[1].Duration)
	require.NotNil(t, saved.Items[1].Media)
	assert.Equal(t, apimodel.MediaTypeVideo, saved.Items[1].Media.MediaType)

	response = f.do(t, "DELETE", "/api/playlist", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var cleared apimodel.Playlist
	decodeBody(t, response, &cleared)
	assert.Empty(t, cleared.Items)
	assert.Greater(t, cleared.Version, saved.Version)
}

func TestApiPlaylistValidation(t *testing.T) {
	f := newApiFixture(t)
	image := f.addMedia(t, "a.png")

	for _, body := range []string{
		``,
		`not json`,
		`{}`,
		`{"items":[{"media_id":""}]}`,
		`{"items":[{"media_id":"` + string(image.Id) + `","duration":0}]}`,
		`{"items":[{"media_id":"` + string(image.Id) + `","duration":0.5}]}`,
		`{"items":[{"media_id":"unknown"}]}`,
	} {
		response := f.do(t, "POST", "/api/playlist", body)
		assert.Equal(t, http.StatusBadRequest, response.StatusCode, body)
	}
}

func TestApiMediaUploadAndDelete(t *testing.T) {
	f := newApiFixture(t)

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile("file", "Holiday.JPG")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	response, err := http.Post(f.server.URL+"/api/media", writer.FormDataContentType(), &buffer)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var item apimodel.MediaItem
	decodeBody(t, response, &item)
	assert.Equal(t, apimodel.MediaTypeImage, item.MediaType)
	assert.Equal(t, "Holiday.JPG", item.OriginalName)

	served := f.do(t, "GET", "/media/"+item.Filename, "")
	assert.Equal(t, http.StatusOK, served.StatusCode)

	response2 := f.do(t, "GET", "/api/media", "")
	var list apimodel.MediaList
	decodeBody(t, response2, &list)
	assert.Len(t, list.Items, 1)

	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", "/api/media/"+string(item.Id), "").StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "DELETE", "/api/media/"+string(item.Id), "").StatusCode)
}

func TestApiUploadAndPlay(t *testing.T) {
	f := newApiFixture(t)

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("mp4"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	response, err := http.Post(f.server.URL+"/api/media/upload-and-play", writer.FormDataContentType(), &buffer)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var result apimodel.PlayResult
	decodeBody(t, response, &result)
	assert.Equal(t, apimodel.PlaybackStatePlaying, result.Status)
	assert.Equal(t, apimodel.MediaTypeVideo, result.Media.MediaType)
}

func TestApiMediaUploadRejectsUnknownType(t *testing.T) {
	f := newApiFixture(t)

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("text"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	response, err := http.Post(f.server.URL+"/api/media", writer.FormDataContentType(), &buffer)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, response.StatusCode)
}

func TestApiMediaDuration(t *testing.T) {
	f := newApiFixture(t)
	image := f.addMedia(t, "a.png")

	response := f.do(t, "POST", "/api/media/"+string(image.Id)+"/duration", `{"duration":12}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var item apimodel.MediaItem
	decodeBody(t, response, &item)
	require.NotNil(t, item.DefaultDuration)
	assert.Equal(t, int64(12), *item.DefaultDuration)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/api/media/"+string(image.Id)+"/duration", `{"duration":-1}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/api/media/unknown/duration", `{"duration":3}`).StatusCode)
}

func TestApiPlayMedia(t *testing.T) {
	f := newApiFixture(t)
	image := f.addMedia(t, "a.png")

	response := f.do(t, "POST", "/api/media/"+string(image.Id)+"/play", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var result apimodel.PlayResult
	decodeBody(t, response, &result)
	assert.Equal(t, apimodel.PlaybackStatePlaying, result.Status)
	assert.Equal(t, image.Id, result.Media.Id)

	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/api/media/unknown/play", "").StatusCode)

	f.failPlayback(ErrPlayerNotFound)
	response = f.do(t, "POST", "/api/media/"+string(image.Id)+"/play", "")
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)
	assert.Contains(t, errorMessage(t, response), "mpv executable not found")

	f.failPlayback(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, f.do(t, "POST", "/api/media/"+string(image.Id)+"/play", "").StatusCode)
}

func TestApiPlayMissingFile(t *testing.T) {
	f := newApiFixture(t)
	image := f.addMedia(t, "a.png")
	require.NoError(t, os.Remove(f.store.MediaPath(image)))

	response := f.do(t, "POST", "/api/media/"+string(image.Id)+"/play", "")
	assert.Equal(t, http.StatusGone, response.StatusCode)
}

func TestApiStopAndStatus(t *testing.T) {
	f := newApiFixture(t)

	response := f.do(t, "POST", "/api/stop", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var result apimodel.StatusResult
	decodeBody(t, response, &result)
	assert.Equal(t, "stopped", result.Status)

	response = f.do(t, "GET", "/api/status", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var status apimodel.PlaybackStatus
	decodeBody(t, response, &status)
	assert.Equal(t, apimodel.PlaybackStateIdle, status.Status)
	assert.Nil(t, status.Media)

	response = f.do(t, "GET", "/api/display", "")
	var display apimodel.DisplayStatus
	decodeBody(t, response, &display)
	assert.True(t, display.Running)

	assert.Equal(t, http.StatusOK, f.do(t, "POST", "/api/display/start", "").StatusCode)
	assert.Equal(t, http.StatusOK, f.do(t, "POST", "/api/display/next", "").StatusCode)
}

func TestApiProjectorSchedule(t *testing.T) {
	f := newApiFixture(t)

	response := f.do(t, "GET", "/api/projector/schedule", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var schedule apimodel.Schedule
	decodeBody(t, response, &schedule)
	assert.False(t, schedule.PowerOn.Enabled)
	assert.Nil(t, schedule.PowerOn.Time)

	response = f.do(t, "PUT", "/api/projector/schedule", `{"power_on":{"enabled":true,"time":" 7:05 "},"power_off":{"enabled":false,"time":""}}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	decodeBody(t, response, &schedule)
	require.NotNil(t, schedule.PowerOn.Time)
	assert.Equal(t, "07:05", *schedule.PowerOn.Time)
	assert.Nil(t, schedule.PowerOff.Time)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/api/projector/schedule", `{"power_on":{"enabled":true,"time":"25:00"}}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/api/projector/schedule", `nope`).StatusCode)

	// an empty body must not wipe the stored schedule
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/api/projector/schedule", "").StatusCode)
	response = f.do(t, "GET", "/api/projector/schedule", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	decodeBody(t, response, &schedule)
	assert.True(t, schedule.PowerOn.Enabled)
	require.NotNil(t, schedule.PowerOn.Time)
	assert.Equal(t, "07:05", *schedule.PowerOn.Time)
}

func TestApiProjectorPower(t *testing.T) {
	f := newApiFixture(t)

	response := f.do(t, "POST", "/api/projector/power", `{"state":"on"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var result apimodel.PowerResult
	decodeBody(t, response, &result)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, apimodel.PowerStateOn, result.State)
	assert.Equal(t, []apimodel.PowerState{apimodel.PowerStateOn}, f.transport.Calls())

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/api/projector/power", `{"state":"standby"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/api/projector/power", "").StatusCode)
	assert.Len(t, f.transport.Calls(), 1)

	f.transport.fail(errors.New("cec down"))
	assert.Equal(t, http.StatusInternalServerError, f.do(t, "POST", "/api/projector/power", `{"state":"off"}`).StatusCode)
}
