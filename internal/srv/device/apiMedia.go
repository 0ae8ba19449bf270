package device

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/event"
	"github.com/jypelle/pishow/internal/srv/store"
	"github.com/sirupsen/logrus"
)

func (d *Api) listMediaAction(w http.ResponseWriter, r *http.Request) {
	items, err := d.backend.Store.ListMedia(r.Context())
	if err != nil {
		logrus.Errorf("Unable to list media: %v", err)
		GlobalErrorAction(w, "Unable to list media", http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, apimodel.MediaList{Items: items})
}

func (d *Api) uploadMediaAction(w http.ResponseWriter, r *http.Request) {
	item, ok := d.receiveUpload(w, r)
	if !ok {
		return
	}
	JsonAction(w, http.StatusCreated, item)
}

// uploadAndPlayAction stores the upload then plays it right away.
func (d *Api) uploadAndPlayAction(w http.ResponseWriter, r *http.Request) {
	item, ok := d.receiveUpload(w, r)
	if !ok {
		return
	}
	if !d.startPlayback(w, r, item) {
		return
	}
	JsonAction(w, http.StatusCreated, apimodel.PlayResult{Status: apimodel.PlaybackStatePlaying, Media: item})
}

func (d *Api) receiveUpload(w http.ResponseWriter, r *http.Request) (apimodel.MediaItem, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		GlobalErrorAction(w, "Missing 'file' upload.", http.StatusBadRequest)
		return apimodel.MediaItem{}, false
	}
	defer file.Close()

	item, err := d.backend.Store.AddMedia(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, store.ErrUnsupportedMediaType) {
			GlobalErrorAction(w, err.Error(), http.StatusUnsupportedMediaType)
			return apimodel.MediaItem{}, false
		}
		logrus.Errorf("Unable to store upload %s: %v", header.Filename, err)
		GlobalErrorAction(w, "Unable to store media", http.StatusInternalServerError)
		return apimodel.MediaItem{}, false
	}
	return item, true
}

func (d *Api) deleteMediaAction(w http.ResponseWriter, r *http.Request) {
	id := apimodel.MediaId(mux.Vars(r)["id"])

	err := d.backend.Store.DeleteMedia(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			apimodel.MediaNotFoundErrorMessage.SendError(w)
			return
		}
		logrus.Errorf("Unable to delete media %s: %v", id, err)
		GlobalErrorAction(w, "Unable to delete media", http.StatusInternalServerError)
		return
	}
	if d.backend.State != nil {
		d.backend.State.ClearLastPlayed(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Api) setMediaDurationAction(w http.ResponseWriter, r *http.Request) {
	id := apimodel.MediaId(mux.Vars(r)["id"])

	var input apimodel.MediaDurationInput
	if err := decodeJson(r, &input); err != nil {
		GlobalErrorAction(w, "Request body must be valid JSON.", http.StatusBadRequest)
		return
	}
	duration, err := input.Seconds()
	if err != nil {
		GlobalErrorAction(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := d.backend.Store.SetDefaultDuration(r.Context(), id, duration)
	if err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			apimodel.MediaNotFoundErrorMessage.SendError(w)
			return
		}
		logrus.Errorf("Unable to update media %s: %v", id, err)
		GlobalErrorAction(w, "Unable to update media", http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, item)
}

// playMediaAction starts a manual playback, looping until stopped.
func (d *Api) playMediaAction(w http.ResponseWriter, r *http.Request) {
	id := apimodel.MediaId(mux.Vars(r)["id"])

	item, err := d.backend.Store.GetMedia(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			apimodel.MediaNotFoundErrorMessage.SendError(w)
			return
		}
		logrus.Errorf("Unable to read media %s: %v", id, err)
		GlobalErrorAction(w, "Unable to read media", http.StatusInternalServerError)
		return
	}

	if !d.startPlayback(w, r, item) {
		return
	}
	JsonAction(w, http.StatusOK, apimodel.PlayResult{Status: apimodel.PlaybackStatePlaying, Media: item})
}

func (d *Api) startPlayback(w http.ResponseWriter, r *http.Request, item apimodel.MediaItem) bool {
	exists, err := d.backend.Store.MediaFileExists(item)
	if err != nil || !exists {
		apimodel.MediaFileMissingErrorMessage.SendError(w)
		return false
	}

	err = d.dispatch(r.Context(), event.ApiEventMediaPlayData{Media: item})
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			GlobalErrorAction(w, "mpv executable not found. Install mpv to enable playback.", http.StatusInternalServerError)
			return false
		}
		GlobalErrorAction(w, "Failed to start playback: "+err.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}
