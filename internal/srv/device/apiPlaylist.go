package device

import (
	"errors"
	"net/http"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/store"
	"github.com/sirupsen/logrus"
)

func (d *Api) getPlaylistAction(w http.ResponseWriter, r *http.Request) {
	playlist, err := d.backend.Store.Playlist(r.Context())
	if err != nil {
		logrus.Errorf("Unable to read playlist: %v", err)
		GlobalErrorAction(w, "Unable to read playlist", http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, playlist)
}

func (d *Api) setPlaylistAction(w http.ResponseWriter, r *http.Request) {
	var input apimodel.PlaylistInput
	if err := decodeJson(r, &input); err != nil {
		GlobalErrorAction(w, "Request body must be valid JSON.", http.StatusBadRequest)
		return
	}
	specs, err := input.Normalize()
	if err != nil {
		GlobalErrorAction(w, err.Error(), http.StatusBadRequest)
		return
	}

	playlist, err := d.backend.Store.SetPlaylist(r.Context(), specs)
	if err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			GlobalErrorAction(w, err.Error(), http.StatusBadRequest)
			return
		}
		logrus.Errorf("Unable to save playlist: %v", err)
		GlobalErrorAction(w, "Unable to save playlist", http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, playlist)
}

func (d *Api) clearPlaylistAction(w http.ResponseWriter, r *http.Request) {
	playlist, err := d.backend.Store.ClearPlaylist(r.Context())
	if err != nil {
		logrus.Errorf("Unable to clear playlist: %v", err)
		GlobalErrorAction(w, "Unable to clear playlist", http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, playlist)
}
