package device

import (
	"net/http"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/event"
)

func (d *Api) statusAction(w http.ResponseWriter, r *http.Request) {
	JsonAction(w, http.StatusOK, d.backend.Player.Status())
}

func (d *Api) stopAction(w http.ResponseWriter, r *http.Request) {
	if err := d.dispatch(r.Context(), event.ApiEventStopData{}); err != nil {
		GlobalErrorAction(w, "Failed to stop playback: "+err.Error(), http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, apimodel.StatusResult{Status: "stopped"})
}

func (d *Api) displayStatusAction(w http.ResponseWriter, r *http.Request) {
	JsonAction(w, http.StatusOK, d.backend.Display.Status())
}

func (d *Api) displayStartAction(w http.ResponseWriter, r *http.Request) {
	if err := d.dispatch(r.Context(), event.ApiEventDisplayStartData{}); err != nil {
		GlobalErrorAction(w, "Failed to start display: "+err.Error(), http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, d.backend.Display.Status())
}

func (d *Api) displayNextAction(w http.ResponseWriter, r *http.Request) {
	if err := d.dispatch(r.Context(), event.ApiEventDisplayNextData{}); err != nil {
		GlobalErrorAction(w, "Failed to skip item: "+err.Error(), http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, d.backend.Display.Status())
}
