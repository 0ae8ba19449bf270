package device

import (
	"net/http"

	"github.com/jypelle/pishow/apimodel"
	"github.com/sirupsen/logrus"
)

func (d *Api) getScheduleAction(w http.ResponseWriter, r *http.Request) {
	schedule, err := d.backend.Schedules.Read()
	if err != nil {
		logrus.Errorf("Unable to read projector schedule: %v", err)
		GlobalErrorAction(w, "Unable to read projector schedule", http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, schedule)
}

func (d *Api) updateScheduleAction(w http.ResponseWriter, r *http.Request) {
	var schedule apimodel.Schedule
	if err := decodeJson(r, &schedule); err != nil {
		GlobalErrorAction(w, "Request body must be valid JSON.", http.StatusBadRequest)
		return
	}
	schedule, err := schedule.Normalize()
	if err != nil {
		GlobalErrorAction(w, err.Error(), http.StatusBadRequest)
		return
	}

	schedule, err = d.backend.Schedules.Update(schedule)
	if err != nil {
		logrus.Errorf("Unable to save projector schedule: %v", err)
		GlobalErrorAction(w, "Unable to save projector schedule", http.StatusInternalServerError)
		return
	}
	d.backend.Scheduler.Wake()
	JsonAction(w, http.StatusOK, schedule)
}

func (d *Api) powerAction(w http.ResponseWriter, r *http.Request) {
	var input apimodel.PowerInput
	if err := decodeJson(r, &input); err != nil {
		GlobalErrorAction(w, "Request body must be valid JSON.", http.StatusBadRequest)
		return
	}
	if !input.State.Valid() {
		GlobalErrorAction(w, apimodel.ErrInvalidPowerState.Error(), http.StatusBadRequest)
		return
	}

	if err := d.backend.Scheduler.Override(r.Context(), input.State); err != nil {
		GlobalErrorAction(w, "Failed to control the projector: "+err.Error(), http.StatusInternalServerError)
		return
	}
	JsonAction(w, http.StatusOK, apimodel.PowerResult{Status: "ok", State: input.State})
}
