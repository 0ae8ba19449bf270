package apimodel

import (
	"encoding/json"
	"errors"
	"github.com/sirupsen/logrus"
	"net/http"
	"strconv"
)

var (
	ErrInvalidDuration     = errors.New("duration must be a positive integer")
	ErrInvalidScheduleTime = errors.New("time must use HH:MM (24-hour) format")
	ErrInvalidPowerState   = errors.New("invalid 'state'. Expected 'on' or 'off'")
)

// ErrorMessage is the body of every non 2xx answer. Error repeats Message for
// control surfaces that only look at the "error" key.
type ErrorMessage struct {
	ErrStatusCode int    `json:"status_code"`
	ErrMessage    string `json:"message"`
	ErrAlias      string `json:"error,omitempty"`
}

func (e *ErrorMessage) StatusCode() int {
	return e.ErrStatusCode
}

func (e *ErrorMessage) Title() string {
	return e.ErrMessage
}

func (e *ErrorMessage) Error() string {
	if e.ErrMessage != "" {
		return strconv.Itoa(e.ErrStatusCode) + ":" + e.ErrMessage
	}
	return strconv.Itoa(e.ErrStatusCode)
}

func (v ErrorMessage) SendError(w http.ResponseWriter) {
	if v.ErrMessage == "" {
		v.ErrMessage = defaultStatusMessage(v.ErrStatusCode)
	}
	if v.ErrStatusCode >= http.StatusBadRequest {
		v.ErrAlias = v.ErrMessage
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(v.ErrStatusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("error when encoding error: %v", err)
	}
}

func defaultStatusMessage(status int) string {
	switch status {
	case http.StatusOK:
		return "Ok"
	case http.StatusNotFound:
		return "Page not found"
	case http.StatusMethodNotAllowed:
		return "Method not allowed"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusGone:
		return "Gone"
	case http.StatusServiceUnavailable:
		return "Service unavailable"
	case http.StatusBadRequest:
		return "Bad request"
	case http.StatusUnsupportedMediaType:
		return "Unsupported media type"
	default:
		return "Internal error"
	}
}

//errors message
var WrongParametersErrorMessage = ErrorMessage{
	ErrStatusCode: http.StatusBadRequest,
	ErrMessage:    "unable to parse parameters",
}

var MediaNotFoundErrorMessage = ErrorMessage{
	ErrStatusCode: http.StatusNotFound,
	ErrMessage:    "Media item not found",
}

var MediaFileMissingErrorMessage = ErrorMessage{
	ErrStatusCode: http.StatusGone,
	ErrMessage:    "Media file missing on disk",
}
