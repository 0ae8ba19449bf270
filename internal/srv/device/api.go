package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/jypelle/pishow/internal/srv/event"
	"github.com/jypelle/pishow/internal/srv/store"
	"github.com/jypelle/pishow/internal/tool"
	"github.com/sirupsen/logrus"
)

const maxUploadSize = 512 << 20

type PlaybackReporter interface {
	Status() apimodel.PlaybackStatus
}

type DisplayReporter interface {
	Status() apimodel.DisplayStatus
}

// ApiBackend groups what the HTTP handlers read and write directly. Anything
// touching playback goes through the event channel instead.
type ApiBackend struct {
	Store     *store.Store
	Schedules *config.ScheduleStore
	Scheduler *Scheduler
	Player    PlaybackReporter
	Display   DisplayReporter
	Hub       *StatusHub
	State     *config.ServerState
}

type Api struct {
	eventChannel chan event.ApiEvent

	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server

	config  *config.ServerConfig
	backend ApiBackend
}

func NewApi(config *config.ServerConfig, backend ApiBackend) *Api {
	api := &Api{
		config:       config,
		backend:      backend,
		eventChannel: make(chan event.ApiEvent),
	}

	api.router = mux.NewRouter().StrictSlash(false)
	api.router.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.router.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	// Media files
	api.router.PathPrefix("/media/").Handler(
		http.StripPrefix("/media/", http.FileServer(http.Dir(backend.Store.MediaRoot())))).Methods("GET", "HEAD")

	// API Routes
	api.apiRouter = api.router.PathPrefix("/api").Subrouter()
	api.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	// Recovery middleware
	api.apiRouter.Use(
		func(handler http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						logrus.Warningf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
						GlobalErrorAction(w, fmt.Sprintf("%v", rec), http.StatusInternalServerError)
					}
				}()

				logrus.Debugf("PATH: %s %s %s", r.Method, r.Host, r.URL.Path)

				handler.ServeHTTP(w, r)
			})
		})

	// Create server check endpoint
	api.apiRouter.HandleFunc("/is_alive",
		func(w http.ResponseWriter, r *http.Request) {
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("GET")

	api.apiRouter.HandleFunc("/playlist", api.getPlaylistAction).Methods("GET")
	api.apiRouter.HandleFunc("/playlist", api.setPlaylistAction).Methods("POST")
	api.apiRouter.HandleFunc("/playlist", api.clearPlaylistAction).Methods("DELETE")

	api.apiRouter.HandleFunc("/media", api.listMediaAction).Methods("GET")
	api.apiRouter.HandleFunc("/media", api.uploadMediaAction).Methods("POST")
	api.apiRouter.HandleFunc("/media/upload-and-play", api.uploadAndPlayAction).Methods("POST")
	api.apiRouter.HandleFunc("/media/{id}", api.deleteMediaAction).Methods("DELETE")
	api.apiRouter.HandleFunc("/media/{id}/duration", api.setMediaDurationAction).Methods("POST")
	api.apiRouter.HandleFunc("/media/{id}/play", api.playMediaAction).Methods("POST")

	api.apiRouter.HandleFunc("/status", api.statusAction).Methods("GET")
	api.apiRouter.HandleFunc("/status/ws", backend.Hub.ServeWs).Methods("GET")
	api.apiRouter.HandleFunc("/stop", api.stopAction).Methods("POST")

	api.apiRouter.HandleFunc("/display", api.displayStatusAction).Methods("GET")
	api.apiRouter.HandleFunc("/display/start", api.displayStartAction).Methods("POST")
	api.apiRouter.HandleFunc("/display/next", api.displayNextAction).Methods("POST")

	api.apiRouter.HandleFunc("/projector/schedule", api.getScheduleAction).Methods("GET")
	api.apiRouter.HandleFunc("/projector/schedule", api.updateScheduleAction).Methods("PUT")
	api.apiRouter.HandleFunc("/projector/power", api.powerAction).Methods("POST")

	api.server = &http.Server{
		Addr:         ":" + strconv.FormatInt(config.ApiParam.Port, 10),
		Handler:      api.Handler(),
		ReadTimeout:  time.Second * 240,
		WriteTimeout: time.Second * 240,
		IdleTimeout:  time.Second * 240,
	}

	return api
}

// Handler returns the router wrapped with CORS and, except for websocket
// upgrades, response compression.
func (d *Api) Handler() http.Handler {
	// Tell the browser that it's OK for JS to communicate with the server
	headersOk := handlers.AllowedHeaders([]string{"Content-Type", "Authorization"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})

	var handler http.Handler = d.router
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		handler = handlers.LoggingHandler(logrus.StandardLogger().WriterLevel(logrus.DebugLevel), handler)
	}
	cors := handlers.CORS(originsOk, headersOk, methodsOk)(handler)
	compressed := handlers.CompressHandler(cors)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			cors.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

func (d *Api) Start() {
	logrus.Infof("Start api device on port %d", d.config.ApiParam.Port)

	if !d.config.ApiParam.Tls {
		go func() {
			err := d.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Error(err)
			}
		}()
		return
	}

	existServerCert, err := tool.IsFileExists(d.config.GetCompleteCertFilename())
	if err != nil {
		logrus.Fatalf("Unable to access %s: %v\n", d.config.GetCompleteCertFilename(), err)
	}
	existServerKey, err := tool.IsFileExists(d.config.GetCompleteKeyFilename())
	if err != nil {
		logrus.Fatalf("Unable to access %s: %v\n", d.config.GetCompleteKeyFilename(), err)
	}

	if !existServerCert || !existServerKey {
		logrus.Info("Missing cert and key files, trying to generate them...")
		err = tool.GenerateTlsCertificate(
			"pishow",
			"Pishow Server",
			d.config.GetCompleteKeyFilename(),
			d.config.GetCompleteCertFilename(),
			[]string{"localhost", "127.0.0.1"})
		if err != nil {
			logrus.Fatalf("Unable to generate cert and key files : %v\n", err)
		}
		logrus.Info("Self-signed cert and key files generated")
	}

	// Launch https server
	go func() {
		err := d.server.ListenAndServeTLS(d.config.GetCompleteCertFilename(), d.config.GetCompleteKeyFilename())
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Error(err)
		}
	}()
}

func (d *Api) StopSendingEvent() {
	logrus.Infof("Stop api device")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		logrus.Warnf("Unable to shutdown api server: %v", err)
	}
}

func (d *Api) EventChannel() chan event.ApiEvent {
	return d.eventChannel
}

// dispatch hands data to the event loop and waits for its answer.
func (d *Api) dispatch(ctx context.Context, data interface{}) error {
	result := make(chan error, 1)
	select {
	case d.eventChannel <- event.ApiEvent{Result: result, Data: data}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	ErrorMessageAction(w, "", status)
}

func GlobalErrorAction(w http.ResponseWriter, message string, status int) {
	ErrorMessageAction(w, message, status)
}

func ErrorMessageAction(w http.ResponseWriter, title string, status int) {
	apimodel.ErrorMessage{
		ErrStatusCode: status,
		ErrMessage:    title,
	}.SendError(w)
}

func JsonAction(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Unable to encode response: %v", err)
	}
}

// decodeJson reads a JSON body. An empty body is an error.
func decodeJson(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
