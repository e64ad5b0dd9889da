package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mengelbart/vplay"
)

// Player is the part of a playback handle the API drives.
type Player interface {
	Play()
	Pause()
	Stop()
	SkipForward()
	SkipBackward()
	Seek(fraction float64)

	State() vplay.PlaybackState
	PlaySpeed() vplay.PlaySpeed
	SetPlaySpeed(vplay.PlaySpeed)
	Track() vplay.TrackInfo
	FPS() float64
	TotalDuration() time.Duration
	CurrentTimestamp() time.Duration
	Progress() float64
	DroppedFrames() uint64
	EvictedFrames() uint64
}

type Status struct {
	State            string  `json:"state"`
	PlaySpeed        string  `json:"playSpeed"`
	Progress         float64 `json:"progress"`
	CurrentTimestamp string  `json:"currentTimestamp"`
	TotalDuration    string  `json:"totalDuration"`
	FPS              float64 `json:"fps"`
	DroppedFrames    uint64  `json:"droppedFrames"`
	EvictedFrames    uint64  `json:"evictedFrames"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	Codec            string  `json:"codec"`
}

type API struct {
	logger *slog.Logger
	player Player
}

func NewAPI(player Player, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		logger: logger.With("component", "control-api"),
		player: player,
	}
}

func (a *API) RegisterRoutes(mux *httprouter.Router) {
	mux.HandlerFunc("GET", "/api/v1/status", a.GetStatus)
	mux.HandlerFunc("POST", "/api/v1/control/:command", a.PostCommand)
	mux.HandlerFunc("PUT", "/api/v1/speed/:speed", a.PutPlaySpeed)
}

// Router returns a router with all API routes registered.
func (a *API) Router() *httprouter.Router {
	mux := httprouter.New()
	a.RegisterRoutes(mux)
	return mux
}

func (a *API) status() Status {
	track := a.player.Track()
	return Status{
		State:            a.player.State().String(),
		PlaySpeed:        a.player.PlaySpeed().String(),
		Progress:         a.player.Progress(),
		CurrentTimestamp: a.player.CurrentTimestamp().String(),
		TotalDuration:    a.player.TotalDuration().String(),
		FPS:              a.player.FPS(),
		DroppedFrames:    a.player.DroppedFrames(),
		EvictedFrames:    a.player.EvictedFrames(),
		Width:            track.Width,
		Height:           track.Height,
		Codec:            track.Codec.String(),
	}
}

func (a *API) GetStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.status())
}

func (a *API) PostCommand(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	kind, err := vplay.ParseCommandKind(params.ByName("command"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	switch kind {
	case vplay.Play:
		a.player.Play()
	case vplay.Pause:
		a.player.Pause()
	case vplay.Stop:
		a.player.Stop()
	case vplay.SkipForward:
		a.player.SkipForward()
	case vplay.SkipBackward:
		a.player.SkipBackward()
	case vplay.Seek:
		fraction, err := strconv.ParseFloat(r.URL.Query().Get("fraction"), 64)
		if err != nil || fraction < 0 || fraction > 1 {
			http.Error(w, "fraction must be a number in [0, 1]", http.StatusBadRequest)
			return
		}
		a.player.Seek(fraction)
	}
	a.logger.Info("command", "kind", kind, "remote", r.RemoteAddr)
	a.writeJSON(w, http.StatusOK, a.status())
}

func (a *API) PutPlaySpeed(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	speed, err := vplay.ParsePlaySpeed(params.ByName("speed"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.player.SetPlaySpeed(speed)
	a.writeJSON(w, http.StatusOK, a.status())
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to write response", "error", err)
	}
}
