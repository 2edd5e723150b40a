// Package control exposes a local websocket endpoint for operating the
// running daemon: reloading the intents and whitelist files and
// querying status, without restarting or touching the audio path.
package control

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/guard"
	"github.com/TUF-SCAR/Jarvis-Local/internal/intent"
)

// Request is one control message from a client.
type Request struct {
	Command string `json:"command"`
}

// Response answers one request.
type Response struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Status is the payload for the status command.
type Status struct {
	Intents       int    `json:"intents"`
	WhitelistSize int    `json:"whitelist_size"`
	DroppedFrames uint64 `json:"dropped_frames"`
	Uptime        string `json:"uptime"`
}

// FrameStats reports queue statistics. Implemented by audio.FrameQueue.
type FrameStats interface {
	Dropped() uint64
}

// Handler serves the control endpoint.
type Handler struct {
	upgrader websocket.Upgrader
	intents  *intent.Store
	guard    *guard.Guard
	frames   FrameStats
	started  time.Time
}

// NewHandler creates the control handler. The endpoint binds next to
// the metrics listener and is meant for local use only.
func NewHandler(intents *intent.Store, g *guard.Guard, frames FrameStats) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		intents: intents,
		guard:   g,
		frames:  frames,
		started: time.Now(),
	}
}

// ServeHTTP upgrades the connection and answers control messages until
// the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Control upgrade failed")
		return
	}
	defer conn.Close()
	log.Info().Str("remote", r.RemoteAddr).Msg("Control client connected")

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Control connection error")
			}
			return
		}
		resp := h.handle(req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn().Err(err).Msg("Control write failed")
			return
		}
	}
}

func (h *Handler) handle(req Request) Response {
	switch req.Command {
	case "reload":
		return h.reload()
	case "status":
		return h.status()
	default:
		return Response{Error: "unknown command: " + req.Command}
	}
}

// reload re-reads both files. Each store swaps its snapshot atomically;
// a file that fails to parse keeps its previous snapshot.
func (h *Handler) reload() Response {
	if err := h.intents.Reload(); err != nil {
		log.Error().Err(err).Msg("Intent reload failed")
		return Response{Error: err.Error()}
	}
	if err := h.guard.Reload(); err != nil {
		log.Error().Err(err).Msg("Whitelist reload failed")
		return Response{Error: err.Error()}
	}
	return Response{OK: true}
}

func (h *Handler) status() Response {
	var dropped uint64
	if h.frames != nil {
		dropped = h.frames.Dropped()
	}
	return Response{
		OK: true,
		Status: &Status{
			Intents:       h.intents.Current().Len(),
			WhitelistSize: h.guard.Current().Len(),
			DroppedFrames: dropped,
			Uptime:        time.Since(h.started).Round(time.Second).String(),
		},
	}
}
