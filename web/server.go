package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Status is the summary shown on the status page.
type Status struct {
	Day     int
	Paused  bool
	Players []PlayerStatus
}

// PlayerStatus summarises one AI player.
type PlayerStatus struct {
	ID        int
	Gold      int64
	Heroes    int
	Locked    int
	Decisions int
	LastTurn  time.Time
}

var statusPage = template.Must(template.New("status").Funcs(template.FuncMap{
	"comma": humanize.Comma,
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><title>heroai day {{.Day}}</title></head>
<body>
<h1>Day {{.Day}}</h1>
<p id="state">{{if .Paused}}paused{{else}}running{{end}}</p>
<table id="players">
<tr><th>Player</th><th>Gold</th><th>Heroes</th><th>Locked</th><th>Decisions</th><th>Last turn</th></tr>
{{range .Players}}<tr class="player" data-id="{{.ID}}">
<td>{{.ID}}</td><td class="gold">{{comma .Gold}}</td><td class="heroes">{{.Heroes}}</td><td class="locked">{{.Locked}}</td><td class="decisions">{{.Decisions}}</td><td>{{ago .LastTurn}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

// Server serves the status page, the state API and the websocket feed.
type Server struct {
	controller Controller
	hub        *Hub
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewServer creates a server. hub may be nil, in which case /ws is not served.
func NewServer(controller Controller, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		controller: controller,
		hub:        hub,
		logger:     logger.Named("web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/pause", s.handlePause)
	mux.HandleFunc("POST /api/resume", s.handleResume)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.handleWebsocket)
	}
	return mux
}

// ListenAndServe serves on host:port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, host string, port int) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve %s: %w", srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web server: %w", err)
		}
		<-errc
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage.Execute(w, s.controller.Status()); err != nil {
		s.logger.Error("failed to render status page", zap.Error(err))
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.State()
	if err != nil {
		s.logger.Error("failed to get state", zap.Error(err))
		http.Error(w, "state unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(state)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.controller.Pause()
	s.hub.BroadcastFullState()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.controller.Resume()
	s.hub.BroadcastFullState()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	if state, err := s.controller.State(); err == nil {
		client.send <- state
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
