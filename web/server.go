// Package web serves the local dashboard: a static page, a small JSON
// API over the take history, and a websocket that streams recorder
// state changes as they happen.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hark/history"
	"hark/log"
	"hark/recorder"
)

//go:embed static/*
var staticFS embed.FS

// The server binds to loopback only, so whatever origin a local
// browser presents is acceptable.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Status is the live recorder state returned by /api/status and pushed
// over the websocket whenever it changes.
type Status struct {
	Recording  bool   `json:"recording"`
	Device     string `json:"device"`
	Mode       string `json:"mode"`
	Enhance    bool   `json:"enhance"`
	Style      int    `json:"style"`
	StyleLabel string `json:"styleLabel"`
}

// statusPayload is Status plus the lifetime counters from the store.
type statusPayload struct {
	Status
	Totals history.Totals `json:"totals"`
}

// takeView is the wire form of a finished take.
type takeView struct {
	ID          string  `json:"id"`
	StartedAt   string  `json:"startedAt"`
	Origin      string  `json:"origin"`
	Seconds     float64 `json:"seconds"`
	Format      string  `json:"format"`
	Provider    string  `json:"provider"`
	Text        string  `json:"text"`
	Words       int     `json:"words"`
	Error       string  `json:"error,omitempty"`
	NoSpeech    bool    `json:"noSpeech"`
	Enhanced    bool    `json:"enhanced"`
	Style       int     `json:"style,omitempty"`
	AutoStopped bool    `json:"autoStopped"`
}

func viewTake(t recorder.Take) takeView {
	return takeView{
		ID:          t.ID,
		StartedAt:   t.StartedAt.UTC().Format(time.RFC3339),
		Origin:      string(t.Origin),
		Seconds:     t.Duration.Seconds(),
		Format:      t.Format,
		Provider:    t.Provider,
		Text:        t.Text,
		Words:       len(strings.Fields(t.Text)),
		Error:       t.Err,
		NoSpeech:    t.NoSpeech,
		Enhanced:    t.Enhanced,
		Style:       t.Style,
		AutoStopped: t.AutoStopped,
	}
}

// event wraps every websocket frame so the dashboard can switch on type.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Server is the local dashboard server. Start it once, broadcast from
// the status fanout, Close on shutdown.
type Server struct {
	store  *history.Store
	status func() Status

	hub *hub
	srv *http.Server
	url string

	closeOnce sync.Once
}

// New builds a dashboard server over the take store. status is called
// on every /api/status request and on each broadcast; it must be safe
// to call from any goroutine.
func New(store *history.Store, status func() Status) *Server {
	return &Server{
		store:  store,
		status: status,
		hub:    newHub(),
	}
}

// Start listens on addr and serves in the background. Use port 0 to
// let the OS pick.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		ln.Close()
		return fmt.Errorf("web: static assets: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/", http.FileServer(http.FS(static)))

	s.srv = &http.Server{Handler: mux}
	s.url = fmt.Sprintf("http://%s", ln.Addr())

	go s.hub.run()
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("web: server error: %v", err)
		}
	}()

	log.Infof("web: dashboard on %s", s.url)
	return nil
}

// URL returns the base address once Start has succeeded.
func (s *Server) URL() string {
	return s.url
}

// Close disconnects every client and shuts the listener down. Safe to
// call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.hub.stop)
		<-s.hub.done
		if s.srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			err = s.srv.Shutdown(ctx)
		}
	})
	return err
}

// BroadcastStatus pushes the current recorder state to every connected
// dashboard client.
func (s *Server) BroadcastStatus() {
	s.broadcast("status", s.status())
}

// BroadcastTake pushes a finished take to every connected dashboard
// client.
func (s *Server) BroadcastTake(t recorder.Take) {
	s.broadcast("take", viewTake(t))
}

func (s *Server) broadcast(typ string, data any) {
	msg, err := json.Marshal(event{Type: typ, Data: data})
	if err != nil {
		log.Debugf("web: marshal %s event: %v", typ, err)
		return
	}
	s.hub.publish(msg)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	totals, err := s.store.Totals()
	if err != nil {
		log.Errorf("web: totals: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusPayload{Status: s.status(), Totals: totals})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > 200 {
		limit = 200
	}
	takes, err := s.store.Recent(limit)
	if err != nil {
		log.Errorf("web: recent takes: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	views := make([]takeView, 0, len(takes))
	for _, t := range takes {
		views = append(views, viewTake(t))
	}
	writeJSON(w, views)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("web: upgrade failed: %v", err)
		return
	}
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case s.hub.register <- c:
	case <-s.hub.stop:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("web: encode response: %v", err)
	}
}
