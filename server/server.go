// Package server exposes a runner over HTTP: the rendered document, a ctl
// endpoint, a websocket stream of mutations and prometheus metrics.
package server

import (
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psilva261/lqueryfs/dom"
	"github.com/psilva261/lqueryfs/runner"
	"go.uber.org/zap"
	"io"
	"net/http"
	"sync"
)

// maxScript limits the size of ctl request bodies.
const maxScript = 1 << 20

type Server struct {
	r        *runner.Runner
	m        *Metrics
	log      *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	cancel   func()
	done     chan struct{}

	// ctl serializes script runs and change tracking
	ctl sync.Mutex

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

// New serves r. It subscribes to the mutations of r until Close.
func New(r *runner.Runner, m *Metrics, log *zap.Logger) (s *Server) {
	if m == nil {
		m = NewMetrics(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s = &Server{
		r:       r,
		m:       m,
		log:     log.Named("server"),
		mux:     http.NewServeMux(),
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.mux.HandleFunc("GET /html", s.handleHTML)
	s.mux.HandleFunc("POST /ctl", s.handleCtl)
	s.mux.HandleFunc("POST /click", s.handleClick)
	s.mux.HandleFunc("GET /mutations", s.handleMutations)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	feed, cancel := r.Subscribe()
	s.cancel = cancel
	go s.forward(feed)
	return
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

func (s *Server) handleHTML(w http.ResponseWriter, req *http.Request) {
	h, err := s.r.HTML()
	if err != nil {
		s.log.Error("html", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, h)
}

// handleCtl runs the body as a ctl script and replies with its output.
func (s *Server) handleCtl(w http.ResponseWriter, req *http.Request) {
	bs, err := io.ReadAll(io.LimitReader(req.Body, maxScript))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctl.Lock()
	defer s.ctl.Unlock()
	out, err := s.r.ExecScript(string(bs))
	if _, _, terr := s.r.TrackChanges(); terr != nil {
		s.log.Warn("track changes", zap.Error(terr))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, err.Error()+"\n")
	}
	if out != "" {
		io.WriteString(w, out+"\n")
	}
}

// handleClick clicks the element given by the sel parameter and replies
// with the new html, or 204 if nothing handled the click.
func (s *Server) handleClick(w http.ResponseWriter, req *http.Request) {
	sel := req.FormValue("sel")
	if sel == "" {
		http.Error(w, "missing sel", http.StatusBadRequest)
		return
	}
	s.ctl.Lock()
	defer s.ctl.Unlock()
	h, changed, err := s.r.TriggerClick(sel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, h)
}

func (s *Server) handleMutations(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Debug("upgrade", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	s.m.clients.Inc()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.drop(conn)
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if s.clients[conn] {
		delete(s.clients, conn)
		s.m.clients.Dec()
	}
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) forward(feed <-chan dom.Mutation) {
	defer close(s.done)
	for m := range feed {
		s.m.mutations.Inc()
		s.broadcast(m)
	}
}

func (s *Server) broadcast(m dom.Mutation) {
	data, err := json.Marshal(m)
	if err != nil {
		s.log.Error("marshal mutation", zap.Error(err))
		return
	}
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(c)
		}
	}
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close ends the mutation stream and disconnects all clients.
func (s *Server) Close() {
	s.cancel()
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
		delete(s.clients, c)
		s.m.clients.Dec()
	}
}
