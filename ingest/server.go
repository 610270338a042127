package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	writeWait  = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	id   string
	send chan Reply
}

// Server accepts sensor bridge connections on /ws and exposes health and
// metrics endpoints.
type Server struct {
	p        Pipeline
	log      logrus.FieldLogger
	metrics  *Metrics
	upgrader websocket.Upgrader
	started  time.Time

	mu      sync.RWMutex
	clients map[string]*client
	nextID  int
}

func NewServer(p Pipeline, log logrus.FieldLogger) *Server {
	return &Server{
		p:       p,
		log:     log,
		metrics: NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		started: time.Now(),
		clients: make(map[string]*client),
	}
}

func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// closes every websocket.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("ingest server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("ingest server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	id := r.URL.Query().Get("clientId")
	if id == "" {
		s.nextID++
		id = fmt.Sprintf("bridge-%d", s.nextID)
	}
	c := &client{conn: conn, id: id, send: make(chan Reply, 64)}
	s.clients[id] = c
	s.mu.Unlock()
	s.metrics.wsConnections.Add(1)
	log := s.log.WithField("client", id)
	log.Info("bridge connected")

	go s.writePump(c)
	s.reply(c, Reply{Type: "welcome", Payload: map[string]bool{"recording": s.p.Recording()}})

	s.readPump(r.Context(), c, log)

	s.mu.Lock()
	if s.clients[id] == c {
		delete(s.clients, id)
		close(c.send)
	}
	s.mu.Unlock()
	s.metrics.wsConnections.Add(-1)
	log.Info("bridge disconnected")
}

func (s *Server) readPump(ctx context.Context, c *client, log logrus.FieldLogger) {
	defer c.conn.Close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.metrics.observe(msg.Type)

		out, err := Dispatch(ctx, s.p, msg)
		if err != nil {
			s.metrics.IncrementErrors()
			log.WithError(err).WithField("type", msg.Type).Warn("dispatch")
			s.reply(c, Reply{Type: "error", Payload: map[string]string{"type": string(msg.Type), "error": err.Error()}})
			continue
		}
		if out != nil {
			s.reply(c, Reply{Type: string(msg.Type) + "_ack", Payload: out})
		}
	}
}

func (s *Server) reply(c *client, r Reply) {
	r.ClientID = c.id
	r.Timestamp = time.Now().Unix()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clients[c.id] != c {
		return
	}
	select {
	case c.send <- r:
	default:
		s.log.WithField("client", c.id).Warn("reply dropped, send buffer full")
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case r, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(r); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		close(c.send)
		c.conn.Close()
		delete(s.clients, id)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.mu.RLock()
	active := len(s.clients)
	s.mu.RUnlock()
	writeStatus(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"recording":      s.p.Recording(),
		"active_bridges": active,
		"uptime_sec":     int(time.Since(s.started).Seconds()),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeStatus(w, http.StatusOK, s.metrics.Snapshot())
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
