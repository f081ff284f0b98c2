package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"transactive-agent/internal/config"
	"transactive-agent/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// StatusFunc returns the snapshot served on /status.
type StatusFunc func() map[string]interface{}

// Server exposes the agent state over HTTP and streams prediction records to
// websocket subscribers.
type Server struct {
	server   *http.Server
	upgrader websocket.Upgrader
	config   *config.Config
	logger   *logrus.Logger

	status  StatusFunc
	metrics http.Handler
	records *models.RecordBuffer

	clients map[*websocket.Conn]*sync.Mutex
	mutex   sync.RWMutex
}

func NewServer(cfg *config.Config, status StatusFunc, metrics http.Handler, records *models.RecordBuffer, logger *logrus.Logger) *Server {
	return &Server{
		config:  cfg,
		logger:  logger,
		status:  status,
		metrics: metrics,
		records: records,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/ws/curves", s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Status.Host, s.config.Status.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	s.logger.Infof("Starting status server on %s", addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down status server...")
		s.server.Close()
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop() {
	if s.server != nil {
		s.logger.Info("Stopping status server")
		s.server.Close()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]interface{}{}
	if s.status != nil {
		snapshot = s.status()
	}
	s.writeJSON(w, snapshot)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if topic := r.URL.Query().Get("topic"); topic != "" {
		record, ok := s.records.Get(topic)
		if !ok {
			http.Error(w, "no record for topic "+topic, http.StatusNotFound)
			return
		}
		s.writeJSON(w, record)
		return
	}
	s.writeJSON(w, s.records.All())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// handleWebSocket registers a subscriber, sends it the latest records and
// then waits for it to go away. Incoming messages are ignored.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	lock := &sync.Mutex{}
	s.mutex.Lock()
	s.clients[conn] = lock
	s.mutex.Unlock()
	s.logger.Infof("Curve subscriber connected from %s", r.RemoteAddr)

	defer func() {
		s.mutex.Lock()
		delete(s.clients, conn)
		s.mutex.Unlock()
		conn.Close()
		s.logger.Infof("Curve subscriber %s disconnected", r.RemoteAddr)
	}()

	for _, record := range s.records.All() {
		if err := s.send(conn, lock, record); err != nil {
			s.logger.Errorf("Write message error for %s: %v", r.RemoteAddr, err)
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, lock *sync.Mutex, record models.PredictionRecord) error {
	lock.Lock()
	defer lock.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(record)
}

// Broadcast pushes a record to every connected subscriber. Subscribers that
// fail the write are dropped.
func (s *Server) Broadcast(record models.PredictionRecord) {
	s.mutex.RLock()
	clients := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for conn, lock := range s.clients {
		clients[conn] = lock
	}
	s.mutex.RUnlock()

	for conn, lock := range clients {
		if err := s.send(conn, lock, record); err != nil {
			s.logger.Warnf("Dropping curve subscriber: %v", err)
			s.mutex.Lock()
			delete(s.clients, conn)
			s.mutex.Unlock()
			conn.Close()
		}
	}
}

// Subscribers returns the number of connected websocket clients.
func (s *Server) Subscribers() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}
