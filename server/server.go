package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	K       int    `json:"k,omitempty"`
	// Threshold is optional; when absent the store default applies and an
	// explicit 0 disables the similarity filter.
	Threshold *float32 `json:"threshold,omitempty"`
	Data      any      `json:"data,omitempty"`
}

// Memory is the read side of the memory store the server exposes.
type Memory interface {
	FindRelatedNews(ctx context.Context, content string, k int, scoreThreshold float32) ([]models.MemoryRecord, error)
	Stats() store.Stats
}

type Config struct {
	Addr         string
	QueryTimeout time.Duration
}

// WSServer answers related-news queries over a websocket while the pipeline
// keeps writing to the same memory store.
type WSServer struct {
	config Config
	memory Memory
	log    logrus.FieldLogger
}

func NewWSServer(config Config, memory Memory, log logrus.FieldLogger) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSServer{
		config: config,
		memory: memory,
		log:    log.WithField("component", "server"),
	}
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Add a simple health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.memory.Stats())
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.config.Addr).Info("Starting WebSocket server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("Error reading message")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: "invalid message: " + err.Error()})
			continue
		}

		// Messages on one connection are answered in order; websocket writes
		// must not run concurrently.
		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case "related":
		if msg.Content == "" {
			s.sendMessage(conn, Message{Type: "error", Content: "content is required"})
			return
		}

		ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()

		threshold := float32(-1)
		if msg.Threshold != nil {
			threshold = *msg.Threshold
		}

		records, err := s.memory.FindRelatedNews(ctx, msg.Content, msg.K, threshold)
		if err != nil {
			s.log.WithError(err).Warn("Related news query failed")
			s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
			return
		}
		s.sendMessage(conn, Message{Type: "related", Content: msg.Content, Data: records})

	case "stats":
		s.sendMessage(conn, Message{Type: "stats", Data: s.memory.Stats()})

	default:
		s.sendMessage(conn, Message{Type: "error", Content: "unknown message type: " + msg.Type})
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.WithError(err).Warn("Error sending message")
	}
}
