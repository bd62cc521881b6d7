package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/pkg/logger"
	"github.com/xhad/newsagent/pkg/store"
)

type fakeMemory struct {
	records []models.MemoryRecord
	err     error
	gotK    int
	gotTh   float32
}

func (f *fakeMemory) FindRelatedNews(ctx context.Context, content string, k int, scoreThreshold float32) ([]models.MemoryRecord, error) {
	f.gotK, f.gotTh = k, scoreThreshold
	return f.records, f.err
}

func (f *fakeMemory) Stats() store.Stats {
	return store.Stats{Processed: 4, Memories: len(f.records)}
}

type relatedReply struct {
	Type    string                `json:"type"`
	Content string                `json:"content"`
	Data    []models.MemoryRecord `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRelatedQuery(t *testing.T) {
	mem := &fakeMemory{records: []models.MemoryRecord{
		{ID: "a", Title: "Fed holds", Score: 80, Similarity: 0.92},
		{ID: "b", Title: "ECB holds", Score: 65, Similarity: 0.81},
	}}
	srv := httptest.NewServer(NewWSServer(Config{}, mem, logger.Discard()).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	threshold := float32(0.8)
	require.NoError(t, conn.WriteJSON(Message{Type: "related", Content: "rates", K: 2, Threshold: &threshold}))

	var reply relatedReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "related", reply.Type)
	assert.Equal(t, "rates", reply.Content)
	require.Len(t, reply.Data, 2)
	assert.Equal(t, "a", reply.Data[0].ID)
	assert.Equal(t, 2, mem.gotK)
	assert.Equal(t, float32(0.8), mem.gotTh)
}

func TestRelatedThreshold(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float32
	}{
		{name: "absent uses store default", raw: `{"type":"related","content":"x"}`, want: -1},
		{name: "explicit zero disables filter", raw: `{"type":"related","content":"x","threshold":0}`, want: 0},
		{name: "explicit value", raw: `{"type":"related","content":"x","threshold":0.6}`, want: 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &fakeMemory{}
			srv := httptest.NewServer(NewWSServer(Config{}, mem, logger.Discard()).Handler())
			defer srv.Close()

			conn := dial(t, srv)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))

			var reply Message
			require.NoError(t, conn.ReadJSON(&reply))
			assert.Equal(t, "related", reply.Type)
			assert.Equal(t, tt.want, mem.gotTh)
		})
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name    string
		mem     *fakeMemory
		raw     string
		wantMsg string
	}{
		{name: "invalid json", mem: &fakeMemory{}, raw: "{", wantMsg: "invalid message"},
		{name: "unknown type", mem: &fakeMemory{}, raw: `{"type":"chat","content":"hi"}`, wantMsg: "unknown message type: chat"},
		{name: "missing content", mem: &fakeMemory{}, raw: `{"type":"related"}`, wantMsg: "content is required"},
		{name: "memory failure", mem: &fakeMemory{err: errors.New("embedder down")}, raw: `{"type":"related","content":"x"}`, wantMsg: "embedder down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(NewWSServer(Config{}, tt.mem, logger.Discard()).Handler())
			defer srv.Close()

			conn := dial(t, srv)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))

			var reply Message
			require.NoError(t, conn.ReadJSON(&reply))
			assert.Equal(t, "error", reply.Type)
			assert.Contains(t, reply.Content, tt.wantMsg)
		})
	}
}

func TestHealthAndStats(t *testing.T) {
	srv := httptest.NewServer(NewWSServer(Config{}, &fakeMemory{}, logger.Discard()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats store.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, store.Stats{Processed: 4, Memories: 0}, stats)
}
