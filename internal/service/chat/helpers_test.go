package chat

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/session"
)

// wsStub 最小的 WebSocket 服务端，记录握手次数和收到的帧
type wsStub struct {
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	queries  []url.Values
	received chan []byte
}

func newWSStub(t *testing.T) *wsStub {
	t.Helper()
	s := &wsStub{received: make(chan []byte, 64)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				s.received <- data
			}
		}()
	}))
	t.Cleanup(s.close)
	return s
}

func (s *wsStub) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsStub) upgrades() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *wsStub) conn(i int) *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[i]
}

func (s *wsStub) query(i int) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[i]
}

// push 由测试协程直接写，单写者
func (s *wsStub) push(t *testing.T, i int, frames ...string) {
	t.Helper()
	for _, f := range frames {
		require.NoError(t, s.conn(i).WriteMessage(websocket.TextMessage, []byte(f)))
	}
}

func (s *wsStub) next(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-s.received:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return nil
	}
}

func (s *wsStub) close() {
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.srv.Close()
}

func newTestRegistry(t *testing.T, wsBase string) (*Registry, *Store, *session.Credentials) {
	t.Helper()
	creds := session.NewCredentials("U1", "tok")
	store := NewStore()
	r := NewRegistry(creds, session.NewEndpoints("http://unused", wsBase), store, RegistryOptions{})
	t.Cleanup(r.DisconnectAll)
	return r, store, creds
}

func waitOpen(t *testing.T, r *Registry, chatID string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.IsOpen(chatID) }, 2*time.Second, 10*time.Millisecond)
}

func wireText(chatID, messageID string, seq int, createdAt, content string) string {
	m := model.ChatMessage{ChatID: chatID, MessageID: messageID, Sequence: seq, Body: model.TextBody{Content: content}}
	if createdAt != "" {
		at, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			panic(err)
		}
		m.CreatedAt = at
	}
	data, err := model.Encode(m)
	if err != nil {
		panic(err)
	}
	return string(data)
}
