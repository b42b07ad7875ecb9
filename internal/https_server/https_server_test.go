package https_server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kama_chat_client/internal/config"
	"kama_chat_client/internal/dao"
	ws "kama_chat_client/internal/gateway/websocket"
	"kama_chat_client/internal/handler"
	"kama_chat_client/internal/infrastructure/mq"
	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/chat"
	"kama_chat_client/internal/service/file"
	"kama_chat_client/internal/service/session"
	"kama_chat_client/pkg/util/jwt"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type relay struct {
	srv *httptest.Server
	hub *ws.Hub
}

func (r *relay) wsURL() string { return "ws" + strings.TrimPrefix(r.srv.URL, "http") }

func startRelay(t *testing.T) *relay {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	broker := mq.NewChannelBroker()
	hub := ws.NewHub(broker, time.Minute)
	go func() { _ = broker.Run(ctx, hub.Deliver) }()
	go func() { _ = hub.Run(ctx) }()

	handlers := handler.NewHandlers(dao.NewMemoryRoomStore(), hub, t.TempDir())
	engine := Init(handlers, &config.RelayConfig{Mode: "dev"})
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &relay{srv: srv, hub: hub}
}

func newClient(t *testing.T, r *relay, userID string) *chat.Client {
	t.Helper()
	c := chat.NewClient(
		session.NewCredentials(userID, "tok-"+userID),
		session.NewEndpoints(r.srv.URL, r.wsURL()),
		chat.Options{File: file.Options{CacheDir: t.TempDir(), HTTPTimeout: 5 * time.Second}},
	)
	t.Cleanup(c.DisconnectAll)
	return c
}

func texts(msgs []model.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if s, ok := m.Text(); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestRelay_TwoClientsShareRoomAndMessages(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	alice := newClient(t, r, "U1")
	bob := newClient(t, r, "U2")
	ctx := context.Background()

	// Given both participants open the chat with each other
	roomA, err := alice.OpenChat(ctx, "U2")
	req.NoError(err)
	roomB, err := bob.OpenChat(ctx, "U1")
	req.NoError(err)
	req.Equal(roomA, roomB)
	require.Eventually(t, func() bool { return r.hub.Online(roomA) == 2 }, 2*time.Second, 10*time.Millisecond)

	// When alice sends text
	id, err := alice.Send(ctx, roomA, chat.TextPart("hello"), chat.TextPart("again"))
	req.NoError(err)

	// Then both streams hold the parts in sequence order, the sender's included
	for _, c := range []*chat.Client{alice, bob} {
		require.Eventually(t, func() bool { return len(c.Messages(roomA)) == 2 }, 2*time.Second, 10*time.Millisecond)
		msgs := c.Messages(roomA)
		req.Equal([]string{"hello", "again"}, texts(msgs))
		req.Equal(id, msgs[0].MessageID)
		req.Equal("U1", msgs[0].SenderID)
	}
}

func TestRelay_FileRoundTrip(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)
	alice := newClient(t, r, "U1")
	bob := newClient(t, r, "U2")
	ctx := context.Background()

	room, err := alice.OpenChat(ctx, "U2")
	req.NoError(err)
	_, err = bob.OpenChat(ctx, "U1")
	req.NoError(err)
	require.Eventually(t, func() bool { return r.hub.Online(room) == 2 }, 2*time.Second, 10*time.Millisecond)

	// Given alice sends a caption with an image
	_, err = alice.Send(ctx, room, chat.TextPart("look"), chat.FilePart("cat.png", bytes.NewReader(pngBytes)))
	req.NoError(err)

	// When bob receives the file message and fetches it
	var ref string
	require.Eventually(t, func() bool {
		for _, m := range bob.Messages(room) {
			if f, ok := m.File(); ok {
				ref = f.URL
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	req.True(strings.HasPrefix(ref, "/uploads/"+room+"/"), ref)

	local, err := bob.Fetch(ctx, room, ref)
	req.NoError(err)

	// Then the bytes on disk match what alice uploaded
	req.Equal("image/png", local.MIME)
	data, err := os.ReadFile(local.Path)
	req.NoError(err)
	req.Equal(pngBytes, data)

	// And the image watcher fills in the local address
	watchCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	watch := bob.Watch(watchCtx, room)
	require.Eventually(t, func() bool {
		select {
		case msgs := <-watch:
			for _, m := range msgs {
				if _, ok := m.File(); ok && m.LocalURL != "" {
					return true
				}
			}
		default:
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelay_RejectsForeignTokens(t *testing.T) {
	req := require.New(t)
	jwt.Init("relay-secret", 60)
	t.Cleanup(func() { jwt.Init("", 0) })
	r := startRelay(t)

	token, err := jwt.GenerateAccessToken("U1")
	req.NoError(err)

	// A token minted for U1 opens U1's chat
	alice := chat.NewClient(
		session.NewCredentials("U1", token),
		session.NewEndpoints(r.srv.URL, r.wsURL()),
		chat.Options{File: file.Options{CacheDir: t.TempDir()}},
	)
	t.Cleanup(alice.DisconnectAll)
	room, err := alice.OpenChat(context.Background(), "U2")
	req.NoError(err)
	require.Eventually(t, func() bool { return alice.IsOpen(room) }, 2*time.Second, 10*time.Millisecond)

	// The same token presented as another user is refused on both surfaces
	mallory := chat.NewClient(
		session.NewCredentials("U3", token),
		session.NewEndpoints(r.srv.URL, r.wsURL()),
		chat.Options{File: file.Options{CacheDir: t.TempDir()}},
	)
	t.Cleanup(mallory.DisconnectAll)
	_, err = mallory.OpenChat(context.Background(), "U2")
	req.Error(err)

	resp, err := http.Get(r.srv.URL + "/chat?chatId=" + room + "&userId=U3&token=" + token)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}
