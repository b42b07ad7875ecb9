package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kama_chat_client/internal/service/session"
	"kama_chat_client/pkg/errorx"
)

func TestGetChatRoom(t *testing.T) {
	req := require.New(t)
	var got ChatRoomRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/getChatRoom" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"room-42","extra":true}`))
	}))
	defer srv.Close()

	d := NewDirectory(session.NewCredentials("U1", "tok"), session.NewEndpoints(srv.URL, ""), nil, time.Second)
	id, err := d.GetChatRoom(context.Background(), "U2")

	req.NoError(err)
	req.Equal("room-42", id)
	req.Equal([]string{"U1", "U2"}, got.ParticipantIds)
	req.Equal("Bearer tok", auth)
}

func TestGetChatRoom_NotLoggedIn(t *testing.T) {
	d := NewDirectory(session.NewCredentials("", ""), session.NewEndpoints("http://unused", ""), nil, time.Second)
	_, err := d.GetChatRoom(context.Background(), "U2")
	require.Equal(t, errorx.CodeUnauthorized, errorx.GetCode(err))
}

func TestGetChatRoom_RemoteFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		"decode": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`not json`)) },
		"no id":  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{}`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			d := NewDirectory(session.NewCredentials("U1", "tok"), session.NewEndpoints(srv.URL, ""), nil, time.Second)

			_, err := d.GetChatRoom(context.Background(), "U2")
			require.Equal(t, errorx.CodeRoomDiscovery, errorx.GetCode(err))
		})
	}

	d := NewDirectory(session.NewCredentials("U1", "tok"), session.NewEndpoints("http://127.0.0.1:1", ""), nil, time.Second)
	_, err := d.GetChatRoom(context.Background(), "U2")
	require.Equal(t, errorx.CodeRoomDiscovery, errorx.GetCode(err))
}
