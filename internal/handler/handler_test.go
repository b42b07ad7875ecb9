package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"kama_chat_client/internal/dao"
	"kama_chat_client/internal/dto/respond"
	ws "kama_chat_client/internal/gateway/websocket"
	"kama_chat_client/internal/infrastructure/mq"
	"kama_chat_client/pkg/errorx"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// newTestEngine 与 relay 相同的路由形状；asUser 非空时模拟令牌校验通过后的用户
func newTestEngine(t *testing.T, asUser string) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	h := NewHandlers(dao.NewMemoryRoomStore(), ws.NewHub(mq.NewChannelBroker(), time.Minute), root)

	engine := gin.New()
	engine.UseRawPath = true
	chat := engine.Group("/chat")
	if asUser != "" {
		chat.Use(func(c *gin.Context) { c.Set("user_id", asUser) })
	}
	chat.POST("/getChatRoom", h.Room.GetChatRoomHandler)
	chat.GET("/online", h.Ws.OnlineHandler)
	chat.POST("/uploadFiles", h.File.UploadFilesHandler)
	chat.GET("/file/*path", h.File.GetFileHandler)
	return engine, root
}

func serve(engine *gin.Engine, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, r)
	return w
}

func postRoom(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/chat/getChatRoom", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return serve(engine, r)
}

func upload(t *testing.T, engine *gin.Engine, chatID string, names ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/chat/uploadFiles?chatId="+url.QueryEscape(chatID), &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return serve(engine, r)
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestGetChatRoom_StableAcrossParticipantOrder(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestEngine(t, "")

	// Given the first lookup creates the room
	w := postRoom(engine, `{"participantIds":["U1","U2"]}`)
	req.Equal(http.StatusOK, w.Code)
	var first respond.ChatRoomRespond
	req.NoError(json.Unmarshal(w.Body.Bytes(), &first))
	req.NotEmpty(first.Id)

	// When the other participant asks with reversed order
	w = postRoom(engine, `{"participantIds":["U2","U1"]}`)

	// Then the same room comes back
	var second respond.ChatRoomRespond
	req.NoError(json.Unmarshal(w.Body.Bytes(), &second))
	req.Equal(first.Id, second.Id)

	w = postRoom(engine, `{"participantIds":["U1","U3"]}`)
	var other respond.ChatRoomRespond
	req.NoError(json.Unmarshal(w.Body.Bytes(), &other))
	req.NotEqual(first.Id, other.Id)
}

func TestGetChatRoom_RejectsBadBodies(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestEngine(t, "")

	for _, body := range []string{`{}`, `{"participantIds":["U1"]}`, `{"participantIds":["U1",""]}`, `not json`} {
		w := postRoom(engine, body)
		req.Equal(http.StatusBadRequest, w.Code, body)
		req.Equal(errorx.CodeInvalidParam, errCode(t, w), body)
	}
}

func TestGetChatRoom_TranslatesParticipantRule(t *testing.T) {
	req := require.New(t)
	req.NoError(InitTrans("zh"))
	engine, _ := newTestEngine(t, "")

	w := postRoom(engine, `{"participantIds":["U1"]}`)

	req.Equal(http.StatusBadRequest, w.Code)
	var resp struct {
		Code int               `json:"code"`
		Msg  map[string]string `json:"msg"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal(errorx.CodeInvalidParam, resp.Code)
	req.Equal("participantIds必须恰好包含两个用户ID", resp.Msg["participantIds"])
}

func TestGetChatRoom_CallerMustParticipate(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestEngine(t, "U9")

	w := postRoom(engine, `{"participantIds":["U1","U2"]}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal(errorx.CodeUnauthorized, errCode(t, w))

	w = postRoom(engine, `{"participantIds":["U9","U2"]}`)
	req.Equal(http.StatusOK, w.Code)
}

func TestUploadFiles_StoresPerRoomInOrder(t *testing.T) {
	req := require.New(t)
	engine, root := newTestEngine(t, "")

	w := upload(t, engine, "r1", "a.PNG", "b.png")
	req.Equal(http.StatusOK, w.Code)

	var results []respond.UploadFileRespond
	req.NoError(json.Unmarshal(w.Body.Bytes(), &results))
	req.Len(results, 2)
	for _, r := range results {
		req.True(strings.HasPrefix(r.FileUrl, "/uploads/r1/"), r.FileUrl)
		req.True(strings.HasSuffix(r.FileUrl, ".png"), r.FileUrl)
		data, err := os.ReadFile(filepath.Join(root, "r1", filepath.Base(r.FileUrl)))
		req.NoError(err)
		req.Equal(pngBytes, data)
	}
	req.NotEqual(results[0].FileUrl, results[1].FileUrl)
}

func TestUploadFiles_Rejections(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestEngine(t, "")

	w := upload(t, engine, "..", "a.png")
	req.Equal(http.StatusBadRequest, w.Code)

	w = upload(t, engine, "r1/r2", "a.png")
	req.Equal(http.StatusBadRequest, w.Code)

	w = upload(t, engine, "r1")
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(errorx.CodeInvalidParam, errCode(t, w))
}

func TestGetFile_ServesWithinRoom(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestEngine(t, "")

	// Given an uploaded file
	w := upload(t, engine, "r1", "cat.png")
	var results []respond.UploadFileRespond
	req.NoError(json.Unmarshal(w.Body.Bytes(), &results))
	ref := strings.TrimPrefix(results[0].FileUrl, "/uploads/")

	// When it is requested with the escaped reference
	r := httptest.NewRequest(http.MethodGet, "/chat/file/"+url.PathEscape(ref)+"?chatId=r1", nil)
	w = serve(engine, r)

	// Then the raw bytes come back with a detected content type
	req.Equal(http.StatusOK, w.Code)
	req.Equal("image/png", w.Header().Get("Content-Type"))
	req.Equal(pngBytes, w.Body.Bytes())

	// A request made for another room cannot read it
	r = httptest.NewRequest(http.MethodGet, "/chat/file/"+url.PathEscape(ref)+"?chatId=r2", nil)
	req.Equal(http.StatusNotFound, serve(engine, r).Code)

	// Nor can a path that climbs out of the room directory
	r = httptest.NewRequest(http.MethodGet, "/chat/file/"+url.PathEscape("r2/../"+ref)+"?chatId=r2", nil)
	req.Equal(http.StatusNotFound, serve(engine, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/chat/file/"+url.PathEscape("r1/missing.png")+"?chatId=r1", nil)
	req.Equal(http.StatusNotFound, serve(engine, r).Code)
}

func TestOnline_ReportsCount(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestEngine(t, "")

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/chat/online?chatId=r1", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal(errorx.CodeSuccess, errCode(t, w))

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/chat/online", nil))
	req.Equal(http.StatusBadRequest, w.Code)
}
