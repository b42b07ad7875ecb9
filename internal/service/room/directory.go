// Package room 通过 HTTP 接口获取两个用户之间的聊天室
package room

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kama_chat_client/internal/service/session"
	"kama_chat_client/pkg/errorx"
)

// ChatRoomRequest 获取聊天室请求
type ChatRoomRequest struct {
	ParticipantIds []string `json:"participantIds"`
}

// ChatRoomRespond 获取聊天室响应，至少包含 id
type ChatRoomRespond struct {
	Id string `json:"id"`
}

// Directory 聊天室目录
type Directory struct {
	creds     session.CredentialsProvider
	endpoints session.EndpointsProvider
	client    *http.Client
}

// NewDirectory 创建聊天室目录，client 为空时按 timeout 新建
func NewDirectory(creds session.CredentialsProvider, endpoints session.EndpointsProvider, client *http.Client, timeout time.Duration) *Directory {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Directory{creds: creds, endpoints: endpoints, client: client}
}

// GetChatRoom 获取当前用户与 targetUserID 的聊天室 ID
func (d *Directory) GetChatRoom(ctx context.Context, targetUserID string) (string, error) {
	userID, _, ok := d.creds.Credentials()
	if !ok {
		return "", errorx.ErrNotLoggedIn
	}
	base := d.endpoints.APIBase()
	if base == "" {
		return "", errorx.Wrap(errorx.ErrNotConfigured, errorx.CodeRoomDiscovery, "获取聊天室失败")
	}

	body, err := json.Marshal(ChatRoomRequest{ParticipantIds: []string{userID, targetUserID}})
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeRoomDiscovery, "获取聊天室失败")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/getChatRoom", bytes.NewReader(body))
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeRoomDiscovery, "获取聊天室失败")
	}
	req.Header.Set("Content-Type", "application/json")
	session.Authorize(req, d.creds)

	resp, err := d.client.Do(req)
	if err != nil {
		zap.L().Error("获取聊天室失败", zap.String("target", targetUserID), zap.Error(err))
		return "", errorx.Wrap(err, errorx.CodeRoomDiscovery, "获取聊天室失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zap.L().Error("获取聊天室失败", zap.String("target", targetUserID), zap.Int("status", resp.StatusCode))
		return "", errorx.Newf(errorx.CodeRoomDiscovery, "获取聊天室失败: status %d", resp.StatusCode)
	}

	var room ChatRoomRespond
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return "", errorx.Wrap(err, errorx.CodeRoomDiscovery, "解析聊天室响应失败")
	}
	if room.Id == "" {
		return "", errorx.New(errorx.CodeRoomDiscovery, "聊天室响应缺少 id")
	}
	zap.L().Info("获取聊天室成功", zap.String("chatId", room.Id))
	return room.Id, nil
}
