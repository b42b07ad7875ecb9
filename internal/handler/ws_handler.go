// Package handler 提供 relay 的 HTTP 请求处理器
// 本文件处理 WebSocket 连接相关的请求
package handler

import (
	"kama_chat_client/internal/dto/request"
	ws "kama_chat_client/internal/gateway/websocket"
	"kama_chat_client/pkg/errorx"
	"kama_chat_client/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler WebSocket 请求处理器
type WsHandler struct {
	hub *ws.Hub
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(hub *ws.Hub) *WsHandler {
	return &WsHandler{hub: hub}
}

// WsLoginHandler 升级 HTTP 连接为 WebSocket 并加入聊天室
// GET /chat?chatId=xxx&userId=xxx&token=xxx
// 查询参数是连接时唯一的认证方式；开启令牌校验时 token 必须属于 userId
func (h *WsHandler) WsLoginHandler(c *gin.Context) {
	var req request.WsConnectRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if jwt.Enabled() {
		if err := jwt.VerifyUser(req.Token, req.UserId); err != nil {
			zap.L().Warn("ws token rejected", zap.String("userId", req.UserId), zap.Error(err))
			HandleError(c, errorx.ErrNotLoggedIn)
			return
		}
	}
	if err := ws.Serve(h.hub, c.Writer, c.Request, req.ChatId, req.UserId); err != nil {
		// Upgrade 失败时已经写回了错误响应
		zap.L().Error("ws upgrade failed", zap.Error(err))
	}
}

// OnlineHandler 聊天室当前在线连接数
// GET /chat/online?chatId=xxx
func (h *WsHandler) OnlineHandler(c *gin.Context) {
	var req request.ChatIdRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"chatId": req.ChatId, "online": h.hub.Online(req.ChatId)})
}
