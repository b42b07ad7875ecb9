// Package handler 提供 relay 的 HTTP 请求处理器
// 本文件处理聊天室相关的 API 请求
package handler

import (
	"net/http"

	"kama_chat_client/internal/dao"
	"kama_chat_client/internal/dto/request"
	"kama_chat_client/internal/dto/respond"
	"kama_chat_client/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// ChatRoomHandler 聊天室请求处理器
type ChatRoomHandler struct {
	rooms dao.RoomStore
}

// NewChatRoomHandler 创建聊天室处理器实例
func NewChatRoomHandler(rooms dao.RoomStore) *ChatRoomHandler {
	return &ChatRoomHandler{rooms: rooms}
}

// GetChatRoomHandler 获取两个用户之间的聊天室，不存在时创建
// POST /chat/getChatRoom
// 请求体: request.GetChatRoomRequest
// 响应: respond.ChatRoomRespond
func (h *ChatRoomHandler) GetChatRoomHandler(c *gin.Context) {
	var req request.GetChatRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	// 开启令牌校验时，调用者必须是参与者之一
	if userID := c.GetString("user_id"); userID != "" && !lo.Contains(req.ParticipantIds, userID) {
		HandleError(c, errorx.New(errorx.CodeUnauthorized, "只能获取自己参与的聊天室"))
		return
	}

	id, err := h.rooms.GetOrCreateRoom(c.Request.Context(), req.PairKey())
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, respond.ChatRoomRespond{Id: id})
}
