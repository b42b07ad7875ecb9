// Package handler 提供 relay 的 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	"kama_chat_client/internal/dao"
	ws "kama_chat_client/internal/gateway/websocket"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Room *ChatRoomHandler
	File *FileHandler
	Ws   *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
// rooms: 聊天室映射存储
// hub: WebSocket 在线连接管理
// staticFilePath: 上传文件存储目录
func NewHandlers(rooms dao.RoomStore, hub *ws.Hub, staticFilePath string) *Handlers {
	RegisterValidations()
	return &Handlers{
		Room: NewChatRoomHandler(rooms),
		File: NewFileHandler(staticFilePath),
		Ws:   NewWsHandler(hub),
	}
}
