// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 和聊天室相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 注册 WebSocket 连接入口
// 请求示例: ws://host:port/chat?chatId=R1&userId=U1&token=xxx
func (rt *Router) RegisterWebSocketRoutes(rg *gin.RouterGroup) {
	rg.GET("/chat", rt.handlers.Ws.WsLoginHandler)
}

// RegisterChatRoomRoutes 注册聊天室相关路由（开启令牌校验时需要认证）
func (rt *Router) RegisterChatRoomRoutes(rg *gin.RouterGroup) {
	rg.POST("/getChatRoom", rt.handlers.Room.GetChatRoomHandler) // 获取或创建两人聊天室
	rg.GET("/online", rt.handlers.Ws.OnlineHandler)               // 聊天室在线连接数
}
