// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"kama_chat_client/internal/handler"
	"kama_chat_client/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有所有 Handler
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	// WebSocket 入口自行校验查询参数里的令牌
	rt.RegisterWebSocketRoutes(&r.RouterGroup)

	chatGroup := r.Group("/chat")
	chatGroup.Use(middleware.JWTAuth())
	rt.RegisterChatRoomRoutes(chatGroup)
	rt.RegisterFileRoutes(chatGroup)
}
