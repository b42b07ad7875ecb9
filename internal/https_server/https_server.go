// Package https_server 提供 relay 的 HTTP 服务器初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"kama_chat_client/internal/config"                    // 配置管理
	"kama_chat_client/internal/handler"                   // Handler 聚合对象
	"kama_chat_client/internal/infrastructure/logger"     // 自定义日志中间件
	"kama_chat_client/internal/infrastructure/middleware" // 安全响应头
	"kama_chat_client/internal/router"                    // 路由注册

	"github.com/gin-contrib/cors" // CORS 跨域中间件
	"github.com/gin-gonic/gin"    // Gin Web 框架
)

// Init 初始化 HTTP 服务器并返回 Gin 引擎实例
// handlers: 通过依赖注入传入的 handler 聚合对象
// 配置顺序：
//  1. 创建 Gin 引擎（空白，不含默认中间件）
//  2. 注册日志和恢复中间件
//  3. 配置 CORS 跨域规则和安全响应头
//  4. 注册业务路由
//
// 返回: 配置完成的 Gin 引擎实例
func Init(handlers *handler.Handlers, conf *config.RelayConfig) *gin.Engine {
	if conf.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// 下载路由的引用整体转义过，需要按原始路径匹配
	engine.UseRawPath = true

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 开发用 relay，允许所有来源
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "UserId"}
	engine.Use(cors.New(corsConfig))

	engine.Use(middleware.SecureHeaders(conf.Mode == "dev"))

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}
