package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SecureHeaders 添加常用的安全响应头
// isDev 为 true 时 secure 跳过所有检查，便于本地调试
func SecureHeaders(isDev bool) gin.HandlerFunc {
	// 在返回函数之前初始化，避免每次请求都重复创建对象
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      isDev,
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 中间件里不能用 Fatal，记录日志并终止当前请求
			zap.L().Error("secure middleware rejected request", zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}
