package middleware

import (
	"net/http"
	"strings"

	"kama_chat_client/pkg/errorx"
	"kama_chat_client/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// JWTAuth HTTP 接口的令牌校验
// 客户端携带 Authorization: Bearer {token} 和 UserId 两个头；未配置密钥时直接放行
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !jwt.Enabled() {
			c.Next()
			return
		}

		// 1. 解析 Bearer Token
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "请先登录",
			})
			return
		}

		// 2. 令牌必须属于 UserId 头中的用户
		userID := c.GetHeader("UserId")
		if err := jwt.VerifyUser(parts[1], userID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "Token 已过期或无效，请重新登录",
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
