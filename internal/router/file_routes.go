// Package router 提供 HTTP 路由注册
// 本文件定义附件相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterFileRoutes 注册附件上传和下载路由
func (rt *Router) RegisterFileRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploadFiles", rt.handlers.File.UploadFilesHandler) // 批量上传
	rg.GET("/file/*path", rt.handlers.File.GetFileHandler)       // 按引用下载
}
