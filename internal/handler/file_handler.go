// Package handler 提供 relay 的 HTTP 请求处理器
// 本文件处理附件的上传和下载
package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"kama_chat_client/internal/dto/request"
	"kama_chat_client/internal/dto/respond"
	"kama_chat_client/pkg/constants"
	"kama_chat_client/pkg/errorx"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileHandler 附件请求处理器
// 文件按聊天室分目录存放：{staticFilePath}/{chatId}/{uuid}{ext}
type FileHandler struct {
	root string
}

// NewFileHandler 创建附件处理器实例
func NewFileHandler(root string) *FileHandler {
	return &FileHandler{root: root}
}

// safeSegment 能否直接作为一级目录名
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// UploadFilesHandler 批量上传附件
// POST /chat/uploadFiles?chatId=xxx
// 表单字段: files，可重复
// 响应: []respond.UploadFileRespond，与提交顺序一致
func (h *FileHandler) UploadFilesHandler(c *gin.Context) {
	var req request.ChatIdRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if !safeSegment(req.ChatId) {
		HandleError(c, errorx.New(errorx.CodeInvalidParam, "chatId 不合法"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		HandleParamError(c, err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		HandleError(c, errorx.New(errorx.CodeInvalidParam, "没有上传任何文件"))
		return
	}

	dir := filepath.Join(h.root, req.ChatId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeServerBusy, "创建上传目录失败"))
		return
	}

	results := make([]respond.UploadFileRespond, 0, len(files))
	for _, fh := range files {
		if fh.Size > constants.FILE_MAX_SIZE {
			HandleError(c, errorx.Newf(errorx.CodeInvalidParam, "文件 %s 超过大小限制", fh.Filename))
			return
		}
		name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		if err := c.SaveUploadedFile(fh, filepath.Join(dir, name)); err != nil {
			HandleError(c, errorx.Wrap(err, errorx.CodeServerBusy, "保存文件失败"))
			return
		}
		results = append(results, respond.UploadFileRespond{FileUrl: "/uploads/" + req.ChatId + "/" + name})
	}
	zap.L().Info("附件已保存", zap.String("chatId", req.ChatId), zap.Int("count", len(results)))
	c.JSON(http.StatusOK, results)
}

// GetFileHandler 下载附件原始内容
// GET /chat/file/*path?chatId=xxx
// path 是去掉 uploads/ 前缀后整体转义的引用，形如 r1%2Fxxx.png
func (h *FileHandler) GetFileHandler(c *gin.Context) {
	var req request.ChatIdRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	ref := strings.TrimPrefix(c.Param("path"), "/")
	ref = strings.TrimPrefix(ref, "uploads/")
	clean := strings.TrimPrefix(path.Clean("/"+ref), "/")

	// 只能读取本聊天室目录下的文件
	chatDir, _, ok := strings.Cut(clean, "/")
	if !ok || chatDir != req.ChatId {
		HandleError(c, errorx.New(errorx.CodeNotFound, "文件不存在"))
		return
	}

	full := filepath.Join(h.root, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		HandleError(c, errorx.New(errorx.CodeNotFound, "文件不存在"))
		return
	}
	mt, err := mimetype.DetectFile(full)
	if err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeServerBusy, "读取文件失败"))
		return
	}
	c.Header("Content-Type", mt.String())
	c.File(full)
}
