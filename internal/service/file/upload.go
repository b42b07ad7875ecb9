package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"kama_chat_client/internal/service/session"
	"kama_chat_client/pkg/constants"
	"kama_chat_client/pkg/errorx"
)

// Attachment 待上传的附件
type Attachment struct {
	Name    string    // 原始文件名
	Content io.Reader // 文件内容
}

// UploadedFile 上传结果
type UploadedFile struct {
	URL  string // 服务端返回的 fileUrl
	Name string // fileUrl 的最后一段
}

type uploadRespond struct {
	FileURL string `json:"fileUrl"`
}

// Upload 批量上传附件，结果与提交顺序一一对应
func (g *Gateway) Upload(ctx context.Context, chatID string, files []Attachment) ([]UploadedFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	base := g.endpoints.APIBase()
	if base == "" {
		return nil, errorx.Wrap(errorx.ErrNotConfigured, errorx.CodeUploadFailed, "上传文件失败")
	}

	body, contentType, err := buildForm(files)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUploadFailed, "构造上传表单失败")
	}

	target := base + "/chat/uploadFiles?chatId=" + url.QueryEscape(chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUploadFailed, "上传文件失败")
	}
	req.Header.Set("Content-Type", contentType)
	session.Authorize(req, g.creds)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUploadFailed, "上传文件失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorx.Newf(errorx.CodeUploadFailed, "上传文件失败: status %d", resp.StatusCode)
	}

	var results []uploadRespond
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUploadFailed, "解析上传结果失败")
	}
	if len(results) != len(files) {
		return nil, errorx.Newf(errorx.CodeUploadFailed, "上传结果数量不符: 提交 %d 个，返回 %d 个", len(files), len(results))
	}

	uploaded := make([]UploadedFile, 0, len(results))
	for _, r := range results {
		uploaded = append(uploaded, UploadedFile{URL: r.FileURL, Name: lastSegment(r.FileURL)})
	}
	zap.L().Info("附件上传成功", zap.String("chatId", chatID), zap.Int("count", len(uploaded)))
	return uploaded, nil
}

// buildForm 每个附件写成一个 files 字段，Content-Type 按内容探测
func buildForm(files []Attachment) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range files {
		if f.Content == nil {
			return nil, "", fmt.Errorf("attachment %q has no content", f.Name)
		}
		data, err := io.ReadAll(io.LimitReader(f.Content, constants.FILE_MAX_SIZE+1))
		if err != nil {
			return nil, "", err
		}
		if len(data) > constants.FILE_MAX_SIZE {
			return nil, "", fmt.Errorf("attachment %q exceeds %d bytes", f.Name, constants.FILE_MAX_SIZE)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Name)))
		h.Set("Content-Type", mimetype.Detect(data).String())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// lastSegment fileUrl 按 "/" 切分后的最后一段
func lastSegment(fileURL string) string {
	return fileURL[strings.LastIndex(fileURL, "/")+1:]
}
