// Package file 实现聊天附件的上传与下载
// gateway.go
// 核心职责：
// 1. Upload：一次 multipart 请求批量上传附件，返回服务端分配的 fileUrl
// 2. Fetch：按聊天室缓存下载结果，命中缓存时不再访问远端，同一引用的并发请求共享一次下载
// 3. Clear/ClearAll：清空缓存并删除落盘文件
package file

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"kama_chat_client/internal/service/session"
)

// imagePattern 可以直接预览的图片扩展名
var imagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// IsImage 文件名是否是可预览的图片
func IsImage(name string) bool {
	return imagePattern.MatchString(name)
}

// Options 网关参数
type Options struct {
	// CacheDir 下载文件的落盘目录，为空时使用系统临时目录
	CacheDir string
	// HTTPTimeout 单次请求超时，为 0 表示不限制
	HTTPTimeout time.Duration
	// Client 为空时按 HTTPTimeout 创建
	Client *http.Client
}

// Gateway 附件上传下载网关
type Gateway struct {
	creds     session.CredentialsProvider
	endpoints session.EndpointsProvider
	client    *http.Client
	cacheDir  string

	group singleflight.Group

	mu    sync.Mutex
	rooms map[string]*roomCache
	// dirs 网关创建过的聊天室目录，ClearAll 只删除这些目录
	dirs map[string]struct{}
}

// roomCache 单个聊天室的下载缓存
// Clear 之后旧的 roomCache 不再挂在 rooms 上，迟到的下载结果据此判断是否入缓存
type roomCache struct {
	files map[string]*LocalFile
}

// NewGateway 创建网关
func NewGateway(creds session.CredentialsProvider, endpoints session.EndpointsProvider, opts Options) *Gateway {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.HTTPTimeout}
	}
	dir := opts.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "kama_chat_cache")
	}
	return &Gateway{
		creds:     creds,
		endpoints: endpoints,
		client:    client,
		cacheDir:  dir,
		rooms:     make(map[string]*roomCache),
		dirs:      make(map[string]struct{}),
	}
}

// CacheDir 落盘根目录
func (g *Gateway) CacheDir() string { return g.cacheDir }

// Cached 查询缓存，不访问远端
func (g *Gateway) Cached(chatID, ref string) (*LocalFile, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rc, ok := g.rooms[chatID]
	if !ok {
		return nil, false
	}
	f, ok := rc.files[ref]
	return f, ok
}

// Clear 清空聊天室的缓存并删除其落盘文件
func (g *Gateway) Clear(chatID string) {
	dir := g.roomDir(chatID)
	g.mu.Lock()
	delete(g.rooms, chatID)
	delete(g.dirs, dir)
	g.mu.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		zap.L().Warn("删除缓存目录失败", zap.String("chatId", chatID), zap.Error(err))
	}
}

// ClearAll 清空所有聊天室的缓存
// 只删除网关自己创建的聊天室目录，cacheDir 中的其他文件不受影响
func (g *Gateway) ClearAll() {
	g.mu.Lock()
	g.rooms = make(map[string]*roomCache)
	dirs := g.dirs
	g.dirs = make(map[string]struct{})
	g.mu.Unlock()
	for dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			zap.L().Warn("删除缓存目录失败", zap.String("dir", dir), zap.Error(err))
		}
	}
}

// ensureRoomDir 创建聊天室目录并登记
func (g *Gateway) ensureRoomDir(chatID string) (string, error) {
	dir := g.roomDir(chatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.dirs[dir] = struct{}{}
	g.mu.Unlock()
	return dir, nil
}

func (g *Gateway) room(chatID string) *roomCache {
	g.mu.Lock()
	defer g.mu.Unlock()
	rc, ok := g.rooms[chatID]
	if !ok {
		rc = &roomCache{files: make(map[string]*LocalFile)}
		g.rooms[chatID] = rc
	}
	return rc
}

// store 只有 rc 仍是当前缓存时才写入
func (g *Gateway) store(chatID string, rc *roomCache, f *LocalFile) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[chatID] != rc {
		return false
	}
	rc.files[f.Ref] = f
	return true
}

// roomDir 聊天室 ID 取哈希作为目录名，避免路径穿越
func (g *Gateway) roomDir(chatID string) string {
	sum := sha256.Sum256([]byte(chatID))
	return filepath.Join(g.cacheDir, hex.EncodeToString(sum[:8]))
}

// NormalizeRef 去掉可选的 "uploads/" 或 "/uploads/" 前缀
func NormalizeRef(ref string) string {
	if s, ok := strings.CutPrefix(ref, "/uploads/"); ok {
		return s
	}
	if s, ok := strings.CutPrefix(ref, "uploads/"); ok {
		return s
	}
	return ref
}

// FileURL 下载地址 {apiBase}/chat/file/{escaped}?chatId=
// 整个引用作为一个路径段转义，"/" 也会被转义
func FileURL(apiBase, chatID, ref string) string {
	return apiBase + "/chat/file/" + url.PathEscape(NormalizeRef(ref)) + "?chatId=" + url.QueryEscape(chatID)
}
