// Package session 保存宿主注入的会话状态：当前用户凭证与服务地址
// 两者都通过构造函数显式注入，不使用包级单例
package session

import (
	"net/http"
	"sync"
)

// CredentialsProvider 只读凭证视图，连接层和派发层只依赖该接口
type CredentialsProvider interface {
	// Credentials 返回当前用户 ID 和令牌，任一缺失时 ok 为 false
	Credentials() (userID, token string, ok bool)
}

// Credentials 当前用户凭证，可在运行时修改
type Credentials struct {
	mu     sync.RWMutex
	userID string
	token  string
}

// NewCredentials 创建凭证，参数可以为空，稍后通过 Set 填写
func NewCredentials(userID, token string) *Credentials {
	return &Credentials{userID: userID, token: token}
}

// Set 设置当前用户凭证
func (c *Credentials) Set(userID, token string) {
	c.mu.Lock()
	c.userID = userID
	c.token = token
	c.mu.Unlock()
}

// Clear 清空凭证（登出）
func (c *Credentials) Clear() {
	c.Set("", "")
}

// UserID 返回当前用户 ID，未登录时为空
func (c *Credentials) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Credentials 实现 CredentialsProvider
func (c *Credentials) Credentials() (string, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.token, c.userID != "" && c.token != ""
}

// Authorize 为 HTTP 请求添加 Authorization: Bearer 和 UserId 头，未登录时不添加
func Authorize(req *http.Request, p CredentialsProvider) {
	if p == nil {
		return
	}
	userID, token, ok := p.Credentials()
	if !ok {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("UserId", userID)
}
