package session

import (
	"strings"
	"sync"
)

// EndpointsProvider 只读服务地址视图
type EndpointsProvider interface {
	// APIBase HTTP 接口基础地址，不带结尾的 "/"
	APIBase() string
	// WSBase WebSocket 基础地址，不带结尾的 "/"
	WSBase() string
}

// Endpoints 服务地址配置
// 运行时修改只影响之后发起的连接和请求，已打开的连接不受影响
type Endpoints struct {
	mu      sync.RWMutex
	apiBase string
	wsBase  string
}

// NewEndpoints 创建服务地址配置
func NewEndpoints(apiBase, wsBase string) *Endpoints {
	e := &Endpoints{}
	e.Configure(apiBase, wsBase)
	return e
}

// Configure 运行时修改服务地址
func (e *Endpoints) Configure(apiBase, wsBase string) {
	e.mu.Lock()
	e.apiBase = strings.TrimRight(apiBase, "/")
	e.wsBase = strings.TrimRight(wsBase, "/")
	e.mu.Unlock()
}

func (e *Endpoints) APIBase() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.apiBase
}

func (e *Endpoints) WSBase() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wsBase
}
