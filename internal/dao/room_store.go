// Package dao 提供 relay 的聊天室映射存储
package dao

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kama_chat_client/internal/config"
	myredis "kama_chat_client/internal/dao/redis"
)

// RoomStore 聊天室映射存储
type RoomStore interface {
	// GetOrCreateRoom 返回 pairKey 对应的聊天室 ID，不存在时创建
	GetOrCreateRoom(ctx context.Context, pairKey string) (string, error)
}

// MemoryRoomStore 进程内存储，relay 重启后映射丢失
type MemoryRoomStore struct {
	mu    sync.Mutex
	rooms map[string]string
}

// NewMemoryRoomStore 创建进程内存储
func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{rooms: make(map[string]string)}
}

func (s *MemoryRoomStore) GetOrCreateRoom(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.rooms[key]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.rooms[key] = id
	return id, nil
}

// NewRoomStore 按 relayConfig.roomStore 选择实现
// 返回的 closer 用于关闭底层连接，内存实现为空操作
func NewRoomStore(ctx context.Context, conf *config.Config) (RoomStore, func() error, error) {
	if conf.RelayConfig.RoomStore != "redis" {
		return NewMemoryRoomStore(), func() error { return nil }, nil
	}
	client, err := myredis.NewClient(ctx, &conf.RedisConfig)
	if err != nil {
		return nil, nil, err
	}
	return myredis.NewRoomStore(client), client.Close, nil
}
