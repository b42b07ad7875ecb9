package redis

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kama_chat_client/pkg/constants"
	"kama_chat_client/pkg/errorx"
)

// RoomStore 聊天室映射，键为 chat_room_{pairKey}，值为聊天室 ID，不过期
type RoomStore struct {
	client redis.Cmdable
}

// NewRoomStore 创建 Redis 聊天室映射
func NewRoomStore(client redis.Cmdable) *RoomStore {
	return &RoomStore{client: client}
}

// GetOrCreateRoom 用 SETNX 保证多个 relay 实例并发创建时只有一个 ID 生效
func (s *RoomStore) GetOrCreateRoom(ctx context.Context, pairKey string) (string, error) {
	key := constants.ROOM_KEY_PREFIX + pairKey
	created, err := s.client.SetNX(ctx, key, uuid.NewString(), 0).Result()
	if err != nil {
		zap.L().Error("redis setnx failed", zap.String("key", key), zap.Error(err))
		return "", errorx.Wrap(err, errorx.CodeCacheError, "创建聊天室失败")
	}
	id, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeCacheError, "读取聊天室失败")
	}
	if created {
		zap.L().Info("聊天室已创建", zap.String("key", key), zap.String("chatId", id))
	}
	return id, nil
}
