// Package redis 提供 relay 聊天室映射的 Redis 存储
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"

	"kama_chat_client/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient 创建 Redis 客户端并检查连通性
func NewClient(ctx context.Context, conf *config.RedisConfig) (*redis.Client, error) {
	// 拼接地址：host:port
	addr := conf.Host + ":" + strconv.Itoa(conf.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: conf.Password, // 密码，无密码留空
		DB:       conf.Db,       // 数据库编号
		// 连接池配置
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
