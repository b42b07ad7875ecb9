// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库

	"kama_chat_client/pkg/constants"
)

// ClientConfig 聊天客户端配置，对应宿主传入的凭证和服务地址
type ClientConfig struct {
	ApiUrl       string        `toml:"apiUrl"`       // HTTP 接口基础地址，如 "http://127.0.0.1:8000"
	WsUrl        string        `toml:"wsUrl"`        // WebSocket 基础地址，如 "ws://127.0.0.1:8000"
	UserId       string        `toml:"userId"`       // 当前用户 ID
	Token        string        `toml:"token"`        // 当前用户令牌
	CacheDir     string        `toml:"cacheDir"`     // 下载文件的本地落盘目录，留空使用系统临时目录
	ReadTimeout  time.Duration `toml:"readTimeout"`  // 读超时，0 表示不设置读超时
	HttpTimeout  time.Duration `toml:"httpTimeout"`  // 上传/下载/房间查询的 HTTP 超时
	SendChanSize int           `toml:"sendChanSize"` // 单连接写通道大小
}

// RelayConfig 开发用中继服务配置
type RelayConfig struct {
	Host              string        `toml:"host"`              // 监听地址
	Port              int           `toml:"port"`              // 监听端口
	StaticFilePath    string        `toml:"staticFilePath"`    // 上传文件存储目录
	HeartbeatInterval time.Duration `toml:"heartbeatInterval"` // 心跳间隔
	RoomStore         string        `toml:"roomStore"`         // 房间映射存储："memory" 或 "redis"
	Locale            string        `toml:"locale"`            // 参数校验错误提示语言："zh" 或 "en"
	Mode              string        `toml:"mode"`              // 运行模式："dev" 或 "release"
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"` // 消息模式："channel" 或 "kafka"
	HostPort    string        `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	ChatTopic   string        `toml:"chatTopic"`   // 聊天消息主题
	GroupId     string        `toml:"groupId"`     // 消费组，每个 relay 实例应唯一
	Partition   int           `toml:"partition"`   // 创建 topic 时的分区数
	Timeout     time.Duration `toml:"timeout"`     // 读写超时，如 "10s"
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，留空则 relay 不校验令牌
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	ClientConfig `toml:"clientConfig"` // 客户端配置
	RelayConfig  `toml:"relayConfig"`  // relay 配置
	RedisConfig  `toml:"redisConfig"`  // Redis 配置
	LogConfig    `toml:"logConfig"`    // 日志配置
	KafkaConfig  `toml:"kafkaConfig"`  // Kafka 配置
	JWTConfig    `toml:"jwtConfig"`    // JWT 配置
}

// config 全局配置单例，延迟加载
var config *Config

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		ClientConfig: ClientConfig{
			HttpTimeout:  30 * time.Second,
			SendChanSize: 100,
		},
		RelayConfig: RelayConfig{
			Host:              "127.0.0.1",
			Port:              8000,
			StaticFilePath:    "./static/files",
			HeartbeatInterval: constants.HEARTBEAT_INTERVAL,
			RoomStore:         "memory",
			Locale:            "zh",
			Mode:              "dev",
		},
		RedisConfig: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		LogConfig: LogConfig{
			LogPath: "./logs",
			Level:   "info",
		},
		KafkaConfig: KafkaConfig{
			MessageMode: "channel",
			ChatTopic:   "chat_message",
			GroupId:     "chat_relay",
			Partition:   1,
			Timeout:     10 * time.Second,
		},
		JWTConfig: JWTConfig{
			AccessTokenExpiry: 60,
		},
	}
}

// LoadFile 从指定路径加载配置，未出现在文件中的字段保留默认值
func LoadFile(path string) (*Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return conf, nil
}

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig() error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",       // 从子目录运行时的路径
	}

	for _, path := range paths {
		if conf, err := LoadFile(path); err == nil {
			config = conf
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，找不到文件时使用默认值
func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig()
	}
	return config
}
