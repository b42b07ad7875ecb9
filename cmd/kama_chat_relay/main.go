// kama_chat_relay 开发用中继服务：聊天室目录、附件存储和 WebSocket 转发
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kama_chat_client/internal/config"
	"kama_chat_client/internal/dao"
	"kama_chat_client/internal/gateway/websocket"
	"kama_chat_client/internal/handler"
	"kama_chat_client/internal/https_server"
	"kama_chat_client/internal/infrastructure/logger"
	"kama_chat_client/internal/infrastructure/mq"
	"kama_chat_client/pkg/util/jwt"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kama_chat_relay",
	Short: "开发用聊天中继服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return run(cmd.Context(), config.GetConfig())
		}
		conf, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		return run(cmd.Context(), conf)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，留空按默认路径查找")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(parent context.Context, conf *config.Config) error {
	// 1. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.RelayConfig.Mode); err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	zap.L().Info("日志初始化成功")
	defer func() { _ = zap.L().Sync() }()

	// 2. 初始化 JWT，密钥为空时不校验令牌
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	zap.L().Info("JWT 初始化成功", zap.Bool("enabled", jwt.Enabled()))

	// 3. 参数校验翻译器
	if err := handler.InitTrans(conf.RelayConfig.Locale); err != nil {
		return fmt.Errorf("validator 翻译器初始化失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 聊天室映射存储
	rooms, closeRooms, err := dao.NewRoomStore(ctx, conf)
	if err != nil {
		return fmt.Errorf("聊天室存储初始化失败: %w", err)
	}
	defer func() { _ = closeRooms() }()
	zap.L().Info("聊天室存储初始化成功", zap.String("roomStore", conf.RelayConfig.RoomStore))

	// 5. 消息代理
	broker := mq.New(&conf.KafkaConfig)
	defer func() {
		if err := broker.Close(); err != nil {
			zap.L().Warn("关闭消息代理失败", zap.Error(err))
		}
	}()
	if kb, ok := broker.(*mq.KafkaBroker); ok {
		if err := kb.CreateTopic(); err != nil {
			return fmt.Errorf("创建 Kafka topic 失败: %w", err)
		}
	}
	zap.L().Info("消息代理初始化成功", zap.String("messageMode", conf.KafkaConfig.MessageMode))

	// 6. HTTP 服务器
	hub := websocket.NewHub(broker, conf.RelayConfig.HeartbeatInterval)
	engine := https_server.Init(handler.NewHandlers(rooms, hub, conf.RelayConfig.StaticFilePath), &conf.RelayConfig)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.RelayConfig.Host, conf.RelayConfig.Port),
		Handler: engine,
	}

	// 7. 启动服务，任意一个退出时整体关闭
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return broker.Run(gctx, hub.Deliver) })
	g.Go(func() error {
		zap.L().Info("relay 启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("关闭服务器...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("relay 异常退出", zap.Error(err))
		return err
	}
	zap.L().Info("服务器已关闭")
	return nil
}
