package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kama_chat_client/internal/config"
	"kama_chat_client/internal/infrastructure/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kama_chat_client",
	Short: "命令行聊天客户端",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		// 日志只写文件，标准输出留给聊天内容
		if err := logger.Init(&conf.LogConfig, "release"); err != nil {
			log.Printf("init logger failed: %v", err)
			return err
		}
		zap.L().Debug("配置加载完成", zap.String("config", configPath))
		return nil
	},
	SilenceUsage: true,
}

// Execute 执行根命令，出错时以非零状态退出
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，留空按默认路径查找")
	rootCmd.AddCommand(newChatCmd(), newTokenCmd())
}

// loadConfig 指定了 --config 时只读该文件
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.GetConfig(), nil
	}
	return config.LoadFile(configPath)
}
