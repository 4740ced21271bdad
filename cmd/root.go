// Package cmd wires the freya subcommands.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/freyabot/freya/internal/config"
	"github.com/freyabot/freya/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "freya",
	Short: "Freya 學伴 - LINE 校園問答機器人",
	Long: `Freya 是一個校園問答 LINE 機器人。

收到訊息後先比對規則庫立即回覆；比對不到的問題會先送出確認訊息，
再由批次處理從知識庫檢索並推播完整答案。

常用子命令：
  serve    啟動 webhook 伺服器
  process  執行一輪批次處理
  migrate  執行資料庫遷移`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}
