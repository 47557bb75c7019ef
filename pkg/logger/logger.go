// Package logger はアプリケーション全体で使う slog ロガーを管理する
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var globalLogger *slog.Logger

// ParseLevel ログレベル文字列を slog.Level に変換（大文字小文字を無視）
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", level)
}

// InitLogger ログレベルに応じてslogを初期化
// 標準出力は演奏サマリに使うので、ログは標準エラー出力へ書く
func InitLogger(level string) error {
	return Init(os.Stderr, level)
}

// Init 出力先とログレベルを指定してslogを初期化
func Init(w io.Writer, level string) error {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// ForTune 曲ファイル名を属性に持つロガーを返す
func ForTune(path string) *slog.Logger {
	return GetLogger().With("tune", filepath.Base(path))
}
