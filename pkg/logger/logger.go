package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	logger  *zerolog.Logger
	logFile *os.File
)

// Init 初始化 zerolog 日志
// level: 日志级别 ("trace", "debug", "info", "warn", "error")，无法识别时使用 info
// file: 日志文件路径，为空时仅输出到控制台
func Init(level string, file string) error {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		Close()
		logFile = f
		// 文件中保留 JSON 格式，便于后续检索
		out = zerolog.MultiLevelWriter(out, f)
	}

	l := zerolog.New(out).Level(logLevel).With().Timestamp().Logger()
	logger = &l
	return nil
}

// Set 替换全局 logger，测试中用于捕获输出
func Set(l zerolog.Logger) {
	logger = &l
}

// Get 返回全局 logger 实例
// 如果 logger 未初始化，返回一个丢弃所有输出的 logger
func Get() *zerolog.Logger {
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	return logger
}

// Close 关闭日志文件
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
